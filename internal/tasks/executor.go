package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"wgfleet/internal/cache"
	"wgfleet/internal/logs"
	"wgfleet/internal/models"
	"wgfleet/internal/repo"
	"wgfleet/internal/wg"
)

// Репозитории (интерфейсы объявлены у потребителя, реализация — internal/repo).
type PeerRepo interface {
	GetByID(ctx context.Context, id uint) (*models.Peer, error)
	SetKeys(ctx context.Context, id uint, publicKey, privateKey string) error
	ResolveServer(ctx context.Context, p *models.Peer) (*models.Server, error)
	ActivePeersForServer(ctx context.Context, serverID uint) ([]models.Peer, error)
}

type ServerRepo interface {
	GetByID(ctx context.Context, id uint) (*models.Server, error)
	Default(ctx context.Context) (*models.Server, error)
	PrivateKey(srv *models.Server) (string, error)
}

type Keygen interface {
	Generate(ctx context.Context) (priv, pub string, err error)
}

type Live interface {
	ApplyPeer(ctx context.Context, iface, publicKey, allowedIPs string, keepalive int) error
	RemovePeer(ctx context.Context, iface, publicKey string) error
}

// Enqueuer — постановка follow-up задач (реализует Queue).
type Enqueuer interface {
	TryEnqueue(t Task) bool
}

// Executor исполняет одну задачу. Повторы и журналирование — забота Queue.
type Executor struct {
	Peers   PeerRepo
	Servers ServerRepo
	Keygen  Keygen
	Live    Live
	Cache   cache.Cache
	ConfDir string
	Enq     Enqueuer // выставляется после создания очереди

	// Конкурентные Sync-Config одного сервера не должны перемежать
	// записи файла: на сервер — свой мьютекс (плюс атомарный rename).
	confLocks sync.Map // uint -> *sync.Mutex
}

func (e *Executor) Run(ctx context.Context, t Task) (Result, error) {
	switch t.Kind {
	case KindOnboard:
		return e.onboard(ctx, t.EntityID)
	case KindSyncConfig:
		return e.syncConfig(ctx, t.EntityID)
	case KindInjectPeer:
		return e.injectPeer(ctx, t.EntityID)
	case KindRemovePeer:
		return e.removePeer(ctx, t.Tombstone)
	default:
		return Result{}, fmt.Errorf("unknown task kind %q", t.Kind)
	}
}

// -------- Onboard --------

// onboard догенерирует пиру ключи и ставит задачи распространения:
// сначала Sync-Config (чтобы регенерированный файл не оказался устаревшим
// относительно только что заинжекченного пира), затем Inject-Peer.
func (e *Executor) onboard(ctx context.Context, peerID uint) (Result, error) {
	p, err := e.Peers.GetByID(ctx, peerID)
	if errors.Is(err, repo.ErrNotFound) {
		// Пира удалили раньше, чем онбординг добежал — не повод ретраить.
		return Result{Status: models.TaskStatusError, Details: map[string]any{"message": "peer not found"}}, nil
	}
	if err != nil {
		return Result{}, err
	}

	if !p.HasPublicKey() || p.PrivateKeyEncrypted == "" {
		priv, pub, err := e.Keygen.Generate(ctx)
		if err != nil {
			return Result{}, err
		}
		if err := e.Peers.SetKeys(ctx, p.ID, pub, priv); err != nil {
			return Result{}, err
		}
		p.PublicKey = pub
	}

	srv, err := e.Peers.ResolveServer(ctx, p)
	if err != nil {
		return Result{}, err
	}
	if srv != nil && e.Enq != nil {
		// Порядок принципиален (см. комментарий выше).
		e.enqueue(Task{Kind: KindSyncConfig, EntityID: srv.ID})
		e.enqueue(Task{Kind: KindInjectPeer, EntityID: p.ID})
	}

	return Result{Status: models.TaskStatusSuccess, Details: map[string]any{"peer_id": p.ID}}, nil
}

// -------- Sync-Config --------

func (e *Executor) syncConfig(ctx context.Context, serverID uint) (Result, error) {
	srv, err := e.Servers.GetByID(ctx, serverID)
	if errors.Is(err, repo.ErrNotFound) {
		return Result{Status: models.TaskStatusError, Details: map[string]any{"message": "server not found"}}, nil
	}
	if err != nil {
		return Result{}, err
	}

	priv, err := e.Servers.PrivateKey(srv)
	if err != nil {
		return Result{}, err
	}
	peers, err := e.Peers.ActivePeersForServer(ctx, srv.ID)
	if err != nil {
		return Result{}, err
	}
	// Пиры без юзабельного ключа в конфиг не попадают.
	usable := peers[:0]
	for _, p := range peers {
		if p.HasPublicKey() {
			usable = append(usable, p)
		}
	}

	content := wg.RenderServerConf(srv, priv, usable)

	mu := e.confLock(srv.ID)
	mu.Lock()
	path, err := wg.WriteConf(e.ConfDir, srv.Interface, []byte(content))
	mu.Unlock()
	if err != nil {
		return Result{}, err
	}

	if e.Cache != nil {
		_ = e.Cache.Invalidate(ctx, cache.KeyServerConfig(srv.ID))
	}
	return Result{Status: models.TaskStatusSuccess, Details: map[string]any{"server": srv.Interface, "path": path}}, nil
}

// -------- Inject-Peer --------

func (e *Executor) injectPeer(ctx context.Context, peerID uint) (Result, error) {
	p, err := e.Peers.GetByID(ctx, peerID)
	if errors.Is(err, repo.ErrNotFound) {
		return Result{Status: models.TaskStatusError, Details: map[string]any{"message": "peer not found"}}, nil
	}
	if err != nil {
		return Result{}, err
	}

	srv, err := e.Peers.ResolveServer(ctx, p)
	if err != nil {
		return Result{}, err
	}
	if srv == nil || !srv.IsActive {
		return Result{Status: models.TaskStatusSkipped, Details: map[string]any{"reason": "no active server"}}, nil
	}
	if !p.HasPublicKey() {
		return Result{Status: models.TaskStatusSkipped, Details: map[string]any{"reason": "no public key"}}, nil
	}

	action := "inject"
	if p.IsActive {
		err = e.Live.ApplyPeer(ctx, srv.Interface, p.PublicKey, p.AllowedIP, srv.PersistentKeepalive)
	} else {
		action = "remove"
		err = e.Live.RemovePeer(ctx, srv.Interface, p.PublicKey)
	}
	if err != nil {
		return Result{}, err
	}

	if e.Cache != nil {
		_ = e.Cache.Invalidate(ctx, cache.KeyActivePeers)
	}
	return Result{Status: models.TaskStatusSuccess, Details: map[string]any{"peer": p.Name, "action": action, "interface": srv.Interface}}, nil
}

// -------- Remove-Peer (по tombstone) --------

// removePeer снимает с интерфейса уже удалённого пира. Строки в БД нет,
// работаем только с захваченным публичным ключом.
func (e *Executor) removePeer(ctx context.Context, ts *repo.Tombstone) (Result, error) {
	if ts == nil || ts.PublicKey == "" {
		return Result{Status: models.TaskStatusSkipped, Details: map[string]any{"reason": "no public key"}}, nil
	}

	var srv *models.Server
	var err error
	if ts.ServerID != nil {
		srv, err = e.Servers.GetByID(ctx, *ts.ServerID)
		if errors.Is(err, repo.ErrNotFound) {
			srv, err = nil, nil
		}
	} else {
		srv, err = e.Servers.Default(ctx)
	}
	if err != nil {
		return Result{}, err
	}
	if srv == nil {
		return Result{Status: models.TaskStatusSkipped, Details: map[string]any{"reason": "no active server"}}, nil
	}

	if err := e.Live.RemovePeer(ctx, srv.Interface, ts.PublicKey); err != nil {
		return Result{}, err
	}

	if e.Cache != nil {
		_ = e.Cache.Invalidate(ctx, cache.KeyActivePeers)
	}
	return Result{Status: models.TaskStatusSuccess, Details: map[string]any{"peer": ts.Name, "action": "remove", "interface": srv.Interface}}, nil
}

// -------- helpers --------

func (e *Executor) enqueue(t Task) {
	if !e.Enq.TryEnqueue(t) {
		// Потерянный follow-up догоняется ручным ресинком; падать нельзя.
		logs.Logger.Warnf("enqueue %s(%d) failed: queue unavailable", t.Kind, t.EntityID)
	}
}

func (e *Executor) confLock(serverID uint) *sync.Mutex {
	v, _ := e.confLocks.LoadOrStore(serverID, &sync.Mutex{})
	return v.(*sync.Mutex)
}
