package notify

import (
	"context"

	"wgfleet/internal/cache"
	"wgfleet/internal/logs"
	"wgfleet/internal/models"
	"wgfleet/internal/repo"
	"wgfleet/internal/tasks"
)

// Notifier — явный контракт побочных эффектов мутаций сущностей.
// Работает синхронно на потоке записи и обязан быть дешёвым: только
// инвалидация кэша и неблокирующая постановка задач. Никаких subprocess'ов
// и сетевых вызовов. Провал постановки логируется и глотается — запись
// сущности из-за него не откатывается.
type Notifier struct {
	Queue tasks.Enqueuer
	Cache cache.Cache
}

func New(q tasks.Enqueuer, c cache.Cache) *Notifier {
	return &Notifier{Queue: q, Cache: c}
}

// PeerCreated: только Onboard. Инъекцию в живой интерфейс поставит сам
// Onboard, когда у пира появятся ключи.
func (n *Notifier) PeerCreated(p *models.Peer) {
	n.enqueue(tasks.Task{Kind: tasks.KindOnboard, EntityID: p.ID})
}

// PeerUpdated: сразу Inject-Peer; если публичного ключа всё ещё нет —
// вместо этого Onboard (он сам дотянет инъекцию).
func (n *Notifier) PeerUpdated(p *models.Peer) {
	if !p.HasPublicKey() {
		n.enqueue(tasks.Task{Kind: tasks.KindOnboard, EntityID: p.ID})
		return
	}
	n.enqueue(tasks.Task{Kind: tasks.KindInjectPeer, EntityID: p.ID})
}

// PeerDeleted получает tombstone, захваченный ДО удаления строки:
// перечитывать удалённого пира по id нельзя.
func (n *Notifier) PeerDeleted(ts *repo.Tombstone) {
	n.invalidate(cache.KeyActivePeers)
	if ts == nil {
		return
	}
	n.enqueue(tasks.Task{Kind: tasks.KindRemovePeer, EntityID: ts.PeerID, Tombstone: ts})
}

// ServerSaved: создание и обновление неразличимы — в обоих случаях
// сбрасываем производные записи и регенерируем конфиг интерфейса.
func (n *Notifier) ServerSaved(srv *models.Server) {
	n.invalidate(cache.KeyDefaultServer, cache.KeyServerConfig(srv.ID), cache.KeyActivePeers)
	n.enqueue(tasks.Task{Kind: tasks.KindSyncConfig, EntityID: srv.ID})
}

// ServerDeleted: только инвалидация — конфиг удалённого сервера
// регенерировать не имеет смысла.
func (n *Notifier) ServerDeleted(serverID uint) {
	n.invalidate(cache.KeyDefaultServer, cache.KeyServerConfig(serverID), cache.KeyActivePeers)
}

func (n *Notifier) enqueue(t tasks.Task) {
	if n.Queue == nil || !n.Queue.TryEnqueue(t) {
		logs.Logger.Errorf("notify: enqueue %s(%d) failed", t.Kind, t.EntityID)
	}
}

func (n *Notifier) invalidate(keys ...string) {
	if n.Cache == nil {
		return
	}
	if err := n.Cache.Invalidate(context.Background(), keys...); err != nil {
		logs.Logger.Warnf("notify: cache invalidate %v: %v", keys, err)
	}
}
