package fleet

import (
	"context"

	"wgfleet/internal/models"
	"wgfleet/internal/notify"
	"wgfleet/internal/repo"
)

// Service — единственная точка мутаций Server/Peer: запись в стор плюс
// синхронное уведомление Notifier'а. Таблица решений «какая мутация
// какие задачи ставит» целиком в notify и потому аудируется отдельно
// от персистентности. Внешний CRUD обязан ходить только через Service.
type Service struct {
	Servers  *repo.ServerStore
	Peers    *repo.PeerStore
	Notifier *notify.Notifier
}

func New(servers *repo.ServerStore, peers *repo.PeerStore, n *notify.Notifier) *Service {
	return &Service{Servers: servers, Peers: peers, Notifier: n}
}

func (s *Service) SaveServer(ctx context.Context, srv *models.Server) error {
	if err := s.Servers.Save(ctx, srv); err != nil {
		return err
	}
	s.Notifier.ServerSaved(srv)
	return nil
}

func (s *Service) DeleteServer(ctx context.Context, id uint) error {
	if err := s.Servers.Delete(ctx, id); err != nil {
		return err
	}
	s.Notifier.ServerDeleted(id)
	return nil
}

func (s *Service) SavePeer(ctx context.Context, p *models.Peer) error {
	created := p.ID == 0
	if err := s.Peers.Save(ctx, p); err != nil {
		return err
	}
	if created {
		s.Notifier.PeerCreated(p)
	} else {
		s.Notifier.PeerUpdated(p)
	}
	return nil
}

func (s *Service) DeletePeer(ctx context.Context, id uint) error {
	ts, err := s.Peers.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.Notifier.PeerDeleted(ts)
	return nil
}
