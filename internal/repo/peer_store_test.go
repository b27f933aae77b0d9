package repo

import (
	"context"
	"errors"
	"testing"

	"wgfleet/internal/cache"
	"wgfleet/internal/models"
)

func TestResolveServerOwnBeatsDefault(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	def := e.mustServer(t, "default", true)
	own := e.mustServer(t, "own", true)

	owned := &models.Peer{Name: "a", Email: "a@x", ServerID: uintPtr(own.ID), AllowedIP: "10.0.0.2", IsActive: true}
	floating := &models.Peer{Name: "b", Email: "b@x", AllowedIP: "10.0.0.3", IsActive: true}
	for _, p := range []*models.Peer{owned, floating} {
		if err := e.peers.Save(ctx, p); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	srv, err := e.peers.ResolveServer(ctx, owned)
	if err != nil || srv == nil || srv.ID != own.ID {
		t.Fatalf("owned peer must resolve its own server, got %+v err=%v", srv, err)
	}
	srv, err = e.peers.ResolveServer(ctx, floating)
	if err != nil || srv == nil {
		t.Fatalf("floating peer must resolve the default server, got %+v err=%v", srv, err)
	}
	// Default — самый свежий активный; own создан позже def.
	if srv.ID == def.ID {
		t.Fatalf("default must be the most recent active server, got %d", srv.ID)
	}
}

func TestResolveServerNone(t *testing.T) {
	e := newEnv(t)
	p := &models.Peer{Name: "orphan", Email: "o@x", AllowedIP: "10.0.0.9", DNS: "1.1.1.1", IsActive: true}
	if err := e.peers.Save(context.Background(), p); err != nil {
		t.Fatalf("save: %v", err)
	}

	srv, err := e.peers.ResolveServer(context.Background(), p)
	if err != nil || srv != nil {
		t.Fatalf("expected (nil, nil), got %+v err=%v", srv, err)
	}

	// Зависимые чтения падают на поля пира, не в ошибку.
	if got := p.EffectiveEndpoint(srv); got != "" {
		t.Fatalf("expected empty endpoint, got %q", got)
	}
	if got := p.EffectiveDNS(srv); got != "1.1.1.1" {
		t.Fatalf("expected peer DNS override, got %q", got)
	}
}

func TestSaveRejectsUnknownPlatform(t *testing.T) {
	e := newEnv(t)
	p := &models.Peer{Name: "x", Email: "x@x", AllowedIP: "10.0.0.2", Platform: "symbian"}
	if err := e.peers.Save(context.Background(), p); err == nil {
		t.Fatal("expected platform validation error")
	}
}

func TestActivePeersCacheLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_ = e.mustServer(t, "main", true)

	a := &models.Peer{Name: "a", Email: "a@x", AllowedIP: "10.0.0.2", IsActive: true, PublicKey: "PKA"}
	b := &models.Peer{Name: "b", Email: "b@x", AllowedIP: "10.0.0.3", IsActive: false, PublicKey: "PKB"}
	for _, p := range []*models.Peer{a, b} {
		if err := e.peers.Save(ctx, p); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	snaps, err := e.peers.ActivePeers(ctx)
	if err != nil {
		t.Fatalf("ActivePeers: %v", err)
	}
	if len(snaps) != 1 || snaps[0].ID != a.ID {
		t.Fatalf("expected only the active peer, got %+v", snaps)
	}
	if snaps[0].ServerEndpoint == "" {
		t.Fatal("snapshot must carry the resolved endpoint")
	}

	// Второй вызов — из кэша.
	if _, ok, _ := e.cache.Get(ctx, cache.KeyActivePeers); !ok {
		t.Fatal("expected active-peers cache entry")
	}

	// Активация второго пира инвалидирует список.
	b.IsActive = true
	if err := e.peers.Save(ctx, b); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok, _ := e.cache.Get(ctx, cache.KeyActivePeers); ok {
		t.Fatal("save must invalidate active-peers")
	}
	snaps, _ = e.peers.ActivePeers(ctx)
	if len(snaps) != 2 {
		t.Fatalf("expected 2 active peers, got %d", len(snaps))
	}
}

func TestActivePeersForServerIncludesFloating(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	def := e.mustServer(t, "default", true)
	other := e.mustServer(t, "other", true) // становится новым дефолтом

	owned := &models.Peer{Name: "a", Email: "a@x", ServerID: uintPtr(def.ID), AllowedIP: "10.0.0.2", IsActive: true}
	floating := &models.Peer{Name: "b", Email: "b@x", AllowedIP: "10.0.0.3", IsActive: true}
	for _, p := range []*models.Peer{owned, floating} {
		if err := e.peers.Save(ctx, p); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	// Для дефолтного сервера (other) — плавающие пиры его.
	got, err := e.peers.ActivePeersForServer(ctx, other.ID)
	if err != nil {
		t.Fatalf("ActivePeersForServer: %v", err)
	}
	if len(got) != 1 || got[0].ID != floating.ID {
		t.Fatalf("default server must own floating peers, got %+v", got)
	}

	// Для не-дефолтного — только явно привязанные.
	got, err = e.peers.ActivePeersForServer(ctx, def.ID)
	if err != nil {
		t.Fatalf("ActivePeersForServer: %v", err)
	}
	if len(got) != 1 || got[0].ID != owned.ID {
		t.Fatalf("non-default server gets only owned peers, got %+v", got)
	}
}

func TestDeleteReturnsTombstone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	srv := e.mustServer(t, "main", true)

	p := &models.Peer{Name: "a", Email: "a@x", ServerID: uintPtr(srv.ID), AllowedIP: "10.0.0.2", IsActive: true, PublicKey: "PKDEL"}
	if err := e.peers.Save(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}

	ts, err := e.peers.Delete(ctx, p.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ts.PublicKey != "PKDEL" || ts.PeerID != p.ID || ts.ServerID == nil || *ts.ServerID != srv.ID {
		t.Fatalf("tombstone must capture key and server: %+v", ts)
	}
	if _, err := e.peers.GetByID(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := e.peers.Delete(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: expected ErrNotFound, got %v", err)
	}
}

func TestSetKeysWriteThrough(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	p := &models.Peer{Name: "a", Email: "a@x", AllowedIP: "10.0.0.2", IsActive: true}
	if err := e.peers.Save(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := e.peers.SetKeys(ctx, p.ID, "NEWPUB", "NEWPRIV"); err != nil {
		t.Fatalf("SetKeys: %v", err)
	}

	got, _ := e.peers.GetByID(ctx, p.ID)
	if got.PublicKey != "NEWPUB" {
		t.Fatalf("public key not persisted: %q", got.PublicKey)
	}
	priv, err := e.peers.PrivateKey(got)
	if err != nil || priv != "NEWPRIV" {
		t.Fatalf("private key round trip: %q err=%v", priv, err)
	}

	if err := e.peers.SetKeys(ctx, 99999, "P", "S"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing peer, got %v", err)
	}
}
