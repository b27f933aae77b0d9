package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"wgfleet/internal/models"
)

func TestSaveGeneratesMissingKeys(t *testing.T) {
	e := newEnv(t)
	srv := e.mustServer(t, "main", true)

	if srv.PublicKey == "" || srv.PrivateKeyEncrypted == "" {
		t.Fatal("save must generate a key pair when none is present")
	}
	// Приватный ключ расшифровывается обратно в 44-символьный токен.
	priv, err := e.servers.PrivateKey(srv)
	if err != nil {
		t.Fatalf("PrivateKey: %v", err)
	}
	if len(priv) != 44 {
		t.Fatalf("expected 44-char private key, got %d", len(priv))
	}
	if e.keygen.n != 1 {
		t.Fatalf("expected exactly one keygen call, got %d", e.keygen.n)
	}
}

func TestSaveKeepsExistingKeys(t *testing.T) {
	e := newEnv(t)
	srv := e.mustServer(t, "main", true)
	pub := srv.PublicKey

	srv.Name = "renamed"
	if err := e.servers.Save(context.Background(), srv); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if srv.PublicKey != pub {
		t.Fatal("existing keys must not be regenerated")
	}
	if e.keygen.n != 1 {
		t.Fatalf("keygen must not run again, got %d calls", e.keygen.n)
	}
}

func TestSaveKeygenFailureAbortsWrite(t *testing.T) {
	e := newEnv(t)
	e.keygen.err = errBoom

	srv := &models.Server{Name: "broken", Endpoint: "x:1", Address: "10.0.0.1/24", IsActive: true}
	err := e.servers.Save(context.Background(), srv)
	if err == nil || !errors.Is(err, errBoom) {
		t.Fatalf("expected keygen failure to be fatal, got %v", err)
	}

	// Никакой полузаполненной строки в БД.
	var n int64
	e.db.Model(&models.Server{}).Count(&n)
	if n != 0 {
		t.Fatalf("no server row may be persisted, found %d", n)
	}
}

func TestSaveRejectsBadCIDR(t *testing.T) {
	e := newEnv(t)
	srv := &models.Server{Name: "bad", Endpoint: "x:1", Address: "not-a-cidr"}
	if err := e.servers.Save(context.Background(), srv); err == nil {
		t.Fatal("expected CIDR validation error")
	}
}

func TestDefaultPicksMostRecentActive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	old := e.mustServer(t, "old", true)
	// created_at должен различаться, sqlite хранит миллисекунды.
	e.db.Model(old).Update("created_at", time.Now().Add(-time.Hour))
	_ = e.mustServer(t, "inactive", false)
	fresh := e.mustServer(t, "fresh", true)

	def, err := e.servers.Default(ctx)
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if def == nil || def.ID != fresh.ID {
		t.Fatalf("expected most recently created active server, got %+v", def)
	}
}

func TestDefaultNoneActive(t *testing.T) {
	e := newEnv(t)
	_ = e.mustServer(t, "inactive", false)

	def, err := e.servers.Default(context.Background())
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if def != nil {
		t.Fatal("no active servers: resolution must yield none, not an error")
	}
}

func TestDefaultUsesCacheUntilInvalidated(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	first := e.mustServer(t, "first", true)

	def, _ := e.servers.Default(ctx)
	if def.ID != first.ID {
		t.Fatalf("unexpected default %d", def.ID)
	}

	// Новый сервер через Save инвалидирует default-server — выбор меняется.
	second := e.mustServer(t, "second", true)
	def, _ = e.servers.Default(ctx)
	if def.ID != second.ID {
		t.Fatalf("expected default to move to %d after invalidation, got %d", second.ID, def.ID)
	}
}

func TestConfigDictCached(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	srv := e.mustServer(t, "main", true)

	cfg, err := e.servers.ConfigDict(ctx, srv.ID)
	if err != nil {
		t.Fatalf("ConfigDict: %v", err)
	}
	if cfg.Endpoint != srv.Endpoint || cfg.PublicKey != srv.PublicKey {
		t.Fatalf("config mismatch: %+v", cfg)
	}

	// Правка в обход Save не видна, пока запись в кэше жива.
	e.db.Model(srv).Update("endpoint", "sneaky:1")
	cfg, _ = e.servers.ConfigDict(ctx, srv.ID)
	if cfg.Endpoint != srv.Endpoint {
		t.Fatal("expected cached config to be served")
	}

	// Save инвалидирует — свежее значение.
	srv.Endpoint = "updated.example.com:51820"
	if err := e.servers.Save(ctx, srv); err != nil {
		t.Fatalf("save: %v", err)
	}
	cfg, _ = e.servers.ConfigDict(ctx, srv.ID)
	if cfg.Endpoint != "updated.example.com:51820" {
		t.Fatalf("expected fresh config after invalidation, got %q", cfg.Endpoint)
	}
}

func TestDeleteProtectedByPeers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	srv := e.mustServer(t, "main", true)

	p := &models.Peer{Name: "alice", Email: "a@example.com", ServerID: uintPtr(srv.ID), AllowedIP: "10.0.0.2", IsActive: true}
	if err := e.peers.Save(ctx, p); err != nil {
		t.Fatalf("save peer: %v", err)
	}

	err := e.servers.Delete(ctx, srv.ID)
	if !errors.Is(err, ErrServerHasPeers) {
		t.Fatalf("expected ErrServerHasPeers, got %v", err)
	}

	// Сервер и пир на месте.
	if _, err := e.servers.GetByID(ctx, srv.ID); err != nil {
		t.Fatalf("server must survive: %v", err)
	}
	if _, err := e.peers.GetByID(ctx, p.ID); err != nil {
		t.Fatalf("peer must survive: %v", err)
	}

	// Без пиров удаление проходит.
	if _, err := e.peers.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete peer: %v", err)
	}
	if err := e.servers.Delete(ctx, srv.ID); err != nil {
		t.Fatalf("delete server: %v", err)
	}
	if _, err := e.servers.GetByID(ctx, srv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStats(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	srv := e.mustServer(t, "main", true)

	for i, active := range []bool{true, true, false} {
		p := &models.Peer{
			Name: "p", Email: "p@example.com",
			ServerID: uintPtr(srv.ID), AllowedIP: "10.0.0.2", IsActive: active,
		}
		if err := e.peers.Save(ctx, p); err != nil {
			t.Fatalf("save peer %d: %v", i, err)
		}
	}

	st, err := e.servers.Stats(ctx, srv.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.ActivePeers != 2 || st.InactivePeers != 1 || st.TotalPeers != 3 {
		t.Fatalf("unexpected stats %+v", st)
	}
}
