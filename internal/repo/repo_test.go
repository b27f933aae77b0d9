package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wgfleet/internal/cache"
	"wgfleet/internal/crypto"
	"wgfleet/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Именованная in-memory БД: живёт, пока открыт пул этого теста.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Server{}, &models.Peer{}, &models.SMTPSettings{}, &models.TaskLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type fakeKeygen struct {
	n   int
	err error
}

func (f *fakeKeygen) Generate(context.Context) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	f.n++
	// 44-символьные base64-подобные токены, различимые между вызовами.
	priv := fmt.Sprintf("priv%02d", f.n) + strings.Repeat("x", 37) + "="
	pub := fmt.Sprintf("pub%02d", f.n) + strings.Repeat("y", 38) + "="
	return priv, pub, nil
}

type env struct {
	db      *gorm.DB
	cache   *cache.Memory
	keygen  *fakeKeygen
	crypto  *crypto.Service
	servers *ServerStore
	peers   *PeerStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := openTestDB(t)
	mem := cache.NewMemory()
	kg := &fakeKeygen{}
	cr, err := crypto.New("")
	if err != nil {
		t.Fatalf("crypto: %v", err)
	}
	servers := NewServerStore(db, mem, kg, cr)
	peers := NewPeerStore(db, mem, servers, cr)
	return &env{db: db, cache: mem, keygen: kg, crypto: cr, servers: servers, peers: peers}
}

func (e *env) mustServer(t *testing.T, name string, active bool) *models.Server {
	t.Helper()
	srv := &models.Server{
		Name:     name,
		Endpoint: name + ".example.com:51820",
		Address:  "10.0.0.1/24",
		IsActive: active,
	}
	if err := e.servers.Save(context.Background(), srv); err != nil {
		t.Fatalf("save server %s: %v", name, err)
	}
	return srv
}

func uintPtr(v uint) *uint { return &v }

var errBoom = errors.New("boom")
