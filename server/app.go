package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"wgfleet/config"
	"wgfleet/internal/api"
	"wgfleet/internal/cache"
	"wgfleet/internal/crypto"
	"wgfleet/internal/db"
	"wgfleet/internal/fleet"
	"wgfleet/internal/health"
	"wgfleet/internal/logs"
	"wgfleet/internal/middleware"
	"wgfleet/internal/models"
	"wgfleet/internal/notify"
	"wgfleet/internal/repo"
	"wgfleet/internal/tasks"
	"wgfleet/internal/wg"
)

type App struct {
	cfg        *config.Config
	db         *gorm.DB
	Router     *mux.Router
	httpServer *http.Server

	queue *tasks.Queue

	// Fleet — точка входа мутаций для внешнего CRUD (и для тестов).
	Fleet *fleet.Service

	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) {
	a.cfg = cfg

	/* 1) Логи */
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	/* 2) DB */
	d, err := db.Open(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	a.db = d
	if err := a.db.AutoMigrate(
		&models.Server{},
		&models.Peer{},
		&models.SMTPSettings{},
		&models.TaskLog{},
	); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	/* 3) Кэш (best-effort поверх выбранного бэкенда) */
	var backend cache.Cache
	switch a.cfg.Cache.Backend {
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     a.cfg.Cache.Addr,
			Password: a.cfg.Cache.Pass,
			DB:       a.cfg.Cache.DB,
		})
		backend = cache.NewRedis(client, "wgfleet")
	default:
		backend = cache.NewMemory()
	}
	c := cache.NewBestEffort(backend)

	/* 4) Капабилити хоста */
	cryptoSvc, err := crypto.New(a.cfg.Crypto.Key)
	if err != nil {
		log.Fatalf("crypto init failed: %v", err)
	}
	runner := wg.Runner{Bin: a.cfg.WireGuard.Bin, Sudo: a.cfg.WireGuard.Sudo}
	keygen := wg.Keygen{
		Runner:  runner,
		Timeout: a.cfg.WireGuard.KeygenTimeout,
		Native:  a.cfg.WireGuard.KeygenBackend == "native",
	}
	live := wg.Live{Runner: runner}

	/* 5) Сторы */
	servers := repo.NewServerStore(a.db, c, keygen, cryptoSvc)
	peers := repo.NewPeerStore(a.db, c, servers, cryptoSvc)
	taskLog := repo.NewTaskLogStore(a.db)
	smtp := repo.NewSMTPStore(a.db, c) // хранение реквизитов; отправка почты живёт снаружи

	/* 6) Очередь задач + нотификатор */
	exec := &tasks.Executor{
		Peers:   peers,
		Servers: servers,
		Keygen:  keygen,
		Live:    live,
		Cache:   c,
		ConfDir: a.cfg.WireGuard.ConfDir,
	}
	a.queue = tasks.NewQueue(exec, a.cfg.Queue.Capacity, a.cfg.Queue.Workers, taskLog)
	notifier := notify.New(a.queue, c)
	a.Fleet = fleet.New(servers, peers, notifier)

	/* 7) Router + middleware */
	a.Router = mux.NewRouter().StrictSlash(true)
	a.Router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.LoggerMW,
	)

	/* 8) Health + операционное API */
	health.RegisterRoutesWithDB(a.Router, a.db) // /healthz, /readyz
	api.RegisterRoutes(a.Router, api.New(servers, peers, smtp, taskLog, a.queue))

	/* (необязательно) вывести известные маршруты в лог при старте */
	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		if len(methods) == 0 {
			methods = []string{"ANY"}
		}
		log.Printf("route: %-6v %s", methods, path)
		return nil
	})
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return fmt.Errorf("server not initialized")
	}

	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logs.Logger.Infof("shutdown signal: %s", s)
		a.cancel()
	}()

	a.queue.Start()

	// Жёсткие таймауты — это важно для production
	a.httpServer = &http.Server{
		Addr:              bind,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Logger.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logs.Logger.Errorf("http shutdown: %v", err)
	}

	// Дать очереди дожевать хвост, потом остановить воркеров.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer drainCancel()
	a.queue.Stop(drainCtx)
	return nil
}
