package main

import (
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"nare/internal/config"
	"nare/internal/orchestrator"
	"nare/internal/permission"
	"nare/internal/provider"
	"nare/internal/session"
	"nare/internal/shell"
	"nare/internal/storage"
)

// engine 组装好的运行时依赖
// engine holds the runtime pieces shared by every transport.
type engine struct {
	cfg      config.Config
	log      *zap.Logger
	perms    *permission.Store
	sessions session.Store
	db       *storage.SQLiteStore
	orch     *orchestrator.Orchestrator
}

func buildEngine(cfg config.Config, log *zap.Logger) (*engine, error) {
	kind, err := provider.Select(cfg.Provider, exec.LookPath)
	if err != nil {
		return nil, err
	}
	backend, err := provider.New(kind, cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("init provider: %w", err)
	}

	e := &engine{
		cfg:      cfg,
		log:      log,
		perms:    permission.NewStore(cfg.PermissionsPath()),
		sessions: session.NewMemoryStore(),
	}

	opts := orchestrator.Options{
		MaxRounds:    cfg.Safety.MaxRounds,
		HistoryLimit: cfg.Safety.HistoryLimit,
		Logger:       log,
	}
	if cfg.Storage.Audit || cfg.Storage.PersistSessions {
		db, err := storage.NewSQLiteStore(cfg.DatabasePath())
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		e.db = db
		if cfg.Storage.Audit {
			opts.Auditor = db
		}
		if cfg.Storage.PersistSessions {
			sessions, err := storage.NewSessionStore(db)
			if err != nil {
				_ = db.Close()
				return nil, err
			}
			e.sessions = sessions
		}
	}

	executor := shell.NewExecutor(time.Duration(cfg.Safety.CommandTimeoutMS)*time.Millisecond, cfg.Safety.OutputLimitBytes)
	e.orch = orchestrator.New(backend, e.perms, executor, opts)

	log.Info("engine ready",
		zap.String("provider", backend.Name()),
		zap.String("permissions_file", e.perms.Path()),
		zap.String("permissions", e.perms.Load().Summary()),
		zap.Bool("audit", cfg.Storage.Audit),
		zap.Bool("persist_sessions", cfg.Storage.PersistSessions),
	)
	return e, nil
}

func (e *engine) confirmTTL() time.Duration {
	return time.Duration(e.cfg.Safety.ConfirmTimeoutSec) * time.Second
}

func (e *engine) Close() error {
	if e.db == nil {
		return nil
	}
	if err := e.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
