package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/config"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/db"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/engine"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/migrate"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/notify"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/repo"
)

const defaultOffice = "default-office"

// Options selects the workspace to open.
type Options struct {
	Workspace string
	// Office overrides office.id from lex.yml.
	Office string
	Memory bool
	Logger *slog.Logger
}

// Workspace bundles an open database with the engine wired over it.
type Workspace struct {
	Dir    string
	DB     *sql.DB
	Repo   repo.Repo
	Config *config.Config
	Engine engine.Engine
	Logger *slog.Logger
}

// Open opens (creating if needed) the workspace database, applies pending
// migrations and wires an engine whose alerts are queued in the outbox.
// A missing lex.yml falls back to the default configuration.
func Open(ctx context.Context, opts Options) (*Workspace, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := LoadConfig(opts.Workspace, opts.Office)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace, Memory: opts.Memory})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	r := repo.New(conn)
	eng := engine.New(conn, cfg, notify.Outbox{Store: r})
	eng.Logger = logger
	return &Workspace{
		Dir:    opts.Workspace,
		DB:     conn,
		Repo:   r,
		Config: cfg,
		Engine: eng,
		Logger: logger,
	}, nil
}

// LoadConfig reads lex.yml from workspace, or returns the defaults when the
// file is absent. A non-empty office replaces the configured office id.
func LoadConfig(workspace, office string) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg == nil {
		id := office
		if id == "" {
			id = defaultOffice
		}
		cfg = config.Default(id)
	}
	if office != "" {
		cfg.Office.ID = office
	}
	return cfg, nil
}

// Dispatcher returns a webhook dispatcher reading from the workspace outbox.
func (w *Workspace) Dispatcher() *notify.Dispatcher {
	d := notify.NewDispatcher(w.Repo, w.Config.Notifications.Webhooks)
	d.Logger = w.Logger
	return d
}

func (w *Workspace) Close() error {
	if w == nil || w.DB == nil {
		return nil
	}
	return w.DB.Close()
}
