package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/plasmareport/plasmareport/pkg/config"
	"github.com/plasmareport/plasmareport/pkg/model"
	"github.com/plasmareport/plasmareport/pkg/nesting"
	"github.com/plasmareport/plasmareport/pkg/stores"
	"github.com/plasmareport/plasmareport/pkg/telemetry"
	"github.com/plasmareport/plasmareport/pkg/workflow"
)

// app is everything a command needs to run workflow operations.
type app struct {
	cfg     *config.Config
	tel     *telemetry.Telemetry
	logger  zerolog.Logger
	store   *stores.SQLiteStore
	source  nesting.Source
	service *workflow.Service
	lang    language.Tag

	closers []io.Closer
}

// loadConfig reads the configuration named by --config and applies --verbose
// and --lang.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if displayLang != "" {
		cfg.Display.Language = displayLang
	}
	return cfg, nil
}

// openApp loads the configuration and wires telemetry, the store, the
// nesting source and the workflow service.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	lang, err := model.ParseLanguage(cfg.Display.Language)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	a := &app{cfg: cfg, tel: tel, logger: tel.Logger.Zerolog(), lang: lang}

	store, err := openStore(ctx, cfg)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store)

	source, err := a.openSource()
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.source = source

	tel.Events.Subscribe(workflow.AuditSubscriber(store, a.logger), nil)
	a.service = workflow.NewService(store, source, workflow.WithTelemetry(tel))

	return a, nil
}

// openStore opens the SQLite store and applies pending migrations when the
// configuration asks for it.
func openStore(ctx context.Context, cfg *config.Config) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(cfg.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return store, nil
}

func (a *app) openSource() (nesting.Source, error) {
	var contract *nesting.Contract
	if !a.cfg.Nesting.SkipContract {
		c, err := nesting.NewContract()
		if err != nil {
			return nil, fmt.Errorf("failed to compile nesting contract: %w", err)
		}
		contract = c
	}

	switch a.cfg.Nesting.Kind {
	case "sql":
		src, err := nesting.NewSQLSource(a.cfg.SQLConfig(), contract, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open nesting database: %w", err)
		}
		a.closers = append(a.closers, src)
		return src, nil
	case "files":
		src, err := nesting.NewFileSource(a.cfg.Nesting.ExportDir, contract, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open nesting exports: %w", err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown nesting source kind %q", a.cfg.Nesting.Kind)
	}
}

// Close releases the source, the store and telemetry in reverse order.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	if a.tel != nil {
		errs = append(errs, a.tel.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// withApp runs fn against a freshly opened app and closes it afterwards.
func withApp(ctx context.Context, fn func(a *app) error) (err error) {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close(context.WithoutCancel(ctx)))
	}()
	return fn(a)
}
