package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/lib/pq"

	"RucFilter/internal/bridge"
	"RucFilter/internal/config"
	"RucFilter/internal/domain"
	"RucFilter/internal/infrastructure/browser"
	"RucFilter/internal/infrastructure/portal"
	"RucFilter/internal/infrastructure/scheduler"
	"RucFilter/internal/infrastructure/sheets"
	"RucFilter/internal/infrastructure/storage"
	"RucFilter/internal/infrastructure/telegram"
	"RucFilter/internal/logging"
	"RucFilter/internal/ports"
	"RucFilter/internal/session"
	"RucFilter/internal/store"
	"RucFilter/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
// Browser, sheet and database are opened on first use.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	operator ports.Operator
	registry *session.Registry

	browserOnce sync.Once
	browser     *browser.Browser
	browserErr  error

	workbookOnce sync.Once
	workbook     *sheets.Workbook
	workbookErr  error

	dbOnce sync.Once
	ledger *storage.PostgresLedger
	db     *sql.DB
}

// New builds the application; nothing external is contacted yet.
func New(cfg config.Config, baseLogger *slog.Logger, operator ports.Operator) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	a := &Application{cfg: cfg, logger: baseLogger, operator: operator}
	a.registry = session.NewRegistry(session.Policy{
		Attempts:   cfg.Session.Attempts,
		RetryDelay: cfg.Session.RetryDelay,
		Cooldown:   cfg.Session.Cooldown,
	}, baseLogger.With("component", "session"))
	a.registerPortals()
	return a
}

// Config returns the loaded configuration.
func (a *Application) Config() config.Config {
	return a.cfg
}

func (a *Application) registerPortals() {
	p := a.cfg.Portals

	a.registry.Register(string(domain.StageRegistry), a.browserPortal(func(d portal.Deps) session.Portal {
		return portal.NewSunat(portal.SunatConfig{URL: p.Sunat.URL}, d)
	}))
	a.registry.Register(string(domain.StagePhone), a.browserPortal(func(d portal.Deps) session.Portal {
		return portal.NewEntel(portal.EntelConfig{
			LoginURL: p.Entel.LoginURL, OperationsURL: p.Entel.HomeURL,
			Username: p.Entel.Username, Password: p.Entel.Password,
		}, d)
	}))
	a.registry.Register(string(domain.StageSegment), a.browserPortal(func(d portal.Deps) session.Portal {
		return portal.NewSegment(portal.SegmentConfig{
			LoginURL: p.Segment.LoginURL, HomeURL: p.Segment.HomeURL,
			Username: p.Segment.Username, Password: p.Segment.Password,
		}, d)
	}))
	a.registry.Register(string(domain.StageLines), a.browserPortal(func(d portal.Deps) session.Portal {
		return portal.NewOsiptel(portal.OsiptelConfig{URL: p.Osiptel.URL}, d)
	}))
	a.registry.Register(string(domain.StageCoverage), a.browserPortal(func(d portal.Deps) session.Portal {
		return portal.NewCoverage(portal.CoverageConfig{
			BaseURL: p.Coverage.HomeURL, Username: p.Coverage.Username, Password: p.Coverage.Password,
		}, d)
	}))
	a.registry.Register(bridge.PortalDNI, func(context.Context) (session.Portal, error) {
		return portal.NewDNI(portal.DNIConfig{
			AddressURL: p.DNI.AddressURL, AddressToken: p.DNI.AddressToken,
			PersonURL: p.DNI.PersonURL, PersonKey: p.DNI.PersonKey,
		}), nil
	})
}

// browserPortal adapts a portal constructor into a factory that gives every
// session its own incognito page.
func (a *Application) browserPortal(build func(portal.Deps) session.Portal) session.Factory {
	return func(ctx context.Context) (session.Portal, error) {
		b, err := a.sharedBrowser(ctx)
		if err != nil {
			return nil, err
		}
		page, err := b.NewPage(ctx)
		if err != nil {
			return nil, err
		}
		return build(portal.Deps{Page: page, Operator: a.operator, Logger: a.logger.With("component", "portal")}), nil
	}
}

func (a *Application) sharedBrowser(ctx context.Context) (*browser.Browser, error) {
	a.browserOnce.Do(func() {
		bc := a.cfg.Browser
		a.browser, a.browserErr = browser.Launch(context.WithoutCancel(ctx), browser.Options{
			Headless: bc.Headless, Bin: bc.Bin, NoSandbox: bc.NoSandbox, Timeout: bc.Timeout,
		})
	})
	return a.browser, a.browserErr
}

func (a *Application) openSession(ctx context.Context, name string) (ports.SiteSession, error) {
	s, err := a.registry.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// openSheet returns a sheet connection; Google backends get a fresh client
// per call, the local workbook is shared.
func (a *Application) openSheet(ctx context.Context) (ports.Sheet, error) {
	sc := a.cfg.Sheet
	switch sc.Backend {
	case config.BackendWorkbook:
		a.workbookOnce.Do(func() {
			a.workbook, a.workbookErr = sheets.OpenWorkbook(sc.WorkbookPath, sc.Tab)
		})
		if a.workbookErr != nil {
			return nil, a.workbookErr
		}
		return a.workbook, nil
	case config.BackendGoogle, "":
		g, err := sheets.NewGoogle(ctx, sc.CredentialsFile, sc.SpreadsheetID, sc.Tab)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown sheet backend %q", sc.Backend)
	}
}

func (a *Application) openStore(ctx context.Context) (*store.Store, error) {
	sheet, err := a.openSheet(ctx)
	if err != nil {
		return nil, err
	}
	sc := a.cfg.Store
	return store.New(sheet, store.Options{
		WriteAttempts:   sc.WriteAttempts,
		RetryBackoff:    sc.RetryBackoff,
		RowDelay:        sc.RowDelay,
		RequestInterval: sc.RequestInterval,
		ChunkRows:       sc.ChunkRows,
	}, a.logger.With("component", "store")), nil
}

// runLedger opens Postgres once; a missing or unreachable database only disables history.
func (a *Application) runLedger(ctx context.Context) *storage.PostgresLedger {
	a.dbOnce.Do(func() {
		if a.cfg.Database.DSN == "" {
			return
		}
		db, err := sql.Open("postgres", a.cfg.Database.DSN)
		if err == nil {
			err = db.PingContext(ctx)
		}
		if err != nil {
			a.logger.Warn("run ledger disabled", "error", err)
			if db != nil {
				_ = db.Close()
			}
			return
		}
		ledger := storage.NewPostgresLedger(db)
		if err := ledger.Migrate(ctx); err != nil {
			a.logger.Warn("run ledger disabled", "error", err)
			_ = db.Close()
			return
		}
		a.db, a.ledger = db, ledger
	})
	return a.ledger
}

func (a *Application) notifier() ports.Notifier {
	t := a.cfg.Notifications.Telegram
	if t.BotToken == "" || t.ChatID == "" {
		return nil
	}
	return telegram.NewNotifier(t.API, t.BotToken, t.ChatID)
}

// RunParams are the per-invocation knobs of a stage run; zero values use the stage config.
type RunParams struct {
	Workers     int
	FlushEvery  int
	Limit       int
	SkipConfirm bool
	RetryErrors bool
	OnStart     func(pending int)
	OnOutcome   func(domain.Outcome)
}

// RunStage executes one batch run of stage.
func (a *Application) RunStage(ctx context.Context, stage domain.Stage, params RunParams) (domain.RunSummary, error) {
	reader, err := a.openStore(ctx)
	if err != nil {
		return domain.RunSummary{Stage: stage}, fmt.Errorf("open store: %w", err)
	}

	deps := usecase.CoordinatorDeps{
		Store: reader,
		Sessions: func(ctx context.Context, s domain.Stage) (ports.SiteSession, error) {
			return a.openSession(ctx, string(s))
		},
		Writers: func(ctx context.Context) (ports.RecordWriter, error) {
			s, err := a.openStore(ctx)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		Operator: a.operator,
		Notifier: a.notifier(),
		Logger:   a.logger.With("component", "coordinator"),
	}
	if ledger := a.runLedger(ctx); ledger != nil {
		deps.Ledger = ledger
	}

	sc := a.cfg.Stage(stage)
	opts := usecase.RunOptions{
		Workers:      pick(params.Workers, sc.Workers),
		FlushEvery:   pick(params.FlushEvery, sc.FlushEvery),
		Stagger:      sc.Stagger,
		Pause:        sc.Pause,
		ConfirmAbove: a.cfg.Run.ConfirmAbove,
		Limit:        params.Limit,
		RetryErrors:  params.RetryErrors,
		OnStart:      params.OnStart,
		OnOutcome:    params.OnOutcome,
	}
	if params.SkipConfirm {
		opts.ConfirmAbove = 0
	}

	return usecase.NewCoordinator(deps).Run(ctx, stage, opts)
}

// Deduplicate removes repeated RUCs from the dataset.
func (a *Application) Deduplicate(ctx context.Context) (int, error) {
	s, err := a.openStore(ctx)
	if err != nil {
		return 0, fmt.Errorf("open store: %w", err)
	}
	return s.Deduplicate(ctx)
}

// NextSequenceID reports the next free display ID.
func (a *Application) NextSequenceID(ctx context.Context) (int, error) {
	s, err := a.openStore(ctx)
	if err != nil {
		return 0, fmt.Errorf("open store: %w", err)
	}
	return s.NextSequenceID(ctx)
}

// History lists recent runs from the ledger.
func (a *Application) History(ctx context.Context, stage domain.Stage, limit uint64) ([]domain.RunSummary, error) {
	ledger := a.runLedger(ctx)
	if ledger == nil {
		return nil, errors.New("run history needs a reachable database (DATABASE_DSN)")
	}
	return ledger.Recent(ctx, stage, limit)
}

// ServeBridge runs the interactive bridge until ctx is cancelled.
func (a *Application) ServeBridge(ctx context.Context, addr string) error {
	bc := a.cfg.Bridge
	if addr == "" {
		addr = bc.Addr
	}
	warm, ok := domain.ParseCoordinate(bc.WarmPoint)
	if !ok {
		return fmt.Errorf("invalid bridge warm point %q", bc.WarmPoint)
	}

	svc := bridge.NewService(a.openSession, warm, a.logger)
	logger := a.logger.With("component", "bridge")
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("close sessions", "error", err)
		}
	}()

	if err := svc.Warm(ctx); err != nil {
		logger.Warn("coverage pre-warm failed", "error", err)
	}

	keepAlive := usecase.NewKeepAlive(scheduler.NewTicker(bc.KeepAlive, false), svc.Touch, logger)
	if err := keepAlive.Start(ctx); err != nil {
		return fmt.Errorf("start keep-alive: %w", err)
	}
	defer func() {
		_ = keepAlive.Stop(context.WithoutCancel(ctx))
	}()

	return bridge.NewServer(addr, bridge.NewHandler(svc, logger), logger).Run(ctx)
}

// Close releases the browser, workbook and database.
func (a *Application) Close() error {
	var errs []error
	if a.browser != nil {
		errs = append(errs, a.browser.Close())
	}
	if a.workbook != nil {
		errs = append(errs, a.workbook.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

func pick(override, fallback int) int {
	if override > 0 {
		return override
	}
	return fallback
}
