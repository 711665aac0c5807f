package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/portalgate/internal/portal/common/clock"
	"github.com/haukened/portalgate/internal/portal/common/log"
	"github.com/haukened/portalgate/internal/portal/common/uri"
	"github.com/haukened/portalgate/internal/portal/config"
	"github.com/haukened/portalgate/internal/portal/domain"
	"github.com/haukened/portalgate/internal/portal/gateways/htmldoc"
	"github.com/haukened/portalgate/internal/portal/gateways/transport"
	"github.com/haukened/portalgate/internal/portal/repos/activity"
	"github.com/haukened/portalgate/internal/portal/repos/blocklist"
	"github.com/haukened/portalgate/internal/portal/repos/blocklist/bloom"
	"github.com/haukened/portalgate/internal/portal/repos/blocklist/bolt"
	"github.com/haukened/portalgate/internal/portal/repos/blocklist/lru"
	"github.com/haukened/portalgate/internal/portal/repos/blocklist/parsers"
	"github.com/haukened/portalgate/internal/portal/repos/session"
	"github.com/haukened/portalgate/internal/portal/repos/storage"
	"github.com/haukened/portalgate/internal/portal/services/assets"
	"github.com/haukened/portalgate/internal/portal/services/audit"
	"github.com/haukened/portalgate/internal/portal/services/navigation"
	"github.com/haukened/portalgate/internal/portal/services/pipeline"
	"github.com/haukened/portalgate/internal/portal/services/quantity"
	"github.com/haukened/portalgate/internal/portal/services/redirect"
)

const (
	// Version information
	version    = "0.1.0-dev"
	appName    = "portalgated"
	moduleName = "Menu Remover"

	// bloomFPRate is the target false-positive rate of the slug filter.
	bloomFPRate = 0.01

	defaultShutdownTimeout = 10 * time.Second
)

// Application holds all the components of the portal gateway
type Application struct {
	config    *config.AppConfig
	db        *bbolt.DB
	transport transport.ServerTransport
	recorder  *audit.Recorder
}

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Configure global logging
	err = log.Configure(cfg.Env, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"app":       appName,
		"version":   version,
		"env":       cfg.Env,
		"log_level": cfg.Log.Level,
		"port":      cfg.Gateway.Port,
		"upstream":  cfg.Gateway.Upstream,
		"target":    cfg.Storefront.Target,
		"slugs":     cfg.Navigation.Slugs,
	}, "Starting portal gateway")

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Server failed")
	}

	log.Info(nil, "Portal gateway stopped gracefully")
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	clk := &clock.RealClock{}
	logger := log.GetLogger()

	upstream, err := url.Parse(cfg.Gateway.Upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream: %w", err)
	}

	db, err := storage.Open(cfg.Store.DB)
	if err != nil {
		return nil, err
	}

	app, err := wire(cfg, db, upstream, clk, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

// wire builds repositories, services and the gateway on an open database.
func wire(cfg *config.AppConfig, db *bbolt.DB, upstream *url.URL, clk clock.Clock, logger log.Logger) (*Application, error) {
	repos, err := buildRepositories(cfg, db, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build repositories: %w", err)
	}

	recorder := audit.New(audit.Options{
		Sink:   repos.activity,
		Clock:  clk,
		Logger: log.With(logger, map[string]any{"component": "audit"}),
	})

	target := uri.SiteURL(cfg.Gateway.SiteURL, cfg.Storefront.Target)
	cartURL := uri.SiteURL(cfg.Gateway.SiteURL, cfg.Storefront.Cart)

	root := redirect.NewDecider(redirect.DeciderOptions{
		Target:   target,
		Activity: recorder,
		Logger:   logger,
	})
	login := redirect.NewLoginFlow(redirect.LoginFlowOptions{
		Sessions: repos.sessions,
		Target:   target,
		Marker:   cfg.Storefront.Marker,
		Activity: recorder,
		Logger:   logger,
	})
	notice := pipeline.NewAdminNotice(logger)
	clamp := quantity.NewClamp(quantity.Options{
		Marker:   cfg.Storefront.Marker,
		Activity: recorder,
		Logger:   logger,
	})
	filter := navigation.NewFilter(navigation.FilterOptions{
		Blocklist: repos.blocklist,
		Activity:  recorder,
		Logger:    logger,
	})
	snapshots := &htmldoc.SnapshotStore{}

	documents := []pipeline.DocumentStage{
		{Name: "navigation", Policy: htmldoc.NewNavigationRewriter(htmldoc.NavigationOptions{
			Filter:    filter,
			Snapshots: snapshots,
			Logger:    logger,
		})},
	}

	var headAssets transport.Assets
	if cfg.Assets.Enabled {
		renderer, err := assets.New(assets.Options{
			Slugs:   repos.blocklist.Slugs(),
			Hrefs:   cfg.Assets.Hrefs,
			CartURL: cartURL,
			Marker:  cfg.Storefront.Marker,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to render assets: %w", err)
		}
		headAssets = renderer
		documents = append([]pipeline.DocumentStage{
			{Name: "sidebar", Policy: htmldoc.NewSidebarInjector(renderer, logger)},
		}, documents...)
		documents = append(documents, pipeline.DocumentStage{
			Name: "head_assets", Policy: htmldoc.NewHeadInjector(renderer, logger),
		})
	} else {
		log.Info(map[string]any{"disabled": true}, "Client asset injection disabled")
	}

	pl := pipeline.New(pipeline.Options{
		Stages: []pipeline.Stage{
			{Name: "root_redirect", Policy: root},
			{Name: "login_redirect", Policy: login},
			{Name: "admin_notice", Policy: notice},
			{Name: "quantity_clamp", Policy: clamp},
		},
		Documents: documents,
		Logger:    logger,
	})

	adminPaths, err := uri.NewMatcher(cfg.Admin.Paths)
	if err != nil {
		return nil, fmt.Errorf("invalid admin paths: %w", err)
	}
	loginPaths, err := uri.NewMatcher(cfg.Session.LoginPaths)
	if err != nil {
		return nil, fmt.Errorf("invalid login paths: %w", err)
	}
	logoutPaths, err := uri.NewMatcher(cfg.Session.LogoutPaths)
	if err != nil {
		return nil, fmt.Errorf("invalid logout paths: %w", err)
	}
	staticPaths, err := uri.NewMatcher(cfg.Session.StaticPaths)
	if err != nil {
		return nil, fmt.Errorf("invalid static paths: %w", err)
	}

	gw, err := transport.NewGateway(transport.Options{
		Upstream:   upstream,
		Pipeline:   pl,
		Sessions:   repos.sessions,
		Login:      login,
		Root:       root,
		Notice:     notice,
		Navigation: filter,
		Assets:     headAssets,
		Clamp:      clamp,
		Activity:   repos.activity,
		Snapshots:  snapshots,
		Stats:      repos.blocklist,
		Info: transport.ModuleInfo{
			Name:    moduleName,
			Target:  target,
			Marker:  cfg.Storefront.Marker,
			CartURL: cartURL,
		},
		SessionCookie: cfg.Session.Cookie,
		Modules:       cfg.Storefront.Modules,
		AdminPaths:    adminPaths,
		LoginPaths:    loginPaths,
		LogoutPaths:   logoutPaths,
		StaticPaths:   staticPaths,
		AdminToken:    cfg.Admin.Token,
		Logger:        log.With(logger, map[string]any{"component": "gateway"}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway: %w", err)
	}

	log.Info(map[string]any{
		"upstream": upstream.String(),
		"target":   target,
		"stages":   pl.StageNames(),
		"admin":    cfg.Admin.Token != "",
	}, "Gateway configured")

	return &Application{
		config:    cfg,
		db:        db,
		transport: transport.NewHTTPTransport(cfg.Addr(), gw.Handler(), logger),
		recorder:  recorder,
	}, nil
}

// repositories holds all repository implementations
type repositories struct {
	blocklist blocklist.Repository
	sessions  *session.Store
	activity  *activity.Store
}

// buildRepositories creates the bbolt-backed stores and loads the slug
// block-list.
func buildRepositories(cfg *config.AppConfig, db *bbolt.DB, clk clock.Clock, logger log.Logger) (*repositories, error) {
	store, err := bolt.New(db)
	if err != nil {
		return nil, fmt.Errorf("failed to open blocklist store: %w", err)
	}
	cache, err := lru.New(cfg.Navigation.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision cache: %w", err)
	}
	repo := blocklist.NewRepository(store, cache, bloom.NewFactory(), bloomFPRate)

	rules, err := loadRules(cfg, clk.Now(), logger)
	if err != nil {
		return nil, err
	}
	now := clk.Now()
	if err := repo.Load(rules, uint64(now.UnixNano()), now.Unix()); err != nil {
		return nil, fmt.Errorf("failed to load blocklist: %w", err)
	}
	log.Info(map[string]any{
		"slugs": repo.Slugs(),
		"cache": cfg.Navigation.CacheSize,
	}, "Navigation blocklist loaded")

	sessions, err := session.New(db, clk)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	acts, err := activity.New(db, cfg.Store.ActivityRetention)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity store: %w", err)
	}

	return &repositories{
		blocklist: repo,
		sessions:  sessions,
		activity:  acts,
	}, nil
}

// loadRules merges the configured slugs with the optional slug file.
// Configured slugs win on duplicates.
func loadRules(cfg *config.AppConfig, now time.Time, logger log.Logger) ([]domain.SlugRule, error) {
	rules := parsers.RulesFromSlugs(cfg.Navigation.Slugs, "config", logger, now)
	if cfg.Navigation.File == "" {
		return rules, nil
	}
	f, err := os.Open(cfg.Navigation.File)
	if err != nil {
		return nil, fmt.Errorf("failed to open slug file: %w", err)
	}
	defer func() { _ = f.Close() }()
	fromFile, err := parsers.ParseSlugList(f, cfg.Navigation.File, logger, now)
	if err != nil {
		return nil, fmt.Errorf("failed to parse slug file: %w", err)
	}
	return parsers.Merge(rules, fromFile), nil
}

// Run starts the gateway and blocks until ctx is cancelled.
func (app *Application) Run(ctx context.Context) error {
	defer func() {
		if err := app.db.Close(); err != nil {
			log.Warn(map[string]any{"error": err}, "Error closing store")
		}
	}()

	if err := app.transport.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP transport: %w", err)
	}
	app.recorder.Record("Module activated", map[string]any{"version": version})

	log.Info(map[string]any{
		"address":   app.transport.Address(),
		"transport": "HTTP",
	}, "Portal gateway started")

	<-ctx.Done()

	log.Info(nil, "Shutdown initiated")

	stopped := make(chan error, 1)
	go func() { stopped <- app.transport.Stop() }()

	select {
	case err := <-stopped:
		if err != nil {
			log.Warn(map[string]any{"error": err}, "Error during transport shutdown")
		}
		app.recorder.Record("Module deactivated", nil)
		log.Info(nil, "Graceful shutdown completed")
		return nil
	case <-time.After(defaultShutdownTimeout):
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout}, "Shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout")
	}
}
