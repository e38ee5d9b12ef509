// Package commands holds the lineage CLI commands. Every command runs
// against an App assembled once per invocation by Setup.
package commands

import (
	"context"
	"database/sql"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/lineage/am"
	"github.com/teranos/lineage/cache"
	"github.com/teranos/lineage/db"
	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/internal/httpclient"
	"github.com/teranos/lineage/internal/version"
	"github.com/teranos/lineage/lineage"
	"github.com/teranos/lineage/logger"
	"github.com/teranos/lineage/provenance"
	"github.com/teranos/lineage/remote"
	"github.com/teranos/lineage/token"
)

// annotationSkipValidate marks commands that must run with an invalid
// configuration, such as the ones that inspect or rewrite it.
const annotationSkipValidate = "lineage/skip-validate"

type globalOptions struct {
	configPath string
	baseURL    string
	database   string
	offline    bool
	noCache    bool
	jsonOutput bool
	verbose    int
}

var globals globalOptions

// RegisterGlobalFlags adds the persistent flags every command accepts.
func RegisterGlobalFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.CountVarP(&globals.verbose, "verbose", "v", "Increase output verbosity: -v progress, -vv remote calls and cache hits, -vvv traversal, -vvvv bodies")
	f.StringVar(&globals.configPath, "config", "", "Read configuration from this file and built-in defaults only")
	f.StringVar(&globals.baseURL, "base-url", "", "Override remote.base_url")
	f.StringVar(&globals.database, "database", "", "Override remote.database")
	f.BoolVar(&globals.offline, "offline", false, "Load process records from the SQLite mirror instead of the remote service")
	f.BoolVar(&globals.noCache, "no-cache", false, "Bypass the response cache")
	f.BoolVar(&globals.jsonOutput, "json", false, "Output JSON (same as --format json)")
}

// Setup loads configuration, initializes logging and attaches an App to the
// command context.
func Setup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(globals.configPath)
	if err != nil {
		return err
	}
	globals.apply(cfg)

	if cmd.Annotations[annotationSkipValidate] == "" {
		if err := cfg.Validate(); err != nil {
			return errors.WithHint(err, "check 'lineage am show --sources' for where each value comes from")
		}
	}

	verbosity := cfg.Log.EffectiveVerbosity()
	if globals.verbose > verbosity {
		verbosity = globals.verbose
	}
	if err := logger.Initialize(cfg.Log.JSON, verbosity); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithRunID(ctx, uuid.NewString())

	app := NewApp(cfg, logger.FromContext(ctx, logger.Logger))
	if verbosity > logger.VerbosityUser {
		app.Logger.Infow("Verbosity",
			"level", logger.LevelName(verbosity),
			"shows", logger.VerbosityDescription(verbosity))
	}
	app.Offline = globals.offline
	app.Out = cmd.OutOrStdout()
	cmd.SetContext(withApp(ctx, app))
	cobra.OnFinalize(func() { _ = app.Close() })
	return nil
}

func loadConfig(path string) (*am.Config, error) {
	if path != "" {
		return am.LoadFromFile(path)
	}
	return am.Load()
}

// apply copies flag overrides onto cfg.
func (g globalOptions) apply(cfg *am.Config) {
	if g.baseURL != "" {
		cfg.Remote.BaseURL = g.baseURL
	}
	if g.database != "" {
		cfg.Remote.Database = g.database
	}
	if g.noCache {
		cfg.Cache.Disabled = true
	}
}

type appKey struct{}

func withApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey{}, app)
}

// appFrom returns the App Setup attached to cmd.
func appFrom(cmd *cobra.Command) (*App, error) {
	if ctx := cmd.Context(); ctx != nil {
		if app, ok := ctx.Value(appKey{}).(*App); ok {
			return app, nil
		}
	}
	return nil, errors.New("command context has no app; Setup did not run")
}

// App owns the collaborators of one CLI run. Components are built on first
// use so commands that only inspect configuration never touch the network.
type App struct {
	Config  *am.Config
	Logger  *zap.SugaredLogger
	Offline bool
	Out     io.Writer

	// HTTP replaces the transport; tests point it at an httptest server.
	HTTP remote.Doer

	mu       sync.Mutex
	client   *remote.Client
	cache    *cache.Store
	mirrorDB *sql.DB
	session  *provenance.Session
	engine   *lineage.Engine
	resolver *lineage.NameResolver
}

// NewApp returns an App for cfg.
func NewApp(cfg *am.Config, l *zap.SugaredLogger) *App {
	return &App{
		Config: cfg,
		Logger: logger.Named(l, "cli"),
		Out:    os.Stdout,
	}
}

// Cache returns the response cache, or nil when caching is disabled.
func (a *App) Cache() *cache.Store {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cacheLocked()
}

func (a *App) cacheLocked() *cache.Store {
	if a.Config.Cache.Disabled {
		return nil
	}
	if a.cache == nil {
		a.cache = cache.New(a.Config.Cache.Dir,
			cache.WithTTL(a.Config.Cache.TTL()),
			cache.WithLogger(a.Logger))
	}
	return a.cache
}

// Client returns the remote table client.
func (a *App) Client() (*remote.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clientLocked()
}

func (a *App) clientLocked() (*remote.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	rc := a.Config.Remote
	doer := a.HTTP
	if doer == nil {
		doer = httpclient.New(httpclient.Options{
			Timeout:        rc.Timeout(),
			BlockPrivateIP: rc.BlockPrivateIP,
			UserAgent:      version.Get().UserAgent(),
		})
	}
	client, err := remote.New(remote.Config{
		BaseURL:           rc.BaseURL,
		Database:          rc.Database,
		AuthToken:         rc.AuthToken,
		Retries:           rc.Retries,
		RetryDelay:        rc.RetryDelay(),
		Timeout:           rc.Timeout(),
		PageSize:          rc.PageSize,
		RequestsPerSecond: rc.MaxRequestsPerSec,
	},
		remote.WithHTTPClient(doer),
		remote.WithCache(a.cacheLocked()),
		remote.WithLogger(a.Logger))
	if err != nil {
		return nil, err
	}
	a.client = client
	return client, nil
}

// Mirror opens the SQLite mirror, applying migrations on first use.
func (a *App) Mirror() (*db.Mirror, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mirrorLocked()
}

func (a *App) mirrorLocked() (*db.Mirror, error) {
	if a.mirrorDB == nil {
		conn, err := db.OpenWithMigrations(a.Config.Mirror.Path, a.Logger)
		if err != nil {
			return nil, err
		}
		a.mirrorDB = conn
	}
	return db.NewMirror(a.mirrorDB, a.Logger), nil
}

// Session returns the provenance session, backed by the mirror when Offline
// is set and by the remote service otherwise.
func (a *App) Session() (*provenance.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionLocked()
}

func (a *App) sessionLocked() (*provenance.Session, error) {
	if a.session != nil {
		return a.session, nil
	}
	var source provenance.RecordSource
	if a.Offline {
		m, err := a.mirrorLocked()
		if err != nil {
			return nil, err
		}
		source = db.NewSource(m, a.Config.Remote.Database)
	} else {
		client, err := a.clientLocked()
		if err != nil {
			return nil, err
		}
		source = provenance.NewRemoteSource(client, nil, a.Logger)
	}
	a.session = provenance.NewSession(source, a.Logger)
	return a.session, nil
}

// Engine returns the lineage engine. Row lookups always go through the
// remote client and its cache, even in offline mode.
func (a *App) Engine() (*lineage.Engine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.engine != nil {
		return a.engine, nil
	}
	session, err := a.sessionLocked()
	if err != nil {
		return nil, err
	}
	client, err := a.clientLocked()
	if err != nil {
		return nil, err
	}
	t := a.Config.Traversal
	a.engine = lineage.New(session, client,
		lineage.WithParallelism(t.Parallelism),
		lineage.WithMaxDepth(t.MaxDepth),
		lineage.WithLogger(a.Logger))
	return a.engine, nil
}

// Resolver returns the name resolver.
func (a *App) Resolver() (*lineage.NameResolver, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.resolver != nil {
		return a.resolver, nil
	}
	client, err := a.clientLocked()
	if err != nil {
		return nil, err
	}
	a.resolver = lineage.NewNameResolver(client)
	return a.resolver, nil
}

// Labeler renders tokens with their display names.
func (a *App) Labeler(ctx context.Context) (func(token.Token) string, error) {
	r, err := a.Resolver()
	if err != nil {
		return nil, err
	}
	return func(t token.Token) string { return r.Label(ctx, t) }, nil
}

// StartTokens turns command arguments into start tokens. Names are resolved
// through table's <table>_name column unless byID is set.
func (a *App) StartTokens(ctx context.Context, table string, args []string, byID bool) ([]token.Token, error) {
	out := make([]token.Token, 0, len(args))
	if byID {
		for _, id := range args {
			out = append(out, token.New(table, id))
		}
		return out, nil
	}
	r, err := a.Resolver()
	if err != nil {
		return nil, err
	}
	for _, name := range args {
		t, err := r.Token(ctx, table, name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Close releases the mirror connection.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mirrorDB == nil {
		return nil
	}
	err := a.mirrorDB.Close()
	a.mirrorDB = nil
	return err
}
