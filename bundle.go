package formflow

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/petrijr/formflow/internal/definition"
	"github.com/petrijr/formflow/internal/flow"
	"github.com/petrijr/formflow/internal/httpserver"
	"github.com/petrijr/formflow/internal/persistence"
	"github.com/petrijr/formflow/internal/resolve"
	"github.com/petrijr/formflow/pkg/api"
)

// ErrReadOnlyDefinitions is returned by Bundle.Define when the bundle's
// definitions come from a source that cannot be written, such as a
// directory of files.
var ErrReadOnlyDefinitions = errors.New("definitions are read-only")

// Options customizes a Bundle.
type Options struct {
	// Observer receives lifecycle events in addition to the bundle's
	// logging observer and metrics.
	Observer Observer
	Logger   *slog.Logger

	// States and Definitions replace the bundle's default stores.
	States      StateStore
	Definitions DefinitionSource
}

// Bundle wires definitions, flow state, the save-resolution engine and
// the flow controller over one set of backends.
type Bundle struct {
	controller *flow.Controller
	metrics    *api.BasicMetrics
	logger     *slog.Logger
	defs       api.DefinitionProvider
}

// NewInMemoryBundle returns a Bundle whose rows, users, states and
// definitions live in process memory. Useful for tests and demos.
func NewInMemoryBundle(opts Options) *Bundle {
	store := persistence.NewInMemoryStore()
	defs := definition.NewInMemoryProvider()

	return newBundle(opts, persistence.Persistence{
		Definitions: defs,
		States:      store,
		Rows:        store,
		Users:       store,
	})
}

// NewSQLBundle returns a Bundle storing everything in db. driver names the
// database/sql driver db was opened with (sqlite, mysql, postgres or pgx).
//
// Typical usage:
//
//	db, _ := sql.Open("sqlite", "file:formflow.db?_pragma=journal_mode(WAL)")
//	bundle, err := formflow.NewSQLBundle(ctx, db, "sqlite", formflow.Options{})
func NewSQLBundle(ctx context.Context, db *sql.DB, driver string, opts Options) (*Bundle, error) {
	dialect, err := persistence.DialectFor(driver)
	if err != nil {
		return nil, err
	}

	p := persistence.Persistence{
		Rows: persistence.NewSQLRowStore(db, dialect),
	}
	if p.Users, err = persistence.NewSQLUserStore(ctx, db, dialect); err != nil {
		return nil, err
	}
	if opts.States == nil {
		if p.States, err = persistence.NewSQLStateStore(ctx, db, dialect); err != nil {
			return nil, err
		}
	}
	if opts.Definitions == nil {
		if p.Definitions, err = definition.NewSQLProvider(ctx, db, dialect); err != nil {
			return nil, err
		}
	}

	return newBundle(opts, p), nil
}

func newBundle(opts Options, p persistence.Persistence) *Bundle {
	if opts.States != nil {
		p.States = opts.States
	}
	if opts.Definitions != nil {
		p.Definitions = opts.Definitions
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics := &api.BasicMetrics{}
	obs := api.NewCompositeObserver(api.NewLoggingObserver(logger), metrics, opts.Observer)

	eng := resolve.NewEngine(resolve.Config{
		Rows:     p.Rows,
		Users:    p.Users,
		Observer: obs,
	})

	return &Bundle{
		controller: flow.NewController(flow.Config{
			Definitions: p.Definitions,
			States:      p.States,
			Resolver:    eng,
			Observer:    obs,
		}),
		metrics: metrics,
		logger:  logger,
		defs:    p.Definitions,
	}
}

// Define stores def for route in the bundle's definition source.
func (b *Bundle) Define(ctx context.Context, route string, def FlowDefinition) error {
	switch d := b.defs.(type) {
	case *definition.InMemoryProvider:
		d.Put(route, def)
		return nil
	case *definition.SQLProvider:
		data, err := definition.Encode(def)
		if err != nil {
			return err
		}
		return d.PutDefinition(ctx, route, data)
	default:
		return ErrReadOnlyDefinitions
	}
}

// Show returns the current step of route for session.
func (b *Bundle) Show(ctx context.Context, session Session, route string) (*Page, error) {
	return b.controller.Show(ctx, session, route)
}

// Submit processes a submitted step of route for session.
func (b *Bundle) Submit(ctx context.Context, session Session, route string, raw map[string]string) (*Outcome, error) {
	return b.controller.Submit(ctx, session, route, raw)
}

// Metrics returns the bundle's counters.
func (b *Bundle) Metrics() BasicMetricsSnapshot {
	return b.metrics.Snapshot()
}

// HTTPOptions customizes Bundle.Handler.
type HTTPOptions struct {
	CookieName   string
	CookieSecure bool
}

// Handler returns an http.Handler serving every route of the bundle.
func (b *Bundle) Handler(opts HTTPOptions) http.Handler {
	return b.server(opts)
}

func (b *Bundle) server(opts HTTPOptions) *httpserver.Server {
	return httpserver.New(httpserver.Config{
		Controller:   b.controller,
		Logger:       b.logger,
		CookieName:   opts.CookieName,
		CookieSecure: opts.CookieSecure,
	})
}

// ListenAndServe serves the bundle on addr until ctx is cancelled.
func (b *Bundle) ListenAndServe(ctx context.Context, addr string, opts HTTPOptions) error {
	return b.server(opts).ListenAndServe(ctx, addr)
}
