// Command formflowd serves form flows over HTTP.
//
// Usage:
//
//	formflowd [-config formflow.yaml] serve
//	formflowd [-config formflow.yaml] define <route> <settings.json|.yaml>
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"

	"github.com/petrijr/formflow"
	"github.com/petrijr/formflow/internal/config"
	"github.com/petrijr/formflow/internal/definition"
	"github.com/petrijr/formflow/internal/persistence"
)

func main() {
	configPath := flag.String("config", os.Getenv("FORMFLOW_CONFIG"), "path to a YAML config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] serve | define <route> <file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "formflowd: %v\n", err)
		os.Exit(2)
	}
	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := flag.Args()
	switch {
	case len(args) == 1 && args[0] == "serve":
		err = serve(ctx, cfg, logger)
	case len(args) == 3 && args[0] == "define":
		err = define(ctx, cfg, args[1], args[2])
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("formflowd failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	db, err := openDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := formflow.Options{Logger: logger}

	closeStates, err := stateStore(ctx, cfg.State, &opts)
	if err != nil {
		return err
	}
	defer closeStates()

	switch cfg.Definitions.Backend {
	case "file":
		opts.Definitions = definition.NewFileProvider(cfg.Definitions.Dir)
	case "memory":
		opts.Definitions = definition.NewInMemoryProvider()
	}

	bundle, err := formflow.NewSQLBundle(ctx, db, cfg.Database.Driver, opts)
	if err != nil {
		return fmt.Errorf("wire bundle: %w", err)
	}

	logger.Info("formflowd listening",
		slog.String("addr", cfg.HTTP.Addr),
		slog.String("database", cfg.Database.Driver),
		slog.String("state", cfg.State.Backend),
		slog.String("definitions", cfg.Definitions.Backend),
	)
	return bundle.ListenAndServe(ctx, cfg.HTTP.Addr, formflow.HTTPOptions{
		CookieName:   cfg.HTTP.CookieName,
		CookieSecure: cfg.HTTP.CookieSecure,
	})
}

// stateStore sets opts.States for the non-SQL backends and returns a
// function releasing its client.
func stateStore(ctx context.Context, cfg config.StateConfig, opts *formflow.Options) (func(), error) {
	switch cfg.Backend {
	case "memory":
		opts.States = persistence.NewInMemoryStore()
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		opts.States = persistence.NewRedisStateStore(client, cfg.RedisPrefix, cfg.TTL)
		return func() { _ = client.Close() }, nil
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("ping mongo: %w", err)
		}
		opts.States = persistence.NewMongoStateStore(client, cfg.MongoDatabase, cfg.MongoCollection)
		return func() { _ = client.Disconnect(context.Background()) }, nil
	}
	return func() {}, nil
}

func define(ctx context.Context, cfg config.Config, route, path string) error {
	if cfg.Definitions.Backend != "sql" {
		return fmt.Errorf("define needs the sql definitions backend, have %q", cfg.Definitions.Backend)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Stored documents are JSON; YAML input is converted.
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		def, err := definition.ParseYAML(data)
		if err != nil {
			return err
		}
		if data, err = definition.Encode(def); err != nil {
			return err
		}
	case ".json":
	default:
		return errors.New("settings file must be .json, .yaml or .yml")
	}

	db, err := openDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	dialect, err := persistence.DialectFor(cfg.Database.Driver)
	if err != nil {
		return err
	}
	p, err := definition.NewSQLProvider(ctx, db, dialect)
	if err != nil {
		return err
	}
	if err := p.PutDefinition(ctx, route, data); err != nil {
		return err
	}

	slog.Info("definition stored", slog.String("route", route), slog.String("file", path))
	return nil
}

func openDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == "sqlite" {
		// A single connection serializes writers across the stores sharing db.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return db, nil
}
