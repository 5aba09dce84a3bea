package cli

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/emsync/internal/cache"
	"github.com/roach88/emsync/internal/config"
	"github.com/roach88/emsync/internal/engine"
	"github.com/roach88/emsync/internal/model"
	"github.com/roach88/emsync/internal/mutation"
	"github.com/roach88/emsync/internal/remote"
	"github.com/roach88/emsync/internal/state"
)

// env is everything a command needs, built from config and flags.
type env struct {
	cfg    config.Config
	logger *slog.Logger
	out    *OutputFormatter
	cache  *cache.Cache
	state  *state.Container
	engine *engine.Engine
}

func openEnv(ctx context.Context, opts *RootOptions) (*env, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	logger := newLogger(opts, cfg)

	kv := opts.KV
	if kv == nil {
		logger.Debug("opening cache", "driver", cfg.Cache.Driver, "path", cfg.Cache.Path)
		kv, err = cache.OpenKV(ctx, cfg.CacheOptions())
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open cache", err)
		}
	}
	c := cache.New(kv, cache.WithLogger(logger))

	st := state.New(c, state.WithLogger(logger))
	st.Init(ctx)

	r := opts.Remote
	if r == nil {
		r, err = newRemote(cfg, logger)
		if err != nil {
			c.Close()
			return nil, WrapExitError(ExitCommandError, "failed to open remote store", err)
		}
	}

	engOpts := []engine.Option{engine.WithLogger(logger)}
	if opts.Clock != nil {
		engOpts = append(engOpts, engine.WithClock(opts.Clock))
	}
	if opts.RequestIDs != nil {
		engOpts = append(engOpts, engine.WithRequestIDs(opts.RequestIDs))
	}

	return &env{
		cfg:    cfg,
		logger: logger,
		out:    formatter(opts),
		cache:  c,
		state:  st,
		engine: engine.New(st, r, engOpts...),
	}, nil
}

func (e *env) Close() error {
	e.engine.Stop()
	return e.cache.Close()
}

// loadConfig reads the named config file. Without --config a missing
// emsync.yaml means defaults.
func loadConfig(opts *RootOptions) (config.Config, error) {
	path := opts.Config
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil && opts.Config == "" && errors.Is(err, fs.ErrNotExist) {
		return config.Default().WithEnv(os.LookupEnv), nil
	}
	return cfg, err
}

func newLogger(opts *RootOptions, cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}

	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(stderr(opts), hopts))
	}
	return slog.New(slog.NewTextHandler(stderr(opts), hopts))
}

func newRemote(cfg config.Config, logger *slog.Logger) (remote.Remote, error) {
	switch {
	case cfg.Remote.URL != "":
		return remote.NewClient(cfg.Remote.URL,
			remote.WithFetchTimeout(cfg.Remote.FetchTimeout),
			remote.WithWriteTimeout(cfg.Remote.WriteTimeout),
			remote.WithLogger(logger),
		), nil
	case cfg.Remote.Workbook != "":
		wb, err := remote.OpenWorkbook(cfg.Remote.Workbook)
		if err != nil {
			return nil, err
		}
		logger.Debug("using workbook store", "path", wb.Path())
		return wb, nil
	}
	return remote.Offline{}, nil
}

// identity returns the signed-in user or a command error.
func (e *env) identity() (model.Identity, error) {
	id, ok := e.state.Identity()
	if !ok {
		return model.Identity{}, NewExitError(ExitCommandError, "not logged in (run: emsync login <user-id>)")
	}
	return id, nil
}

// perform runs one planned write.
func (e *env) perform(ctx context.Context, p mutation.Plan) (engine.WriteResult, error) {
	r := e.engine.PerformWrite(ctx, p.Action, p.Payload, p.Next)
	if r.Err != nil {
		return r, WrapExitError(ExitFailure, "write failed", r.Err)
	}
	return r, nil
}

// planError maps planner errors to command errors.
func planError(err error) error {
	return WrapExitError(ExitCommandError, "cannot plan write", err)
}
