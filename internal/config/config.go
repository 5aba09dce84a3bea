// Package config loads emsync.yaml.
//
// A config file is decoded twice: once into a generic document that is
// checked against the embedded CUE schema, then strictly into Config. The
// schema catches bad enumerations and duration syntax with a path in the
// message; the strict decode catches anything the schema let through.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/emsync/internal/cache"
	"github.com/roach88/emsync/internal/remote"
)

//go:embed schema.cue
var schemaSource string

// DefaultPath is the config file read when none is named.
const DefaultPath = "emsync.yaml"

// EnvURL overrides remote.url when set.
const EnvURL = "EMSYNC_URL"

// Config is the decoded configuration.
type Config struct {
	Remote Remote `yaml:"remote"`
	Cache  Cache  `yaml:"cache"`
	Sync   Sync   `yaml:"sync"`
	Log    Log    `yaml:"log"`
}

// Remote selects the store. With neither URL nor Workbook set, emsync runs
// offline.
type Remote struct {
	URL          string        `yaml:"url"`
	Workbook     string        `yaml:"workbook"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type Cache struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	Redis  Redis  `yaml:"redis"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type Sync struct {
	Interval time.Duration `yaml:"interval"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Remote: Remote{
			FetchTimeout: remote.DefaultFetchTimeout,
			WriteTimeout: remote.DefaultWriteTimeout,
		},
		Cache: Cache{
			Driver: cache.DriverSQLite,
			Path:   "emsync.db",
		},
		Sync: Sync{Interval: 5 * time.Minute},
		Log:  Log{Level: "info", Format: "text"},
	}
}

// Load reads and validates the file at path, then applies environment
// overrides. A missing file is reported with an error wrapping
// fs.ErrNotExist.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg.WithEnv(os.LookupEnv), nil
}

// Parse validates and decodes a YAML document over Default.
func Parse(data []byte) (Config, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := Validate(doc); err != nil {
		return Config{}, err
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks a decoded YAML document against the schema. A nil
// document (empty file) is valid.
func Validate(doc any) error {
	if doc == nil {
		return nil
	}
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(doc))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Details: cueerrors.Details(err, nil)}
	}
	return nil
}

// ValidationError is a config document that does not match the schema.
type ValidationError struct {
	Details string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + e.Details
}

// WithEnv returns c with environment overrides from lookup applied.
func (c Config) WithEnv(lookup func(string) (string, bool)) Config {
	if url, ok := lookup(EnvURL); ok && url != "" {
		c.Remote.URL = url
	}
	return c
}

// CacheOptions converts the cache section for cache.OpenKV.
func (c Config) CacheOptions() cache.Options {
	return cache.Options{
		Driver: c.Cache.Driver,
		Path:   c.Cache.Path,
		Redis: cache.RedisOptions{
			Addr:     c.Cache.Redis.Addr,
			Password: c.Cache.Redis.Password,
			DB:       c.Cache.Redis.DB,
			Prefix:   c.Cache.Redis.Prefix,
		},
	}
}
