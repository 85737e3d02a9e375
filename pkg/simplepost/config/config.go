package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-post/pkg/simplepost"
	lockmemory "github.com/tendant/simple-post/pkg/simplepost/lock/memory"
	redislock "github.com/tendant/simple-post/pkg/simplepost/lock/redis"
	"github.com/tendant/simple-post/pkg/simplepost/objecturl"
	"github.com/tendant/simple-post/pkg/simplepost/repo/memory"
	repopg "github.com/tendant/simple-post/pkg/simplepost/repo/postgres"
	reposqlite "github.com/tendant/simple-post/pkg/simplepost/repo/sqlite"
	fsstorage "github.com/tendant/simple-post/pkg/simplepost/storage/fs"
	gcsstorage "github.com/tendant/simple-post/pkg/simplepost/storage/gcs"
	memorystorage "github.com/tendant/simple-post/pkg/simplepost/storage/memory"
	s3storage "github.com/tendant/simple-post/pkg/simplepost/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		DatabaseType: "memory",
		Storage: StorageBackendConfig{
			Type:   "memory",
			Config: map[string]interface{}{},
		},
		LockURL:            "memory",
		RemovalConcurrency: simplepost.DefaultRemovalConcurrency,
		SlugMaxAttempts:    simplepost.DefaultMaxSlugAttempts,
		EnableEventLogging: true,
	}
}

// ServerConfig represents configuration for the post service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres", "sqlite"
	DBSchema     string // Postgres search_path; empty leaves the server default
	SQLitePath   string
	EnsureSchema bool // create tables on startup (postgres; sqlite always does)

	// Blob storage holding image bytes, and the public URL layout its
	// objects are served under
	Storage StorageBackendConfig
	Layout  objecturl.Layout

	// LockURL selects the per-slug locker: "memory", "none" or a redis:// URL
	LockURL string

	RemovalConcurrency int
	SlugMaxAttempts    int

	EnableEventLogging bool
}

// StorageBackendConfig represents configuration for the blob storage backend
type StorageBackendConfig struct {
	Type   string // "memory", "fs", "s3", "gcs"
	Config map[string]interface{}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("sqlite path is required when using sqlite")
		}
	default:
		return errors.New("database_type must be 'memory', 'postgres' or 'sqlite'")
	}

	switch c.Storage.Type {
	case "memory":
	case "fs":
		if getString(c.Storage.Config, "base_dir", "") == "" {
			return errors.New("base_dir is required for fs storage")
		}
	case "s3", "gcs":
		if getString(c.Storage.Config, "bucket", "") == "" {
			return fmt.Errorf("bucket is required for %s storage", c.Storage.Type)
		}
	default:
		return fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}

	if c.RemovalConcurrency < 1 {
		return errors.New("removal_concurrency must be at least 1")
	}
	if c.SlugMaxAttempts < 1 {
		return errors.New("slug_max_attempts must be at least 1")
	}

	return nil
}

// Runtime holds a built service together with the components the server
// needs direct access to. Close releases pools and clients.
type Runtime struct {
	Service simplepost.Service
	Store   simplepost.MetadataStore
	Blobs   simplepost.ObjectStore

	closers []func() error
}

// Close releases every resource acquired by Build, returning the joined errors.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService() (simplepost.Service, error) {
	rt, err := c.Build(context.Background())
	if err != nil {
		return nil, err
	}
	return rt.Service, nil
}

// Build creates the metadata store, blob store and locker named by the
// configuration and wires them into a Service.
func (c *ServerConfig) Build(ctx context.Context) (*Runtime, error) {
	rt := &Runtime{}
	fail := func(err error) (*Runtime, error) {
		_ = rt.Close()
		return nil, err
	}

	store, err := c.buildRepository(ctx, rt)
	if err != nil {
		return fail(fmt.Errorf("failed to build repository: %w", err))
	}
	rt.Store = store

	blobs, err := c.buildStorageBackend(ctx, rt)
	if err != nil {
		return fail(fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Type, err))
	}
	rt.Blobs = blobs

	locker, err := c.buildLocker(rt)
	if err != nil {
		return fail(fmt.Errorf("failed to build locker: %w", err))
	}

	options := []simplepost.Option{
		simplepost.WithMetadataStore(store),
		simplepost.WithBlobStore(blobs),
		simplepost.WithLocker(locker),
		simplepost.WithRemovalConcurrency(c.RemovalConcurrency),
		simplepost.WithMaxSlugAttempts(c.SlugMaxAttempts),
	}
	if c.EnableEventLogging {
		options = append(options, simplepost.WithEventSink(simplepost.NewLoggingEventSink(slog.Default())))
	}

	svc, err := simplepost.New(options...)
	if err != nil {
		return fail(err)
	}
	rt.Service = svc
	return rt, nil
}

// buildRepository creates a MetadataStore based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, rt *Runtime) (simplepost.MetadataStore, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil
	case "postgres":
		if c.DatabaseURL == "" {
			return nil, errors.New("database_url is required for postgres")
		}
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		schema := c.DBSchema
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if schema == "" {
				return nil
			}
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
			return err
		}
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		rt.closers = append(rt.closers, func() error { pool.Close(); return nil })

		repo := repopg.NewWithPool(pool)
		if c.EnsureSchema {
			if err := repo.EnsureSchema(ctx); err != nil {
				return nil, err
			}
		}
		return repo, nil
	case "sqlite":
		repo, err := reposqlite.New(c.SQLitePath)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, repo.Close)
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// PingPostgres verifies connectivity to Postgres and optionally sets search_path for the session.
// It fails if the schema (when provided) does not exist.
func PingPostgres(databaseURL, schema string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildStorageBackend creates an ObjectStore based on the backend configuration
func (c *ServerConfig) buildStorageBackend(ctx context.Context, rt *Runtime) (simplepost.ObjectStore, error) {
	config := c.Storage
	switch config.Type {
	case "memory":
		return memorystorage.New(c.Layout), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: getString(config.Config, "base_dir", "./data/storage"),
			Layout:  c.Layout,
		})

	case "s3":
		s3Config := s3storage.Config{
			Region:                 getString(config.Config, "region", "us-east-1"),
			Bucket:                 getString(config.Config, "bucket", ""),
			AccessKeyID:            getString(config.Config, "access_key_id", ""),
			SecretAccessKey:        getString(config.Config, "secret_access_key", ""),
			Endpoint:               getString(config.Config, "endpoint", ""),
			UsePathStyle:           getBool(config.Config, "use_path_style", false),
			Layout:                 c.Layout,
			EnableSSE:              getBool(config.Config, "enable_sse", false),
			SSEAlgorithm:           getString(config.Config, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(config.Config, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket_if_not_exist", false),
		}
		return s3storage.New(s3Config)

	case "gcs":
		backend, err := gcsstorage.New(ctx, gcsstorage.Config{
			Bucket:          getString(config.Config, "bucket", ""),
			CredentialsFile: getString(config.Config, "credentials_file", ""),
			EmulatorHost:    getString(config.Config, "emulator_host", ""),
			Layout:          c.Layout,
		})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, backend.Close)
		return backend, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", config.Type)
	}
}

// buildLocker creates the per-slug Locker named by LockURL
func (c *ServerConfig) buildLocker(rt *Runtime) (simplepost.Locker, error) {
	switch c.LockURL {
	case "", "memory":
		return lockmemory.New(), nil
	case "none":
		return simplepost.NoopLocker{}, nil
	}
	locker, err := redislock.NewFromURL(c.LockURL, redislock.WithLogger(slog.Default()))
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, locker.Close)
	return locker, nil
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}
