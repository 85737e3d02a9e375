package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Environment variable mapping:
//
// Server (cmd/post-server only):
//
//	PORT - Server port (default: "8080")
//	ENVIRONMENT - Runtime environment (default: "development")
//
// Database:
//
//	DATABASE_URL - one of:
//	               - "memory" (default)
//	               - "postgresql://..." or "postgres://..."
//	               - "sqlite:///path/to/posts.db"
//	DB_SCHEMA - Postgres search_path
//	DB_ENSURE_SCHEMA - create tables on startup (postgres)
//
// Storage:
//
//	STORAGE_URL - one of:
//	              - "memory://" (default)
//	              - "file:///path/to/data"
//	              - "s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true"
//	              - "gs://bucket?emulator=http://localhost:4443"
//	PUBLIC_BASE_URL - base of public image URLs, e.g. "https://abc.supabase.co/storage/v1"
//	STORAGE_ROUTING_SEGMENT - path segment preceding the object path (e.g. "object")
//	STORAGE_ACCESS_SEGMENT - optional access segment after routing (e.g. "public")
//	STORAGE_BUCKET_PREFIX - bucket segment preceding the key (e.g. "blog-pictures")
//
// Engine:
//
//	LOCK_URL - "memory" (default), "none" or "redis://host:6379/0"
//	REMOVAL_CONCURRENCY - parallel blob removals per mutation
//	SLUG_MAX_ATTEMPTS - slug candidate bound
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		if v, ok := lookupEnv(prefix, "PORT"); ok && v != "" {
			c.Port = v
		}
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}

		if err := applyDatabaseEnv(prefix, c); err != nil {
			return err
		}
		if err := applyStorageEnv(prefix, c); err != nil {
			return err
		}
		applyLayoutEnv(prefix, c)

		if v, ok := lookupEnv(prefix, "LOCK_URL"); ok && v != "" {
			c.LockURL = v
		}
		if n, ok, err := parseIntEnv(prefix, "REMOVAL_CONCURRENCY"); err != nil {
			return err
		} else if ok {
			c.RemovalConcurrency = n
		}
		if n, ok, err := parseIntEnv(prefix, "SLUG_MAX_ATTEMPTS"); err != nil {
			return err
		} else if ok {
			c.SlugMaxAttempts = n
		}
		if b, ok, err := parseBoolEnv(prefix, "EVENT_LOGGING"); err != nil {
			return err
		} else if ok {
			c.EnableEventLogging = b
		}

		return nil
	}
}

// applyDatabaseEnv applies database configuration from environment
func applyDatabaseEnv(prefix string, c *ServerConfig) error {
	if v, ok := lookupEnv(prefix, "DB_SCHEMA"); ok {
		c.DBSchema = v
	}
	if b, ok, err := parseBoolEnv(prefix, "DB_ENSURE_SCHEMA"); err != nil {
		return err
	} else if ok {
		c.EnsureSchema = b
	}

	dbURL, hasURL := lookupEnv(prefix, "DATABASE_URL")
	if !hasURL || dbURL == "" || dbURL == "memory" {
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
		return nil
	}

	switch {
	case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
	case strings.HasPrefix(dbURL, "sqlite://"):
		path := strings.TrimPrefix(dbURL, "sqlite://")
		if path == "" {
			return fmt.Errorf("sqlite path cannot be empty in DATABASE_URL")
		}
		c.DatabaseType = "sqlite"
		c.SQLitePath = path
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgresql://...' or 'sqlite://...')", dbURL)
	}

	return nil
}

// applyStorageEnv applies storage configuration from environment
func applyStorageEnv(prefix string, c *ServerConfig) error {
	storageURL, hasURL := lookupEnv(prefix, "STORAGE_URL")

	if !hasURL || storageURL == "" || storageURL == "memory" || storageURL == "memory://" {
		c.Storage = StorageBackendConfig{Type: "memory", Config: map[string]interface{}{}}
		return nil
	}

	switch {
	case strings.HasPrefix(storageURL, "file://"):
		return applyFilesystemStorage(storageURL, c)
	case strings.HasPrefix(storageURL, "s3://"):
		return applyS3Storage(storageURL, c)
	case strings.HasPrefix(storageURL, "gs://"):
		return applyGCSStorage(storageURL, c)
	}

	return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', 's3://...' or 'gs://...')", storageURL)
}

// applyFilesystemStorage configures filesystem storage from URL
// Format: file:///path/to/data
func applyFilesystemStorage(raw string, c *ServerConfig) error {
	path := strings.TrimPrefix(raw, "file://")
	if path == "" {
		return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
	}

	c.Storage = StorageBackendConfig{
		Type: "fs",
		Config: map[string]interface{}{
			"base_dir": path,
		},
	}
	return nil
}

// applyS3Storage configures S3 storage from URL
// Format: s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true
func applyS3Storage(raw string, c *ServerConfig) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
	}

	backend := StorageBackendConfig{
		Type: "s3",
		Config: map[string]interface{}{
			"bucket": u.Host,
			"region": "us-east-1",
		},
	}

	if accessKey, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok && accessKey != "" {
		backend.Config["access_key_id"] = accessKey
	}
	if secretKey, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok && secretKey != "" {
		backend.Config["secret_access_key"] = secretKey
	}
	if region, ok := os.LookupEnv("AWS_REGION"); ok && region != "" {
		backend.Config["region"] = region
	}

	q := u.Query()
	if v := q.Get("region"); v != "" {
		backend.Config["region"] = v
	}
	if v := q.Get("endpoint"); v != "" {
		backend.Config["endpoint"] = v
	}
	if v := q.Get("path_style"); v != "" {
		backend.Config["use_path_style"] = v
	}
	if v := q.Get("sse"); v != "" {
		backend.Config["enable_sse"] = true
		backend.Config["sse_algorithm"] = v
	}

	c.Storage = backend
	return nil
}

// applyGCSStorage configures Google Cloud Storage from URL
// Format: gs://bucket?emulator=http://localhost:4443
func applyGCSStorage(raw string, c *ServerConfig) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("GCS bucket name cannot be empty in STORAGE_URL")
	}

	backend := StorageBackendConfig{
		Type: "gcs",
		Config: map[string]interface{}{
			"bucket": u.Host,
		},
	}
	if v := u.Query().Get("emulator"); v != "" {
		backend.Config["emulator_host"] = v
	}
	if creds, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS"); ok && creds != "" {
		backend.Config["credentials_file"] = creds
	}

	c.Storage = backend
	return nil
}

// applyLayoutEnv applies the public URL layout from environment
func applyLayoutEnv(prefix string, c *ServerConfig) {
	if v, ok := lookupEnv(prefix, "PUBLIC_BASE_URL"); ok {
		c.Layout.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := lookupEnv(prefix, "STORAGE_ROUTING_SEGMENT"); ok {
		c.Layout.RoutingSegment = v
	}
	if v, ok := lookupEnv(prefix, "STORAGE_ACCESS_SEGMENT"); ok {
		c.Layout.AccessSegment = v
	}
	if v, ok := lookupEnv(prefix, "STORAGE_BUCKET_PREFIX"); ok {
		c.Layout.Bucket = v
	}
}

func lookupEnv(prefix, key string) (string, bool) {
	return os.LookupEnv(prefix + key)
}

func parseBoolEnv(prefix, key string) (bool, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("invalid boolean for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}

func parseIntEnv(prefix, key string) (int, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid integer for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}
