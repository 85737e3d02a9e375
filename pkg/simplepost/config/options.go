package config

import (
	"fmt"
	"strings"

	"github.com/tendant/simple-post/pkg/simplepost/objecturl"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend. For sqlite, url is the file path.
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		switch dbType {
		case "memory":
			c.DatabaseURL = ""
		case "postgres":
			if url == "" {
				return fmt.Errorf("database URL is required for postgres")
			}
			c.DatabaseURL = url
		case "sqlite":
			if url == "" {
				return fmt.Errorf("database path is required for sqlite")
			}
			c.SQLitePath = url
		default:
			return fmt.Errorf("database type must be 'memory', 'postgres' or 'sqlite', got: %s", dbType)
		}
		c.DatabaseType = dbType
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithEnsureSchema creates the Postgres tables on startup when enabled
func WithEnsureSchema(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnsureSchema = enabled
		return nil
	}
}

// WithMemoryStorage selects the in-memory blob store
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage = StorageBackendConfig{Type: "memory", Config: map[string]interface{}{}}
		return nil
	}
}

// WithFilesystemStorage selects the filesystem blob store
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Storage = StorageBackendConfig{
			Type: "fs",
			Config: map[string]interface{}{
				"base_dir": baseDir,
			},
		}
		return nil
	}
}

// WithS3Storage selects the S3 blob store
func WithS3Storage(bucket, region string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1"
		}
		c.Storage = StorageBackendConfig{
			Type: "s3",
			Config: map[string]interface{}{
				"bucket": bucket,
				"region": region,
			},
		}
		return nil
	}
}

// WithS3Credentials sets static credentials on the S3 blob store
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		if c.Storage.Type != "s3" {
			return fmt.Errorf("S3 credentials require s3 storage, got: %s", c.Storage.Type)
		}
		c.Storage.Config["access_key_id"] = accessKeyID
		c.Storage.Config["secret_access_key"] = secretAccessKey
		return nil
	}
}

// WithS3Endpoint points the S3 blob store at an S3-compatible service
func WithS3Endpoint(endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		if c.Storage.Type != "s3" {
			return fmt.Errorf("S3 endpoint requires s3 storage, got: %s", c.Storage.Type)
		}
		c.Storage.Config["endpoint"] = endpoint
		c.Storage.Config["use_path_style"] = usePathStyle
		return nil
	}
}

// WithGCSStorage selects the Google Cloud Storage blob store
func WithGCSStorage(bucket, credentialsFile string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("GCS bucket cannot be empty")
		}
		backend := StorageBackendConfig{
			Type: "gcs",
			Config: map[string]interface{}{
				"bucket": bucket,
			},
		}
		if credentialsFile != "" {
			backend.Config["credentials_file"] = credentialsFile
		}
		c.Storage = backend
		return nil
	}
}

// WithPublicLayout sets the public URL layout image objects are served under
func WithPublicLayout(layout objecturl.Layout) Option {
	return func(c *ServerConfig) error {
		layout.BaseURL = strings.TrimRight(layout.BaseURL, "/")
		c.Layout = layout
		return nil
	}
}

// WithLockURL selects the per-slug locker ("memory", "none" or redis://...)
func WithLockURL(lockURL string) Option {
	return func(c *ServerConfig) error {
		if lockURL != "" && lockURL != "memory" && lockURL != "none" &&
			!strings.HasPrefix(lockURL, "redis://") && !strings.HasPrefix(lockURL, "rediss://") {
			return fmt.Errorf("unsupported lock URL: %s", lockURL)
		}
		c.LockURL = lockURL
		return nil
	}
}

// WithRemovalConcurrency bounds parallel blob removals per mutation
func WithRemovalConcurrency(n int) Option {
	return func(c *ServerConfig) error {
		if n < 1 {
			return fmt.Errorf("removal concurrency must be positive, got: %d", n)
		}
		c.RemovalConcurrency = n
		return nil
	}
}

// WithSlugMaxAttempts bounds the slug search
func WithSlugMaxAttempts(n int) Option {
	return func(c *ServerConfig) error {
		if n < 1 {
			return fmt.Errorf("slug max attempts must be positive, got: %d", n)
		}
		c.SlugMaxAttempts = n
		return nil
	}
}

// WithEventLogging enables or disables event logging
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}

// WithDefaults returns an option that applies sensible defaults for development
func WithDefaults() Option {
	return func(c *ServerConfig) error {
		*c = defaults()
		return nil
	}
}
