package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/jurypanel/jurypanel/storage"
)

// Config holds every runtime parameter of the application.
type Config struct {
	DatabaseURL     string
	JWTSecretKey    string
	AdminPassphrase string
	ServerPort      int

	// SessionDBPath is the sqlite file for session state and caches.
	SessionDBPath string

	// SeedFile optionally points at a contests JSON loaded at startup.
	SeedFile string

	// CriteriaJSON optionally overrides the built-in criteria set.
	CriteriaJSON string

	// Backup holds S3 settings; nil when backups are not configured.
	Backup *storage.S3Config
}

// Load reads configuration from environment variables, optionally picking up
// a local .env file first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	adminPassphrase := os.Getenv("ADMIN_PASSPHRASE")
	if adminPassphrase == "" {
		return nil, fmt.Errorf("ADMIN_PASSPHRASE environment variable is not set")
	}

	portStr := os.Getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	sessionDBPath := os.Getenv("SESSION_DB_PATH")
	if sessionDBPath == "" {
		sessionDBPath = "./session.db"
	}

	cfg := &Config{
		DatabaseURL:     dbURL,
		JWTSecretKey:    jwtKey,
		AdminPassphrase: adminPassphrase,
		ServerPort:      port,
		SessionDBPath:   sessionDBPath,
		SeedFile:        os.Getenv("SEED_FILE"),
		CriteriaJSON:    os.Getenv("CRITERIA_JSON"),
	}

	// Backups are optional; all-or-nothing when any S3 variable is set.
	bucket := os.Getenv("S3_BUCKET_NAME")
	accessKey := os.Getenv("S3_ACCESS_KEY_ID")
	secretKey := os.Getenv("S3_SECRET_ACCESS_KEY")
	if bucket != "" || accessKey != "" || secretKey != "" {
		if bucket == "" || accessKey == "" || secretKey == "" {
			return nil, fmt.Errorf("incomplete S3 configuration: S3_BUCKET_NAME, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must all be set")
		}
		cfg.Backup = &storage.S3Config{
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Region:          os.Getenv("S3_REGION"),
			AccessKeyID:     accessKey,
			SecretAccessKey: secretKey,
			BucketName:      bucket,
		}
	}

	return cfg, nil
}
