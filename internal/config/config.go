package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int

	// DatabasePath is the SQLite database file backing the document store
	// and the account registry.
	DatabasePath string

	// Namespace scopes the public post collection path.
	Namespace string

	// TokenSecret signs identity session tokens.
	TokenSecret string

	// GeminiUpstreamURL overrides the generation API base URL. Empty means
	// the public Gemini endpoint. The API key itself (GEMINI_API_KEY) is
	// read by the proxy at request time and never appears here.
	GeminiUpstreamURL string
}

// Load reads configuration from the environment, after loading a local .env
// file if one exists. Missing optional values fall back to defaults.
func Load() (*Config, error) {
	// A missing .env is fine; the environment still wins.
	_ = godotenv.Load()

	port := 3000
	if p := os.Getenv("PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
	}

	dbPath := os.Getenv("BLOG_DB_PATH")
	if dbPath == "" {
		dbPath = "community-feed.db"
	}

	namespace := os.Getenv("BLOG_NAMESPACE")
	if namespace == "" {
		namespace = "spaceandstories"
	}

	secret := os.Getenv("BLOG_TOKEN_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("BLOG_TOKEN_SECRET is required")
	}

	return &Config{
		Port:              port,
		DatabasePath:      dbPath,
		Namespace:         namespace,
		TokenSecret:       secret,
		GeminiUpstreamURL: os.Getenv("GEMINI_UPSTREAM_URL"),
	}, nil
}
