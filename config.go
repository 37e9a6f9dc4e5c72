package main

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// config collects the launcher settings. Either the server command or
// an API URL to attach to is required; everything else carries desktop
// defaults.
type config struct {
	// serverCmd is the command line that starts the bundled persistence
	// server, split on whitespace.
	serverCmd string
	// serverDir is the working directory the server runs from. The
	// bundled server resolves its assets relative to its own directory.
	serverDir string
	// apiURL attaches to an already running server instead of spawning
	// one. Development convenience.
	apiURL string
	// dataDir holds stacklume.db and server.log.
	dataDir string

	readyInterval time.Duration
	readyTimeout  time.Duration
	flushInterval time.Duration

	// redis is nil when no cache is configured.
	redis    *redis.Options
	cacheTTL time.Duration
}

func loadConfig() config {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file, using process environment")
	}
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	cfg := config{
		serverCmd:     os.Getenv("STACKLUME_SERVER_CMD"),
		serverDir:     os.Getenv("STACKLUME_SERVER_DIR"),
		apiURL:        os.Getenv("STACKLUME_API_URL"),
		dataDir:       envString("STACKLUME_DATA_DIR", defaultDataDir()),
		readyInterval: envDur("SERVER_READY_INTERVAL", 500*time.Millisecond),
		readyTimeout:  envDur("SERVER_READY_TIMEOUT", 40*time.Second),
		flushInterval: envDur("LAYOUT_FLUSH_INTERVAL", 500*time.Millisecond),
		cacheTTL:      envDur("CACHE_TTL", 5*time.Minute),
	}
	if cfg.serverCmd == "" && cfg.apiURL == "" {
		log.Fatal("missing server command config")
	}
	if conn := os.Getenv("REDIS_CONNECTION_STRING"); conn != "" {
		cfg.redis = redisOptions(conn)
	}
	return cfg
}

// defaultDataDir places the database next to the other per-user app
// state, falling back to the working directory.
func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, "stacklume")
}

// redisOptions accepts either a redis URL or the comma-separated
// "host:port,password=...,ssl=true" form managed caches hand out.
func redisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return d
}
