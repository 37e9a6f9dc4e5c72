// Command stacklume-engine runs the Stacklume desktop session: it
// starts the bundled persistence server on a free local port, waits for
// it to come up, loads the dashboard state into memory and keeps it
// synchronized until the process is told to stop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"stacklume-engine/remote"
	"stacklume-engine/store"
)

func main() {
	cfg := loadConfig()
	if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
		log.Fatalf("data dir: %v", err)
	}

	var srv *serverProcess
	baseURL := cfg.apiURL
	if baseURL == "" {
		port := findFreePort()
		var err error
		srv, err = startServer(cfg, port)
		if err != nil {
			log.Fatalf("server: %v", err)
		}
		baseURL = fmt.Sprintf("http://127.0.0.1:%d", port)
	}

	logger := log.StandardLogger()
	client := remote.NewClient(remote.Config{
		BaseURL:       baseURL,
		Logger:        logger,
		ReadyInterval: cfg.readyInterval,
		ReadyTimeout:  cfg.readyTimeout,
	})

	ctx := context.Background()
	if err := client.WaitReady(ctx); err != nil {
		log.WithError(err).Error("server did not come up")
		if srv != nil {
			log.Errorf("server log tail:\n%s", logTail(srv.logPath, tailLines))
			srv.stop()
		}
		os.Exit(1)
	}

	var rem store.Remote = client
	if cfg.redis != nil {
		rc := redis.NewClient(cfg.redis)
		defer rc.Close()
		rem = remote.NewCache(client, rc, cfg.cacheTTL, logger)
	}

	eng := store.New(store.Config{
		Remote:        rem,
		Logger:        logger,
		FlushInterval: cfg.flushInterval,
	})
	if err := eng.Load(ctx); err != nil {
		log.WithError(err).Error("initial load failed")
		if srv != nil {
			srv.stop()
		}
		os.Exit(1)
	}
	log.WithFields(log.Fields{
		"widgets":    len(eng.Widgets()),
		"links":      len(eng.Links()),
		"categories": len(eng.Categories()),
		"tags":       len(eng.Tags()),
	}).Info("state loaded")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	eng.Close()
	if srv != nil {
		srv.stop()
	}
}
