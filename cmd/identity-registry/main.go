package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hoshizora-net/mixshuffle/internal/identityregistry"
)

func main() {
	cfg := identityregistry.DefaultConfig()

	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	var tokensFlag string
	flag.StringVar(&tokensFlag, "tokens", "", "comma-separated bearer tokens (empty = open dev mode)")
	flag.Parse()

	if envTokens := os.Getenv("MIXSHUFFLE_REGISTRY_TOKENS"); envTokens != "" {
		tokensFlag = envTokens
	}
	if tokensFlag != "" {
		cfg.AuthTokens = strings.Split(tokensFlag, ",")
		for i := range cfg.AuthTokens {
			cfg.AuthTokens[i] = strings.TrimSpace(cfg.AuthTokens[i])
		}
		log.Printf("[auth] %d bearer tokens configured", len(cfg.AuthTokens))
	} else {
		log.Printf("[auth] WARNING: no bearer tokens configured, running in open mode")
	}

	storage, err := identityregistry.NewStorage(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init: %v", err)
	}
	defer storage.Close()
	log.Printf("[storage] initialized at %s", cfg.DBPath)

	srv := identityregistry.NewServer(storage, cfg)
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("[server] listening on :%d", cfg.Port)
	if err := httpSrv.ListenAndServe(); err != nil {
		log.Fatalf("http server: %v", err)
	}
}
