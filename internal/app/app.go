// Package app provides shared application initialization for the server
// entry point.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/dskmr/simscan/internal/config"
	"github.com/dskmr/simscan/internal/db"
	"github.com/dskmr/simscan/internal/handlers"
	"github.com/dskmr/simscan/internal/scheduler"
	"github.com/dskmr/simscan/internal/services"
)

// ServerConfig contains options for creating the application server.
type ServerConfig struct {
	// Port to listen on. If 0, uses config default.
	Port int

	// BindAddress is the address to bind to. Defaults to "" (all interfaces).
	BindAddress string

	// Version string for display.
	Version string
}

// Server wraps the HTTP server and associated resources.
type Server struct {
	HTTP      *http.Server
	Config    *config.Config
	Database  *db.DB
	Scanner   *services.Scanner
	Scheduler *scheduler.Scheduler
}

// CreateServer initializes all application components and returns a Server.
// Call Server.Cleanup() when done to release resources.
func CreateServer(cfg ServerConfig) (*Server, error) {
	appCfg := config.Load()
	if cfg.Port > 0 {
		appCfg.Port = cfg.Port
	}

	log.Printf("simscan starting...")
	log.Printf("  Database: %s", appCfg.DBPath)
	log.Printf("  Port: %d", appCfg.Port)
	log.Printf("  Retention: %d days", appCfg.RetentionDays)
	if len(appCfg.ScanRoots) > 0 {
		log.Printf("  Allowed roots: %v", appCfg.ScanRoots)
	}

	database, err := db.Open(appCfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	scanner := services.NewScanner(database, appCfg)

	sched := scheduler.New(database, scanner)
	sched.Start()

	h := handlers.New(database, appCfg, scanner, cfg.Version)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.BindAddress, appCfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // No timeout for SSE
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		HTTP:      server,
		Config:    appCfg,
		Database:  database,
		Scanner:   scanner,
		Scheduler: sched,
	}, nil
}

// Cleanup releases all resources held by the server.
func (s *Server) Cleanup() {
	if s.Scheduler != nil {
		s.Scheduler.Stop()
	}
	if s.Database != nil {
		s.Database.Close()
	}
}

// StartCleanupLoop starts a background goroutine that periodically removes
// scan history past the retention window. Returns a cancel function and a
// done channel.
func (s *Server) StartCleanupLoop() (cancel func(), done <-chan struct{}) {
	cleanupDone := make(chan struct{})
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())

	go func() {
		defer close(cleanupDone)
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				log.Printf("Running cleanup (retention: %d days)", s.Config.RetentionDays)
				if err := s.Database.CleanupOldData(s.Config.RetentionDays); err != nil {
					log.Printf("Cleanup error: %v", err)
				}
			}
		}
	}()

	return cleanupCancel, cleanupDone
}
