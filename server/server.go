package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roadpulse/roadpulse/config"
	"github.com/roadpulse/roadpulse/db"
	"github.com/roadpulse/roadpulse/mailingservices"
	"github.com/roadpulse/roadpulse/services"
)

type Server struct {
	Config           *config.Config
	Mail             *mailingservices.Mailgun
	AuthRepository   db.AuthRepository
	AuthService      services.AuthService
	ReportRepository db.ReportRepository
	ReportService    services.ReportService
	MediaRepository  db.MediaRepository
	MediaService     services.MediaService
	DB               db.GormDB
}

// expiredSweepInterval is how often stale report rows get purged. Reads
// filter on expires_at themselves, so the sweep only reclaims storage.
const expiredSweepInterval = 10 * time.Minute

func (s *Server) startExpiredSweep(stop <-chan struct{}) {
	ticker := time.NewTicker(expiredSweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				purged, err := s.ReportRepository.PurgeExpired()
				if err != nil {
					log.Printf("expired report sweep failed: %v", err)
					continue
				}
				if purged > 0 {
					log.Printf("purged %d expired reports", purged)
				}
			}
		}
	}()
}

// Start serves the API and shuts down gracefully on SIGINT/SIGTERM.
func (s *Server) Start() {
	r := s.setupRouter()

	stopSweep := make(chan struct{})
	s.startExpiredSweep(stopSweep)
	defer close(stopSweep)

	port := s.Config.Port
	if port == 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}

	go func() {
		log.Printf("listening on :%d", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("server exited")
}
