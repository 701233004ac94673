package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"

	"github.com/campustrade/backend/internal/config"
	"github.com/campustrade/backend/internal/database"
	"github.com/campustrade/backend/internal/dispatch"
	"github.com/campustrade/backend/internal/server"
	"github.com/campustrade/backend/internal/services"
)

func main() {
	config.Load()

	db := database.InitDatabase()
	defer db.Close()

	if err := database.InitSchema(db); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	adminHash, err := services.HashPassword("admin123")
	if err != nil {
		log.Fatalf("Failed to hash bootstrap password: %v", err)
	}
	if err := database.EnsureAdmin(db, adminHash); err != nil {
		log.Fatalf("Failed to bootstrap admin account: %v", err)
	}

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	authService := services.NewAuthService(db, redisClient)
	goodsService := services.NewGoodsService(db)
	ledgerService := services.NewLedgerService(db)
	adminService := services.NewAdminService(db, redisClient)

	dispatcher := dispatch.New(authService, goodsService, ledgerService, adminService)

	addr := viper.GetString("server.host") + ":" + viper.GetString("server.port")
	srv := server.New(addr, dispatcher)
	if err := srv.Listen(); err != nil {
		log.Fatalf("Failed to bind %s: %v", addr, err)
	}
	go func() {
		if err := srv.Serve(); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	opsServer := startOpsServer(adminService)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := opsServer.Shutdown(ctx); err != nil {
		log.Printf("Ops server shutdown: %v", err)
	}
	srv.Shutdown()
	log.Println("Server stopped")
}

// startOpsServer exposes liveness and the read-only aggregates over HTTP
// for dashboards. This listener is not part of the client protocol.
func startOpsServer(admin *services.AdminService) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Get("/stats/categories", func(w http.ResponseWriter, r *http.Request) {
		stats, err := admin.CategoryStats()
		if err != nil {
			http.Error(w, "failed to load category stats", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	r.Get("/stats/daily-sales", func(w http.ResponseWriter, r *http.Request) {
		days, _ := strconv.Atoi(r.URL.Query().Get("days"))
		stats, err := admin.DailySalesStats(days)
		if err != nil {
			http.Error(w, "failed to load sales stats", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	opsServer := &http.Server{
		Addr:         ":" + viper.GetString("ops.port"),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Ops server starting on %s", opsServer.Addr)
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Ops server failed: %v", err)
		}
	}()

	return opsServer
}
