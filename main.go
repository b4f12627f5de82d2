// kurye — 1:1 mesajlaşma servisi.
//
// Katmanlı mimari:
//
//	handlers   → HTTP parse + response write (thin)
//	services   → iş kuralları (konuşma teklik garantisi, watermark, auth)
//	repository → SQL erişimi (interface + SQLite implementasyonu)
//	database   → bağlantı + migration + transaction helper
//	ws         → WebSocket relay hub (best-effort cache invalidation sinyali)
//
// Bağımlılık yönü hep aşağı doğrudur; üst katman alt katmanı interface
// üzerinden tanır. Wire-up bu dosyada ve init_*.go dosyalarında yapılır.
package main

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/akinalp/kurye/config"
	"github.com/akinalp/kurye/database"
	"github.com/akinalp/kurye/ws"
)

func main() {
	// Lshortfile: log satırında dosya:satır görünür — debug'da hayat kurtarır
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// embed.FS kökü "migrations/" dizinini içerir; database.New düz bir
	// SQL dizini bekler — fs.Sub ile alt dizine iniyoruz.
	migrationsFS, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		log.Fatalf("failed to access embedded migrations: %v", err)
	}

	db, err := database.New(cfg.Database.Path, migrationsFS)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer db.Close()

	// WebSocket hub — register/unregister/broadcast'i tek goroutine'de
	// serileştirir
	hub := ws.NewHub()
	go hub.Run()

	repos := initRepositories(db.Conn)
	svcs, limiters := initServices(db.Conn, repos, cfg)
	defer limiters.Login.Close()
	defer limiters.Message.Close()

	h := initHandlers(svcs, limiters, hub)

	mux := http.NewServeMux()
	initRoutes(mux, h, svcs.Auth, repos.User)

	// CORS: frontend farklı origin'den (ör: localhost:3000) API çağırır.
	// Tarayıcı preflight (OPTIONS) isteklerini bu middleware cevaplar.
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
			"http://127.0.0.1:3000",
			"http://127.0.0.1:5173",
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(mux)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: corsHandler,
		// WebSocket bağlantıları uzun ömürlüdür; ReadTimeout sadece
		// header okuma süresini sınırlar, hijack sonrası uygulanmaz.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: SIGINT/SIGTERM gelince önce yeni istekleri kes,
	// sonra açık bağlantıların bitmesini (max 5sn) bekle.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("[main] shutdown signal received")
		hub.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("[main] server shutdown error: %v", err)
		}
	}()

	log.Printf("[main] kurye listening on %s", cfg.Server.Addr())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
	log.Println("[main] server stopped")
}
