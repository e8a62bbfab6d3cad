// Command plaque-server serves the template store and the model upload
// relay. Configuration comes from the environment and an optional .env
// file; see store.OpenDatabaseFromEnv and relay.ConfigFromEnv.
package main

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/phanxgames/plaque"
	"github.com/phanxgames/plaque/relay"
	"github.com/phanxgames/plaque/store"
)

func mustLoadEnv() {
	_ = godotenv.Load()
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	cfg.MaxAge = 12 * time.Hour

	origins := strings.TrimSpace(os.Getenv("CORS_ORIGINS"))
	if origins == "" || origins == "*" {
		cfg.AllowAllOrigins = true
		return cfg
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		}
	}
	return cfg
}

func main() {
	mustLoadEnv()

	r := gin.Default()
	r.Use(cors.New(corsConfig()))

	if _, err := store.RegisterRoutes(r); err != nil {
		log.Fatalf("register template routes: %v", err)
	}
	if _, err := relay.RegisterRoutes(r); err != nil {
		log.Fatalf("register upload routes: %v", err)
	}

	// ICON_DIR holds the <name>.png files of the importable icon set.
	if dir := os.Getenv("ICON_DIR"); dir != "" {
		r.Static(plaque.DefaultIconBaseURL, dir)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatalf("start server: %v", err)
	}
}
