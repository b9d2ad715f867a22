package main

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mhartmann/staffing-recommender-go/pkg/auth"
	"github.com/mhartmann/staffing-recommender-go/pkg/cache"
	"github.com/mhartmann/staffing-recommender-go/pkg/database"
	"github.com/mhartmann/staffing-recommender-go/pkg/engine"
	"github.com/mhartmann/staffing-recommender-go/pkg/fetching"
	"github.com/mhartmann/staffing-recommender-go/pkg/handlers"
	"github.com/mhartmann/staffing-recommender-go/pkg/scoring"
)

func main() {
	// Load .env if it exists
	// Try root and parent directories for flexibility
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, p := range envPaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			break
		}
	}

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	db := database.InitDB(log)
	_ = auth.EnsureAdminExists(db)

	scorer, err := scoring.Load(envOr("MODEL_PATH", "models/isolation_forest.json"))
	if err != nil {
		log.Fatal().Err(err).Msg("could not load abnormality model")
	}

	store := cache.New(envOr("CACHE_PATH", "data/recommendation_cache.json"), log)

	opts := engine.Options{
		SolveTimeout:        time.Duration(envInt("SOLVER_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxConcurrentSolves: int64(envInt("SOLVER_WORKERS", 4)),
	}
	if raw := os.Getenv("PLANNING_DATE"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			log.Fatal().Err(err).Str("value", raw).Msg("invalid PLANNING_DATE")
		}
		opts.PlanningDate = date
	}

	eng := engine.New(fetching.New(db), scorer, store, opts, log)
	h := &handlers.Handler{DB: db, Engine: eng, Log: log}

	r := gin.Default()
	r.Use(handlers.RequestID())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
	}))

	// Routes
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Substitute Staffing Recommender API",
			"version": "1.2.0",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/admin/login", h.Login)

	// Admin Endpoints
	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware())
	{
		admin.POST("/keys", h.GenerateKey)
		admin.GET("/keys", h.ListKeys)
		admin.PUT("/keys/:id", h.UpdateKeyLimit)
		admin.DELETE("/keys/:id", h.RevokeKey)
		admin.GET("/usage/:id", h.GetUsage)
	}

	// Recommendation Endpoints
	api := r.Group("/api")
	api.Use(h.APIKeyMiddleware())
	{
		api.POST("/recommendations", h.Recommend)
		api.POST("/recommendations/explain", h.Explain)
		api.GET("/recommendations/history", h.CacheHistory)
		api.GET("/recommendations/diff", h.DiffLatest)
		api.DELETE("/recommendations/cache", h.ClearCache)
		api.POST("/validate", h.ValidateConstraints)
		api.GET("/usage", h.GetMyUsage)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	log.Info().Str("port", port).Msg("server starting")
	if err := r.Run(":" + port); err != nil {
		log.Fatal().Err(err).Msg("could not run server")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
