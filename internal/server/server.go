package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"car-showroom/internal/config"
	"car-showroom/internal/database"
	custommiddleware "car-showroom/internal/middleware"
	"car-showroom/internal/repository"
	"car-showroom/internal/service"
	"car-showroom/internal/transport"
	"car-showroom/internal/upload"
	"car-showroom/web"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *sql.DB
	redis  *redis.Client
}

// NewServer wires the catalog API and the front end. db and redisClient
// are optional; without a Redis client no rate limit is applied.
func NewServer(cfg *config.Config, logger *zap.Logger, repo repository.CarRepository, db *sql.DB, redisClient *redis.Client) (*Server, error) {
	media, err := upload.NewMediaStore(cfg.Storage.UploadsDir, logger)
	if err != nil {
		return nil, err
	}

	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.IsDevelopment()))

	s := &Server{
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	// Health check endpoint
	router.Get("/health", s.health)

	var mutations []func(http.Handler) http.Handler
	if redisClient != nil {
		mutations = append(mutations, custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "car_showroom_rate_limit",
		}, logger))
	}

	carService := service.NewCarService(repo, media, logger)
	carHandler := transport.NewCarHandler(carService, cfg.Storage.UploadMaxBytes, logger)

	// Register routes
	carHandler.RegisterRoutes(router, mutations...)
	transport.RegisterStatic(router, web.FS(cfg.Server.StaticDir), media.Dir())

	// Uploads of up to the size ceiling need far more than the usual
	// request timeouts.
	s.Server = &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      10 * time.Minute,
	}

	return s, nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	status := http.StatusOK

	if s.db != nil {
		dbHealth := database.Health(r.Context(), s.db)
		resp["database"] = dbHealth
		if dbHealth["status"] != "up" {
			resp["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			// Rate limiting fails open, so Redis being down is not fatal
			resp["redis"] = map[string]string{"status": "down", "error": err.Error()}
		} else {
			resp["redis"] = map[string]string{"status": "up"}
		}
	}

	custommiddleware.RespondWithJSON(w, status, resp)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
