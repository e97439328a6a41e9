package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"car-showroom/internal/config"
	"car-showroom/internal/database"
	"car-showroom/internal/logger"
	"car-showroom/internal/repository"
	"car-showroom/internal/server"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The context is used to inform the server it has 30 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Close server resources
	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

// openRepository selects the catalog backend. The returned db is nil for
// the file backend.
func openRepository(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.CarRepository, *sql.DB, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverFile:
		repo, err := repository.NewFileCarRepository(cfg.Storage.DataFile, log)
		return repo, nil, err

	case config.StorageDriverPostgres:
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Database health check", zap.Any("health", database.Health(ctx, db)))

		if err := database.RunMigrations(ctx, db, log); err != nil {
			db.Close()
			return nil, nil, err
		}
		if err := database.GetMigrationStatus(ctx, db, log); err != nil {
			log.Warn("Failed to read migration status", zap.Error(err))
		}
		return repository.NewPostgresCarRepository(db), db, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// openRedis connects the rate limiter store, or returns nil when disabled
func openRedis(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) *redis.Client {
	if !cfg.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		// The limiter lets requests through while Redis is unreachable
		log.Warn("Redis is not reachable, rate limiting is inactive until it is", zap.Error(err))
	}
	return client
}

// lanAddresses lists the non-loopback IPv4 addresses of this host
func lanAddresses() []string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}

	var ips []string
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			ips = append(ips, ip4.String())
		}
	}
	return ips
}

func logBanner(log *zap.Logger, cfg *config.Config, repo repository.CarRepository) {
	cars, err := repo.LoadAll(context.Background())
	if err != nil {
		log.Fatal("Failed to load car catalog", zap.Error(err))
	}

	urls := []string{fmt.Sprintf("http://localhost:%s", cfg.Server.Port)}
	for _, ip := range lanAddresses() {
		urls = append(urls, fmt.Sprintf("http://%s:%s", ip, cfg.Server.Port))
	}

	log.Info("Car showroom ready",
		zap.Strings("urls", urls),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("data_file", cfg.Storage.DataFile),
		zap.String("uploads_dir", cfg.Storage.UploadsDir),
		zap.Int("total_cars", len(cars)),
	)
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting car showroom",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	ctx := context.Background()

	repo, db, err := openRepository(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open car catalog", zap.Error(err))
	}

	redisClient := openRedis(ctx, cfg.Redis, log)

	// Create server
	srv, err := server.NewServer(cfg, log, repo, db, redisClient)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	logBanner(log, cfg, repo)

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(srv, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info("Graceful shutdown complete")
}
