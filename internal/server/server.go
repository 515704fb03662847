package server

import (
	"fmt"
	"net/http"
	"time"

	"kiosk-pos/internal/cache"
	"kiosk-pos/internal/config"
	"kiosk-pos/internal/database"
	custommiddleware "kiosk-pos/internal/middleware"
	"kiosk-pos/internal/repository"
	"kiosk-pos/internal/service"
	"kiosk-pos/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

// NewServer wires repositories, services and handlers into a router.
// redisClient may be nil, in which case search results are not cached and
// login is not rate limited.
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) *Server {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack(requestTimeout) {
		router.Use(mw)
	}
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.Server.Env == "development"))

	router.Get("/health", transport.HealthHandler(db))

	var searchCache cache.ProductSearchCache = cache.NoopProductSearchCache{}
	var loginLimiter func(http.Handler) http.Handler
	if redisClient != nil {
		searchCache = cache.NewRedisProductSearchCache(redisClient, time.Duration(cfg.Shop.SearchCacheTTL)*time.Second)
		loginLimiter = custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.LoginRequests,
			Window:            time.Duration(cfg.RateLimit.LoginWindow) * time.Second,
			KeyPrefix:         "kiosk:ratelimit:login",
		}, logger)
	}

	// Repositories
	stores := repository.NewStores(db.DB())
	txRunner := repository.NewTxRunner(db.DB(), logger)
	operatorRepo := repository.NewOperatorRepository(db.DB())

	// Services
	userService := service.NewUserService(
		operatorRepo,
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessExpiry)*time.Minute,
		logger,
	)
	catalogService := service.NewCatalogService(stores, searchCache, cfg.Shop.SearchLimit, logger)
	saleService := service.NewSaleService(txRunner, stores, searchCache, cfg.Shop.HistoryLimit, logger)
	closingService := service.NewClosingService(txRunner, cfg.Shop.Location(), logger)
	importService := service.NewImportService(txRunner, searchCache, cfg.Import.MaxReportedErrors, logger)

	// Handlers
	userHandler := transport.NewUserHandler(userService, logger)
	saleHandler := transport.NewSaleHandler(saleService, logger)
	productHandler := transport.NewProductHandler(catalogService, importService, cfg.Import.MaxUploadBytes, logger)
	closingHandler := transport.NewClosingHandler(closingService, logger)

	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	adminMiddleware := custommiddleware.RequireAdmin(logger)

	userHandler.RegisterRoutes(router, authMiddleware, loginLimiter)
	saleHandler.RegisterRoutes(router, authMiddleware, adminMiddleware)
	productHandler.RegisterRoutes(router, authMiddleware, adminMiddleware)
	closingHandler.RegisterRoutes(router, authMiddleware, adminMiddleware)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: requestTimeout + 5*time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	_ = s.logger.Sync()
	return nil
}
