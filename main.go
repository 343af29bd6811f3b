package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AnTengye/auctionhub/backend/config"
	"github.com/AnTengye/auctionhub/backend/handler"
	"github.com/AnTengye/auctionhub/backend/middleware"
	"github.com/AnTengye/auctionhub/backend/pkg/logger"
	"github.com/AnTengye/auctionhub/backend/service"
	"github.com/AnTengye/auctionhub/backend/store"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		AddSource: cfg.Log.AddSource,
	})

	slog.Info("configuration loaded successfully",
		"storage_driver", cfg.Storage.Driver,
		"store_driver", cfg.Store.Driver,
	)

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelInit()

	imageStorage, err := service.NewImageStorage(initCtx, &cfg.Storage)
	if err != nil {
		slog.Error("failed to initialize image storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}

	propertyStore, err := store.Open(initCtx, &cfg.Store)
	if err != nil {
		slog.Error("failed to open property store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer propertyStore.Close()

	var naming service.NamingService
	if chat := service.NewChatNamingService(&cfg.Naming); chat != nil {
		naming = chat
	} else {
		slog.Warn("naming service not configured, generated titles disabled")
	}

	namer := service.NewNameResolver(naming, time.Duration(cfg.Naming.TimeoutSeconds)*time.Second)
	parser := service.NewRowParser(
		service.NewImageFetcher(&cfg.Import),
		service.NewImageNormalizer(imageStorage, &cfg.Import),
		namer,
	)
	importer := service.NewImporter(parser, propertyStore, service.StaticSettings{Placeholder: cfg.Import.PlaceholderURL}, &cfg.Import)

	authHandler := handler.NewAuthHandler(cfg)
	importHandler := handler.NewImportHandler(importer, cfg.Import.MaxUploadMB)
	propertyHandler := handler.NewPropertyHandler(propertyStore)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.MaxMultipartMemory = cfg.Import.MaxUploadMB << 20

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware())
	router.Use(cacheMiddleware())
	router.Use(middleware.RateLimit(100, time.Minute))

	if cfg.Storage.Driver == "local" {
		mount := cfg.Storage.Local.PublicBaseURL
		if strings.HasPrefix(mount, "/") {
			router.Static(mount, cfg.Storage.Local.Dir)
			slog.Info("serving local media", "path", mount, "directory", cfg.Storage.Local.Dir)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.GET("/properties", propertyHandler.List)
		protected.GET("/properties/:id", propertyHandler.Get)
	}

	admin := protected.Group("/")
	admin.Use(middleware.RequireRole(middleware.RoleAdmin))
	{
		admin.POST("/properties/import", middleware.RateLimitByUser(10, time.Minute), importHandler.Import)
		admin.DELETE("/properties/:id", propertyHandler.Delete)
	}

	// Imports of large sheets with remote images can run for minutes
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Authorization, Accept, Origin, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// cacheMiddleware disables caching for API responses and lets stored images
// be cached for a day
func cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		if strings.HasPrefix(path, "/api") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
		} else if strings.HasSuffix(path, ".jpg") {
			c.Header("Cache-Control", "public, max-age=86400")
		}

		c.Next()
	}
}
