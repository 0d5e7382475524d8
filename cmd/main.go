package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/rapat/adapters"
	"github.com/satriahrh/rapat/adapters/gemini"
	mongodb "github.com/satriahrh/rapat/adapters/mongo"
	"github.com/satriahrh/rapat/domain/repositories"
	"github.com/satriahrh/rapat/internal/api"
	"github.com/satriahrh/rapat/internal/websocket"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Gemini adapters; without a key the server still runs and bot
	// connects become no-ops
	var transport repositories.LiveTransport
	var chatModel repositories.ChatModel
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		logger.Warn("GEMINI_API_KEY not set, live sessions and chat are disabled")
	} else {
		live, err := gemini.NewLiveTransport(apiKey, logger)
		if err != nil {
			logger.Fatal("Failed to initialize live transport", zap.Error(err))
		}
		transport = live

		chat, err := gemini.NewChatClient(context.Background(), apiKey, logger)
		if err != nil {
			logger.Fatal("Failed to initialize chat client", zap.Error(err))
		}
		chatModel = chat
	}

	// Room storage: MongoDB when configured, in-memory otherwise
	var roomRepo repositories.RoomRepository
	var mongoClient *mongodb.Client
	if os.Getenv("MONGODB_URI") != "" {
		client, err := mongodb.NewClient(logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		mongoClient = client
		roomRepo = mongodb.NewRoomRepository(client.Database)
	} else {
		logger.Info("MONGODB_URI not set, using in-memory room storage")
		roomRepo = adapters.NewMemoryRoomRepository()
	}

	// Initialize WebSocket hub for meeting clients
	hub := websocket.NewHub(transport, chatModel, roomRepo, clock.New(), logger)
	go hub.Run()

	// Initialize API routes
	api.InitRoutes(e, hub, roomRepo, logger)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	if mongoClient != nil {
		if err := mongoClient.Close(ctx); err != nil {
			logger.Error("Failed to close MongoDB connection", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
