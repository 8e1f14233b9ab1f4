package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notewire/internal/config"
	"notewire/internal/handler"
	"notewire/internal/middleware"
	"notewire/internal/repository"
	"notewire/internal/service"
	"notewire/internal/websocket"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	couchURL := fmt.Sprintf("http://%s:%s@%s:%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
	)

	client, err := kivik.New("couch", couchURL)
	if err != nil {
		log.Fatalf("Failed to connect to CouchDB: %v", err)
	}

	exists, err := client.DBExists(context.Background(), cfg.Database.Name)
	if err != nil {
		log.Fatalf("Failed to check database existence: %v", err)
	}
	if !exists {
		if err := client.CreateDB(context.Background(), cfg.Database.Name); err != nil {
			log.Fatalf("Failed to create database: %v", err)
		}
		log.Printf("Created database: %s", cfg.Database.Name)
	}

	userRepo := repository.NewUserRepository(client, cfg.Database.Name)
	noteRepo := repository.NewNoteRepository(client, cfg.Database.Name)
	friendshipRepo := repository.NewFriendshipRepository(client, cfg.Database.Name)
	groupRepo := repository.NewGroupRepository(client, cfg.Database.Name)
	membershipRepo := repository.NewMembershipRepository(client, cfg.Database.Name)
	messageRepo := repository.NewMessageRepository(client, cfg.Database.Name)

	wsManager := websocket.NewManager(
		cfg.WebSocket.MaxConnPerUser,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
	)
	go wsManager.Run()

	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration)
	syncService := service.NewSyncService(wsManager)
	noteService := service.NewNoteService(noteRepo, syncService)
	friendshipService := service.NewFriendshipService(friendshipRepo, syncService)
	chatService := service.NewChatService(groupRepo, membershipRepo, messageRepo, syncService)

	authHandler := handler.NewAuthHandler(authService)
	noteHandler := handler.NewNoteHandler(noteService)
	friendshipHandler := handler.NewFriendshipHandler(friendshipService)
	chatHandler := handler.NewChatHandler(chatService)
	wsHandler := handler.NewWSHandler(wsManager, cfg.JWT.Secret, cfg.WebSocket)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/refresh", authHandler.Refresh).Methods("POST", "OPTIONS")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.JWT.Secret))

	protected.HandleFunc("/notes", noteHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}", noteHandler.Put).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/notes/{id}", noteHandler.Delete).Methods("DELETE", "OPTIONS")

	protected.HandleFunc("/friendships", friendshipHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/friendships/{id}", friendshipHandler.Put).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/friendships/{id}", friendshipHandler.Delete).Methods("DELETE", "OPTIONS")

	protected.HandleFunc("/groups", chatHandler.ListGroups).Methods("GET", "OPTIONS")
	protected.HandleFunc("/groups/{id}", chatHandler.PutGroup).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/groups/{id}", chatHandler.DeleteGroup).Methods("DELETE", "OPTIONS")

	protected.HandleFunc("/memberships", chatHandler.ListMemberships).Methods("GET", "OPTIONS")
	protected.HandleFunc("/memberships/{id}", chatHandler.PutMembership).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/memberships/{id}", chatHandler.DeleteMembership).Methods("DELETE", "OPTIONS")

	protected.HandleFunc("/messages", chatHandler.ListMessages).Methods("GET", "OPTIONS")
	protected.HandleFunc("/messages/{id}", chatHandler.PutMessage).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/messages/{id}", chatHandler.DeleteMessage).Methods("DELETE", "OPTIONS")

	r.HandleFunc("/ws", wsHandler.Handle)
	r.HandleFunc("/health", healthHandler).Methods("GET")

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting Notewire server on %s (env: %s)", addr, cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"notewire"}`))
}
