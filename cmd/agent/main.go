// The agent is a headless sync client: it logs in, opens one engine per
// collection against the server, and mirrors remote changes into local
// caches while pushing local edits through the write buffer.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"notewire/internal/config"
	"notewire/internal/domain"
	"notewire/internal/engine"
	"notewire/internal/remote"

	"github.com/google/uuid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	email := os.Getenv("AGENT_EMAIL")
	password := os.Getenv("AGENT_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("AGENT_EMAIL and AGENT_PASSWORD must be set")
	}

	token, err := login(cfg.Engine.ServerURL, email, password)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}

	deviceID := cfg.Engine.DeviceID
	if deviceID == "" {
		deviceID = uuid.New().String()
	}

	if err := os.MkdirAll(cfg.Engine.QueueDir, 0o700); err != nil {
		log.Fatalf("Failed to create queue directory: %v", err)
	}

	client := remote.NewClient(cfg.Engine.ServerURL, token, deviceID)

	notes, err := startEngine[domain.Note](client, cfg, domain.CollectionNotes)
	if err != nil {
		log.Fatalf("Failed to start notes engine: %v", err)
	}
	defer notes.Stop()

	friendships, err := startEngine[domain.Friendship](client, cfg, domain.CollectionFriendships)
	if err != nil {
		log.Fatalf("Failed to start friendships engine: %v", err)
	}
	defer friendships.Stop()

	groups, err := startEngine[domain.ChatGroup](client, cfg, domain.CollectionGroups)
	if err != nil {
		log.Fatalf("Failed to start groups engine: %v", err)
	}
	defer groups.Stop()

	memberships, err := startEngine[domain.GroupMembership](client, cfg, domain.CollectionMemberships)
	if err != nil {
		log.Fatalf("Failed to start memberships engine: %v", err)
	}
	defer memberships.Stop()

	messages, err := startEngine[domain.ChatMessage](client, cfg, domain.CollectionMessages)
	if err != nil {
		log.Fatalf("Failed to start messages engine: %v", err)
	}
	defer messages.Stop()

	log.Printf("Agent running (device %s), syncing %d notes", deviceID, notes.Cache().Len())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down agent...")
}

// syncable adds tombstone recognition on top of the engine's entity contract;
// conflict responses carry soft-deleted copies.
type syncable interface {
	engine.Entity
	EntityDeleted() bool
}

func startEngine[T syncable](client *remote.Client, cfg *config.Config, collection string) (*engine.Engine[T], error) {
	// one bolt file per collection, the file lock is exclusive
	queue, err := engine.OpenOfflineQueue(filepath.Join(cfg.Engine.QueueDir, collection+".db"), collection)
	if err != nil {
		return nil, fmt.Errorf("failed to open offline queue: %w", err)
	}

	store := remote.NewCollection[T](client, collection)
	e := engine.New[T](store, engine.Options[T]{
		Debounce:     cfg.Engine.Debounce,
		WriteTimeout: cfg.Engine.WriteTimeout,
		FetchTimeout: cfg.Engine.FetchTimeout,
		Queue:        queue,
		Logf:         log.Printf,
		IsTombstone:  func(doc T) bool { return doc.EntityDeleted() },
		OnStatus: func(id string, status engine.Status) {
			log.Printf("%s/%s -> %s", collection, id, status)
		},
		OnConflict: func(id string) {
			log.Printf("conflict on %s/%s, awaiting resolution", collection, id)
		},
	})

	if err := e.Start(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

func login(serverURL, email, password string) (string, error) {
	body, err := json.Marshal(domain.LoginRequest{Email: email, Password: password})
	if err != nil {
		return "", err
	}

	resp, err := http.Post(serverURL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var env struct {
		Success bool                  `json:"success"`
		Data    *domain.LoginResponse `json:"data"`
		Error   string                `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK || env.Data == nil {
		return "", fmt.Errorf("login rejected: %s", env.Error)
	}

	return env.Data.AccessToken, nil
}
