package service

import (
	"testing"
	"time"

	"notewire/internal/domain"
	"notewire/internal/repository"
)

type mockUserRepo struct {
	users map[string]*domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*domain.User)}
}

func (m *mockUserRepo) Create(user *domain.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) FindByID(id string) (*domain.User, error) {
	if u, exists := m.users[id]; exists {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepo) FindByEmail(email string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func newTestAuthService() *AuthService {
	return NewAuthService(newMockUserRepo(), "test-secret", 15*time.Minute, 168*time.Hour)
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	service := newTestAuthService()

	registered, err := service.Register(&domain.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if registered.AccessToken == "" || registered.RefreshToken == "" {
		t.Error("expected tokens on registration")
	}
	if registered.User.Password != "" {
		t.Error("password hash leaked in response")
	}

	loggedIn, err := service.Login(&domain.LoginRequest{
		Email:    "alice@example.com",
		Password: "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if loggedIn.User.ID != registered.User.ID {
		t.Error("login returned a different user")
	}
}

func TestAuthService_RejectsBadCredentials(t *testing.T) {
	service := newTestAuthService()
	service.Register(&domain.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "hunter2hunter2",
	})

	if _, err := service.Login(&domain.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	}); err == nil {
		t.Error("expected error for wrong password")
	}
	if _, err := service.Login(&domain.LoginRequest{
		Email:    "nobody@example.com",
		Password: "hunter2hunter2",
	}); err == nil {
		t.Error("expected error for unknown email")
	}
}

func TestAuthService_RejectsDuplicateEmail(t *testing.T) {
	service := newTestAuthService()
	service.Register(&domain.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "hunter2hunter2",
	})

	if _, err := service.Register(&domain.RegisterRequest{
		Username: "alice2",
		Email:    "alice@example.com",
		Password: "hunter2hunter2",
	}); err == nil {
		t.Error("expected error for duplicate email")
	}
}

func TestAuthService_RefreshToken(t *testing.T) {
	service := newTestAuthService()
	registered, _ := service.Register(&domain.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "hunter2hunter2",
	})

	refreshed, err := service.RefreshToken(&domain.RefreshTokenRequest{
		RefreshToken: registered.RefreshToken,
	})
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if refreshed.AccessToken == "" {
		t.Error("expected a new access token")
	}

	if _, err := service.RefreshToken(&domain.RefreshTokenRequest{
		RefreshToken: "not-a-token",
	}); err == nil {
		t.Error("expected error for garbage token")
	}
}
