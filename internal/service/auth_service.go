package service

import (
	"errors"
	"time"

	"notewire/internal/domain"
	"notewire/internal/repository"
	"notewire/pkg/hash"
	"notewire/pkg/jwt"

	"github.com/google/uuid"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type AuthService struct {
	userRepo          repository.UserRepository
	jwtSecret         string
	tokenExpiration   time.Duration
	refreshExpiration time.Duration
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret string, tokenExpiration, refreshExpiration time.Duration) *AuthService {
	return &AuthService{
		userRepo:          userRepo,
		jwtSecret:         jwtSecret,
		tokenExpiration:   tokenExpiration,
		refreshExpiration: refreshExpiration,
	}
}

func (s *AuthService) Register(req *domain.RegisterRequest) (*domain.LoginResponse, error) {
	if _, err := s.userRepo.FindByEmail(req.Email); err == nil {
		return nil, errors.New("email already registered")
	}

	hashedPassword, err := hash.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.User{
		ID:        uuid.New().String(),
		Username:  req.Username,
		Email:     req.Email,
		Password:  hashedPassword,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	return s.issueTokens(user)
}

func (s *AuthService) Login(req *domain.LoginRequest) (*domain.LoginResponse, error) {
	user, err := s.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := hash.Compare(user.Password, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(user)
}

func (s *AuthService) RefreshToken(req *domain.RefreshTokenRequest) (*domain.TokenResponse, error) {
	claims, err := jwt.ValidateToken(req.RefreshToken, s.jwtSecret)
	if err != nil {
		return nil, errors.New("invalid or expired refresh token")
	}

	if _, err := s.userRepo.FindByID(claims.UserID); err != nil {
		return nil, errors.New("user not found")
	}

	accessToken, err := jwt.GenerateToken(claims.UserID, s.tokenExpiration, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &domain.TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.tokenExpiration.Seconds()),
	}, nil
}

func (s *AuthService) issueTokens(user *domain.User) (*domain.LoginResponse, error) {
	accessToken, err := jwt.GenerateToken(user.ID, s.tokenExpiration, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	refreshToken, err := jwt.GenerateRefreshToken(user.ID, s.refreshExpiration, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	public := *user
	public.Password = ""

	return &domain.LoginResponse{
		User:         &public,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokenExpiration.Seconds()),
	}, nil
}
