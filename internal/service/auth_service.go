package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"rentalstation/internal/db"
	"rentalstation/internal/entities"
	apperrors "rentalstation/internal/errors"
	"rentalstation/internal/repository"
)

var (
	ErrInvalidCredentials = apperrors.ErrUnauthorized("Invalid credentials")
	ErrInvalidToken       = apperrors.ErrUnauthorized("Invalid or expired token")
	ErrEmailTaken         = apperrors.ErrConflict("Email is already registered")
)

type AuthService interface {
	Register(ctx context.Context, req entities.RegisterRequest) (*db.User, error)
	Login(ctx context.Context, req entities.LoginRequest) (*entities.LoginResponse, error)
	CreateAdmin(ctx context.Context, email, password string) error
	ParseToken(token string) (*entities.Caller, error)
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	repo   repository.UserRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthService(repo repository.UserRepository, secret string, ttl time.Duration) AuthService {
	return &authService{repo: repo, secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *authService) Register(ctx context.Context, req entities.RegisterRequest) (*db.User, error) {
	return s.createUser(ctx, req.Email, req.Password, req.Phone, db.RoleUser)
}

func (s *authService) CreateAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return apperrors.ErrValidation("email and password cannot be empty")
	}
	_, err := s.createUser(ctx, email, password, "", db.RoleAdmin)
	return err
}

func (s *authService) Login(ctx context.Context, req entities.LoginRequest) (*entities.LoginResponse, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if user == nil || !checkPasswordHash(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("error signing token: %w", err)
	}
	return &entities.LoginResponse{Token: signed, ExpiresIn: int64(s.ttl.Seconds())}, nil
}

func (s *authService) ParseToken(token string) (*entities.Caller, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &entities.Caller{Email: c.Subject, Role: c.Role}, nil
}

func (s *authService) createUser(ctx context.Context, email, password, phone, role string) (*db.User, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}
	user := &db.User{
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		Phone:        phone,
		Role:         role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
