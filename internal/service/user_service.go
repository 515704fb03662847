package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kiosk-pos/internal/domain"
	"kiosk-pos/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for password hashes
const BcryptCost = 10

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
)

// UserService manages operator accounts and their access tokens
type UserService interface {
	CreateOperator(ctx context.Context, username, password, email string, superuser bool) (*domain.Operator, error)
	Login(ctx context.Context, username, password string) (accessToken string, operator *domain.Operator, err error)
	ValidateToken(tokenString string) (*Claims, error)
	GetOperator(ctx context.Context, id uuid.UUID) (*domain.Operator, error)
}

// Claims represents the JWT claims
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

type userService struct {
	operatorRepo repository.OperatorRepository
	jwtSecret    string
	accessExpiry time.Duration
	logger       *zap.Logger
}

// NewUserService creates a new instance of UserService
func NewUserService(
	operatorRepo repository.OperatorRepository,
	jwtSecret string,
	accessExpiry time.Duration,
	logger *zap.Logger,
) UserService {
	return &userService{
		operatorRepo: operatorRepo,
		jwtSecret:    jwtSecret,
		accessExpiry: accessExpiry,
		logger:       logger,
	}
}

// CreateOperator stores a new account with a bcrypt password hash
func (s *userService) CreateOperator(ctx context.Context, username, password, email string, superuser bool) (*domain.Operator, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.NewValidationError("username", "is required")
	}
	if password == "" {
		return nil, domain.NewValidationError("password", "is required")
	}

	hashedPassword, err := s.hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	operator := &domain.Operator{
		ID:           uuid.New(),
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: hashedPassword,
		IsSuperuser:  superuser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.operatorRepo.Create(ctx, operator); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create operator: %w", err)
	}

	s.logger.Info("Operator created",
		zap.String("operator_id", operator.ID.String()),
		zap.String("username", operator.Username),
		zap.Bool("superuser", operator.IsSuperuser),
	)

	return operator, nil
}

// Login authenticates an operator and returns a signed access token
func (s *userService) Login(ctx context.Context, username, password string) (string, *domain.Operator, error) {
	operator, err := s.operatorRepo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to find operator: %w", err)
	}

	if err := s.verifyPassword(operator.PasswordHash, password); err != nil {
		s.logger.Warn("Rejected login", zap.String("username", operator.Username))
		return "", nil, ErrInvalidCredentials
	}

	accessToken, err := s.generateAccessToken(operator)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return accessToken, operator, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *userService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetOperator retrieves an operator by ID
func (s *userService) GetOperator(ctx context.Context, id uuid.UUID) (*domain.Operator, error) {
	operator, err := s.operatorRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}
	return operator, nil
}

func (s *userService) hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *userService) verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func (s *userService) generateAccessToken(operator *domain.Operator) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: operator.ID,
		Role:   operator.Role(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}
