package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/app/repository"
	"github.com/petalhouse/petalhouse-backend/pkg/logger"
	"github.com/petalhouse/petalhouse-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrEmailAlreadyExists  = errors.New("email already exists")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrUserNotFound        = errors.New("user not found")
)

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

type AuthService interface {
	// Register creates a customer account. An account created for earlier
	// guest orders with the same email is claimed instead.
	Register(ctx context.Context, input RegisterInput) (*model.User, *util.TokenPair, error)
	// Login issues tokens and, when sessionID is set, moves that guest cart
	// into the user's cart.
	Login(ctx context.Context, email, password, sessionID string) (*model.User, *util.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*util.TokenPair, error)
	GetUser(ctx context.Context, userID uint) (*model.User, error)
}

type authService struct {
	userRepo      repository.UserRepository
	carts         CartService
	jwtSecret     string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

func NewAuthService(
	userRepo repository.UserRepository,
	carts CartService,
	jwtSecret string,
	accessExpiry, refreshExpiry time.Duration,
) AuthService {
	return &authService{
		userRepo:      userRepo,
		carts:         carts,
		jwtSecret:     jwtSecret,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}
}

func (s *authService) issueTokens(user *model.User) (*util.TokenPair, error) {
	tokens, err := util.GenerateTokenPair(
		user.ID,
		user.Email,
		string(user.Role),
		s.jwtSecret,
		s.accessExpiry,
		s.refreshExpiry,
	)
	if err != nil {
		logger.Error("Failed to generate tokens", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, err
	}
	return tokens, nil
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*model.User, *util.TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	logger.Info("Attempting user registration", map[string]interface{}{
		"email": email,
	})

	verr := &ValidationError{}
	if email == "" || !strings.Contains(email, "@") {
		verr.add("email", "must be a valid email address")
	}
	if len(input.Password) < 8 {
		verr.add("password", "must be at least 8 characters")
	}
	if strings.TrimSpace(input.Name) == "" {
		verr.add("name", "is required")
	}
	if err := verr.orNil(); err != nil {
		return nil, nil, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, persistenceError("load user", err)
	}
	if existing != nil && !existing.IsGuest() {
		logger.Warn("Registration failed: email already exists", map[string]interface{}{
			"email": email,
		})
		return nil, nil, ErrEmailAlreadyExists
	}

	hashedPassword, err := util.HashPassword(input.Password)
	if errors.Is(err, util.ErrPasswordTooLong) {
		return nil, nil, newValidationError("password", "must be at most 72 bytes")
	}
	if err != nil {
		logger.Error("Failed to hash password", err, map[string]interface{}{
			"email": email,
		})
		return nil, nil, err
	}

	user := existing
	if user != nil {
		user.PasswordHash = hashedPassword
		user.Name = strings.TrimSpace(input.Name)
		user.Phone = input.Phone
		user.Role = model.RoleUser
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, nil, persistenceError("claim guest account", err)
		}
		logger.Info("Guest account claimed", map[string]interface{}{
			"user_id": user.ID,
		})
	} else {
		user = &model.User{
			Email:        email,
			PasswordHash: hashedPassword,
			Name:         strings.TrimSpace(input.Name),
			Phone:        input.Phone,
			Role:         model.RoleUser,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, nil, persistenceError("create user", err)
		}
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("User registered successfully", map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
	})
	return user, tokens, nil
}

func (s *authService) Login(ctx context.Context, email, password, sessionID string) (*model.User, *util.TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	logger.Info("Login attempt", map[string]interface{}{
		"email": email,
	})

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Login failed: user not found", map[string]interface{}{
				"email": email,
			})
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, persistenceError("load user", err)
	}

	if user.IsGuest() || !util.VerifyPassword(user.PasswordHash, password) {
		logger.Warn("Login failed: invalid password", map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	if sessionID != "" {
		if _, err := s.carts.Merge(ctx, sessionID, user.ID); err != nil {
			logger.Error("Failed to merge guest cart on login", err, map[string]interface{}{
				"user_id": user.ID,
			})
		}
	}

	logger.Info("User logged in successfully", map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
	})
	return user, tokens, nil
}

func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*util.TokenPair, error) {
	claims, err := util.ValidateToken(refreshToken, s.jwtSecret)
	if err != nil || claims.TokenType != util.TokenTypeRefresh {
		logger.Warn("Refresh token rejected", nil)
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if user.IsGuest() {
		return nil, ErrInvalidRefreshToken
	}
	return s.issueTokens(user)
}

func (s *authService) GetUser(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, persistenceError("load user", err)
	}
	return user, nil
}
