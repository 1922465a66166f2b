/**
 * @description
 * This file implements account registration and login. Passwords are stored
 * as bcrypt hashes; successful logins mint an HS256 JWT whose subject is the
 * account id.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: Token minting.
 * - golang.org/x/crypto/bcrypt: Password hashing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/newcredit/pix-service/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password must have at least 6 characters")
)

// Register creates a new account with a hashed password. The document and
// phone are stored digits-only so key resolution matches what register wrote.
func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	if len(req.Password) < 6 {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Name:         req.Name,
		Email:        NormalizeKey(domain.KeyTypeEmail, req.Email),
		Document:     digitsOnly(req.Document),
		Phone:        digitsOnly(req.Phone),
		PasswordHash: string(hash),
	}
	if err := ValidateKey(domain.KeyTypeEmail, user.Email); err != nil {
		return nil, err
	}
	if len(user.Document) != 11 && len(user.Document) != 14 {
		return nil, fmt.Errorf("%w: document must be a CPF or CNPJ", ErrInvalidKey)
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	log.Printf("Register: Created user %s", user.ID)
	s.audit(ctx, "USER_REGISTERED", user.ID, user.ID.String(), "", map[string]string{
		"document": MaskDocument(user.Document),
		"email":    MaskEmail(user.Email),
	})
	return user, nil
}

// Login verifies a document/password pair and returns a signed bearer token.
// All failure modes look identical to the caller.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	user, err := s.repo.FindUserByDocument(ctx, digitsOnly(req.Document))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	log.Printf("Login: Issued token for user %s", user.ID)
	return &domain.LoginResponse{AccessToken: token, TokenType: "bearer"}, nil
}
