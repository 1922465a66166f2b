package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account holder. The ledger never stores a balance on
// the user row: spendable balance is derived from confirmed records. The
// credit limit is the promotional incentive increased on confirmed inbound
// funds.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Document     string    `json:"document"` // CPF or CNPJ, digits only
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	CreditLimit  int64     `json:"credit_limit"` // in centavos
	CreatedAt    time.Time `json:"created_at"`
}

// RegisterRequest is the DTO for account creation.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Document string `json:"document"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

// LoginRequest is the DTO for credential authentication.
type LoginRequest struct {
	Document string `json:"document"`
	Password string `json:"password"`
}

// LoginResponse carries the signed session token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
