package domain

import (
	"time"

	"github.com/google/uuid"
)

// CardType enumerates issued card kinds. Temporary virtual cards expire 24h
// after issuance and are filtered from listings once expired.
type CardType string

const (
	CardPhysical    CardType = "PHYSICAL"
	CardVirtual     CardType = "VIRTUAL"
	CardVirtualTemp CardType = "VIRTUAL_TEMP"
)

// Card is an issued credit card. Numbers are generated, not validated
// against a real issuer.
type Card struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	Number         string     `json:"number"`
	CVV            string     `json:"cvv"`
	ExpirationDate string     `json:"expiration_date"` // MM/YY
	HolderName     string     `json:"holder_name"`
	Type           CardType   `json:"type"`
	Blocked        bool       `json:"blocked"`
	Limit          int64      `json:"limit"` // in centavos
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CreateCardRequest is the DTO for issuing a new card.
type CreateCardRequest struct {
	Type CardType `json:"type"`
}

// UpdateCardLimitRequest is the DTO for adjusting a card limit.
type UpdateCardLimitRequest struct {
	Limit int64 `json:"limit"` // in centavos
}
