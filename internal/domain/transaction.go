/**
 * @description
 * This file defines the core domain models for the pix-service. These structs
 * represent the ledger entities and the data transfer objects (DTOs) used by
 * the business logic, database and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` in centavos (smallest currency unit) to
 *   avoid floating-point inaccuracies with financial data.
 * - A logical transfer between two internal accounts is represented as two
 *   Transaction records (one OUTBOUND for the sender, one INBOUND for the
 *   receiver) linked by a shared correlation id.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus enumerates the valid ledger states.
type TransactionStatus string

const (
	StatusCreated    TransactionStatus = "CREATED"
	StatusProcessing TransactionStatus = "PROCESSING"
	StatusConfirmed  TransactionStatus = "CONFIRMED"
	StatusFailed     TransactionStatus = "FAILED"
	StatusCanceled   TransactionStatus = "CANCELED"
	StatusScheduled  TransactionStatus = "SCHEDULED"
)

// TerminalStatus reports whether a status admits no further transitions.
func TerminalStatus(s TransactionStatus) bool {
	return s == StatusConfirmed || s == StatusFailed || s == StatusCanceled
}

// TransactionDirection distinguishes debits from credits on the owning account.
type TransactionDirection string

const (
	DirectionOutbound TransactionDirection = "OUTBOUND"
	DirectionInbound  TransactionDirection = "INBOUND"
)

// KeyType classifies a destination payment key.
type KeyType string

const (
	KeyTypeCPF    KeyType = "CPF"
	KeyTypeCNPJ   KeyType = "CNPJ"
	KeyTypeEmail  KeyType = "EMAIL"
	KeyTypePhone  KeyType = "PHONE"
	KeyTypeRandom KeyType = "RANDOM"
)

// Transaction is the central ledger record for any money movement.
// It maps directly to the `pix_transactions` table.
type Transaction struct {
	ID             uuid.UUID            `json:"id"`
	Value          int64                `json:"value"` // in centavos
	DestinationKey string               `json:"destination_key"`
	KeyType        KeyType              `json:"key_type"`
	Direction      TransactionDirection `json:"direction"`
	Status         TransactionStatus    `json:"status"`
	OwnerID        uuid.UUID            `json:"owner_id"`
	IdempotencyKey string               `json:"-"`
	CorrelationID  string               `json:"correlation_id,omitempty"`
	Description    string               `json:"description,omitempty"`
	ScheduledFor   *time.Time           `json:"scheduled_for,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// CreateTransactionRequest is the DTO for incoming transfer creation requests.
type CreateTransactionRequest struct {
	Value        int64      `json:"value"` // in centavos
	KeyType      KeyType    `json:"key_type"`
	Key          string     `json:"key"`
	Description  string     `json:"description"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

// ConfirmTransactionRequest identifies the transaction to confirm.
type ConfirmTransactionRequest struct {
	TransactionID uuid.UUID `json:"transaction_id"`
}

// StatementFilter controls pagination and status filtering for statements.
type StatementFilter struct {
	Limit  int
	Status TransactionStatus
}

// Statement is the transaction ledger view with aggregated totals.
type Statement struct {
	TotalTransactions int               `json:"total_transactions"`
	TotalSent         int64             `json:"total_sent"` // confirmed outbound sum, centavos
	Balance           int64             `json:"balance"`    // derived, centavos
	Transactions      []TransactionView `json:"transactions"`
}

// TransactionView is the read-side projection of a Transaction, enriched
// with counterparty display data. It is produced outside the write path.
type TransactionView struct {
	Transaction
	CounterpartyName string `json:"counterparty_name,omitempty"`
}

// IssueChargeRequest is the DTO for generating a payable charge.
type IssueChargeRequest struct {
	Value       int64  `json:"value"` // in centavos
	Description string `json:"description,omitempty"`
}

// Charge is the issued payable request returned to the creditor. The charge
// id doubles as the reference embedded in the copy-and-paste payload.
type Charge struct {
	ChargeID     uuid.UUID `json:"charge_id"`
	Value        int64     `json:"value"`
	Description  string    `json:"description,omitempty"`
	CopyAndPaste string    `json:"copy_and_paste"`
	QRCodeURL    string    `json:"qr_code_url"`
}

// ConfirmChargeRequest identifies the charge to settle.
type ConfirmChargeRequest struct {
	ChargeID uuid.UUID `json:"charge_id"`
}

// ProviderStatusEvent is the settlement callback published by the simulated
// payment provider over the broker.
type ProviderStatusEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// AuditEntry is one append-only record of a state-changing action. Sensitive
// key material must be masked before it reaches Details.
type AuditEntry struct {
	ID            uuid.UUID         `json:"id"`
	Action        string            `json:"action"`
	Actor         string            `json:"actor"`
	Resource      string            `json:"resource"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}
