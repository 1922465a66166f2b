/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all data access operations required by the pix-service. By defining an
 * interface, we decouple the ledger's business logic from the specific
 * database implementation (PostgreSQL), making the code easier to test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/newcredit/pix-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User methods
	CreateUser(ctx context.Context, user *domain.User) error
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	FindUserByDocument(ctx context.Context, document string) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserByPhone(ctx context.Context, phone string) (*domain.User, error)

	// Ledger methods. CreateTransfer commits the new record, the optional
	// counterpart or charge settlement, and the promotional credit as one
	// atomic unit; a duplicate idempotency key surfaces as
	// ErrDuplicateIdempotencyKey so the engine can replay the original.
	CreateTransfer(ctx context.Context, params CreateTransferParams) (*domain.Transaction, error)
	SettleCharge(ctx context.Context, params SettleChargeParams) (*domain.Transaction, error)
	FindTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
	FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	FindTransactionByIDAndOwner(ctx context.Context, transactionID, ownerID uuid.UUID) (*domain.Transaction, error)
	FindOpenCharge(ctx context.Context, chargeID uuid.UUID) (*domain.Transaction, error)
	FindConfirmedOutboundByCorrelation(ctx context.Context, correlationID string, excludeID uuid.UUID) (*domain.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, transactionID uuid.UUID, status domain.TransactionStatus) error
	CancelScheduledTransaction(ctx context.Context, transactionID, ownerID uuid.UUID) (bool, error)
	ListDueScheduledTransactions(ctx context.Context, asOf time.Time) ([]domain.Transaction, error)

	// ExecuteScheduledTransaction settles one due SCHEDULED debit: the
	// balance gate, the CONFIRMED flip, the optional counterpart credit and
	// the promotional credit commit together. An insufficient balance marks
	// the record FAILED and returns ErrInsufficientBalance.
	ExecuteScheduledTransaction(ctx context.Context, params ExecuteScheduledParams) error

	// Balance and statement reads
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	SumConfirmedOutbound(ctx context.Context, userID uuid.UUID) (int64, error)
	ListTransactionsByOwner(ctx context.Context, ownerID uuid.UUID, filter domain.StatementFilter) ([]domain.Transaction, error)

	// Audit sink
	InsertAuditEntry(ctx context.Context, entry domain.AuditEntry) error

	// Boleto methods
	CreateBoletoPayment(ctx context.Context, payment *domain.BoletoPayment) error
	ListBoletoPaymentsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.BoletoPayment, error)

	// Installment simulation methods
	SaveInstallmentSimulation(ctx context.Context, sim *domain.InstallmentSimulation) error
	ListInstallmentSimulations(ctx context.Context, limit int) ([]domain.InstallmentSimulation, error)

	// Card methods
	CreateCard(ctx context.Context, card *domain.Card) error
	ListCardsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Card, error)
	FindCardByID(ctx context.Context, cardID, userID uuid.UUID) (*domain.Card, error)
	DeleteCard(ctx context.Context, cardID, userID uuid.UUID) (bool, error)
	SetCardBlocked(ctx context.Context, cardID, userID uuid.UUID, blocked bool) (*domain.Card, error)
	UpdateCardLimit(ctx context.Context, cardID, userID uuid.UUID, limit int64) (*domain.Card, error)
}

// CreateTransferParams describes the full write set of one ledger creation.
type CreateTransferParams struct {
	// Transaction is the record to insert, with its initial status already
	// decided by the engine (CREATED or SCHEDULED).
	Transaction *domain.Transaction

	// AutoConfirm promotes the freshly inserted record to CONFIRMED before
	// commit. Used for immediate outbound transfers (instant settlement).
	AutoConfirm bool

	// EnforceBalance gates the insert on the owner's derived balance,
	// computed after a row lock on the owner to serialize concurrent debits.
	EnforceBalance bool

	// CounterpartOwnerID, when set, creates the matching INBOUND CONFIRMED
	// record for that account, sharing the correlation id.
	CounterpartOwnerID *uuid.UUID

	// FulfillChargeID, when set, settles the referenced open charge instead
	// of inserting a counterpart record.
	FulfillChargeID *uuid.UUID

	// PromoCredit is added to the receiving side's promotional credit limit
	// in the same commit. Zero when there is no internal receiving side.
	PromoCredit int64
}

// ExecuteScheduledParams describes the settlement of a due scheduled debit.
// Counterpart resolution happens at execution time, not creation time.
type ExecuteScheduledParams struct {
	// Transaction is the SCHEDULED record being settled, as previously read.
	Transaction        *domain.Transaction
	CounterpartOwnerID *uuid.UUID
	FulfillChargeID    *uuid.UUID
	PromoCredit        int64
}

// SettleChargeParams describes a standalone charge settlement (deposit or
// self-funding path): conditional CREATED -> CONFIRMED transition plus the
// owner's promotional credit, in one atomic unit.
type SettleChargeParams struct {
	ChargeID      uuid.UUID
	CorrelationID string
	PromoCredit   int64
}
