/**
 * @description
 * This file contains the core business logic for the pix-service. The
 * `Service` struct orchestrates all money movement operations, coordinating
 * between the database repository and the message broker.
 *
 * Key features:
 * - Implements the transaction state machine: CREATED -> CONFIRMED,
 *   CREATED -> SCHEDULED -> {CONFIRMED | CANCELED}, non-terminal -> FAILED.
 * - Idempotent creation keyed by the client-supplied idempotency key.
 * - Resolves destination keys to internal accounts or open charges and
 *   mirrors internal transfers with a counterpart credit record.
 * - Issues and settles one-time-use payment charges.
 * - Records best-effort audit entries with masked key material.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For audit event fan-out.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/newcredit/pix-service/internal/domain"
	"github.com/newcredit/pix-service/internal/store"
	"github.com/newcredit/pix-service/pkg/rabbitmq"
)

var (
	ErrMissingIdempotencyKey  = errors.New("idempotency key is required")
	ErrInvalidValue           = errors.New("transaction value must be positive")
	ErrScheduleInPast         = errors.New("scheduled date must be in the future")
	ErrInvalidStateTransition = errors.New("invalid state transition")
)

// Service provides the core business logic for the PIX ledger.
type Service struct {
	repo          store.Repository
	producer      rabbitmq.Publisher
	auditExchange string
	promoPercent  int64
	jwtSecret     string
	tokenTTL      time.Duration
}

// NewService creates a new pix service instance.
func NewService(repo store.Repository, producer rabbitmq.Publisher, auditExchange string, promoPercent int64, jwtSecret string, tokenTTL time.Duration) *Service {
	return &Service{
		repo:          repo,
		producer:      producer,
		auditExchange: auditExchange,
		promoPercent:  promoPercent,
		jwtSecret:     jwtSecret,
		tokenTTL:      tokenTTL,
	}
}

// promoCredit is the promotional limit increase granted to a receiving
// account, rounded down to whole centavos.
func (s *Service) promoCredit(value int64) int64 {
	return value * s.promoPercent / 100
}

// CreateTransaction handles the creation of an outbound PIX transaction. The
// same idempotency key always maps to the same record; replays return the
// original without re-executing any side effect.
func (s *Service) CreateTransaction(ctx context.Context, ownerID uuid.UUID, idempotencyKey, correlationID string, req domain.CreateTransactionRequest) (*domain.Transaction, error) {
	log.Printf("CreateTransaction: Starting creation for owner %s, value %d, key_type %s", ownerID, req.Value, req.KeyType)

	// 1. Validate the request before touching the store.
	if idempotencyKey == "" {
		return nil, ErrMissingIdempotencyKey
	}
	if req.Value <= 0 {
		return nil, ErrInvalidValue
	}
	destinationKey := NormalizeKey(req.KeyType, req.Key)
	if err := ValidateKey(req.KeyType, destinationKey); err != nil {
		return nil, err
	}
	if req.ScheduledFor != nil && !req.ScheduledFor.After(time.Now()) {
		return nil, ErrScheduleInPast
	}

	// 2. Idempotent replay: an existing record under this key is the answer.
	if existing, err := s.repo.FindTransactionByIdempotencyKey(ctx, idempotencyKey); err == nil {
		log.Printf("CreateTransaction: Replaying idempotency key for transaction %s", existing.ID)
		return existing, nil
	} else if !errors.Is(err, store.ErrTransactionNotFound) {
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}

	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	// 3. A RANDOM key may embed a charge reference. A matching open charge
	// takes priority over plain account lookup.
	var fulfillChargeID *uuid.UUID
	var counterpartOwnerID *uuid.UUID
	if req.KeyType == domain.KeyTypeRandom {
		if ref, ok := ExtractChargeReference(destinationKey); ok {
			charge, err := s.repo.FindOpenCharge(ctx, ref)
			switch {
			case err == nil && charge.OwnerID == ownerID:
				// Paying your own open charge is the deposit escape hatch:
				// the charge confirms without a balance check and the
				// promotional credit lands on the payer's own account.
				return s.selfFundCharge(ctx, ownerID, charge, correlationID)
			case err == nil:
				fulfillChargeID = &charge.ID
			case errors.Is(err, store.ErrTransactionNotFound):
				// Stale or foreign reference; treat as an external transfer.
			default:
				return nil, fmt.Errorf("failed to look up charge: %w", err)
			}
		}
	}

	// 4. Resolve the counterpart account for internal transfers.
	if fulfillChargeID == nil {
		counterpart, err := s.resolveCounterpart(ctx, req.KeyType, destinationKey)
		if err != nil {
			return nil, err
		}
		// A key the sender registered themselves still mirrors: the debit
		// and its credit land on the same account, leaving the promotional
		// credit as the net effect.
		if counterpart != nil {
			counterpartOwnerID = &counterpart.ID
		}
	}

	// 5. Build the record. Scheduled debits are accepted without a balance
	// check; the gate applies when they execute.
	scheduled := req.ScheduledFor != nil
	txRecord := &domain.Transaction{
		ID:             uuid.New(),
		Value:          req.Value,
		DestinationKey: destinationKey,
		KeyType:        req.KeyType,
		Direction:      domain.DirectionOutbound,
		Status:         domain.StatusCreated,
		OwnerID:        ownerID,
		IdempotencyKey: idempotencyKey,
		CorrelationID:  correlationID,
		Description:    req.Description,
		ScheduledFor:   req.ScheduledFor,
	}
	if scheduled {
		txRecord.Status = domain.StatusScheduled
	}

	params := store.CreateTransferParams{
		Transaction:        txRecord,
		AutoConfirm:        !scheduled,
		EnforceBalance:     !scheduled,
		CounterpartOwnerID: counterpartOwnerID,
		FulfillChargeID:    fulfillChargeID,
		PromoCredit:        s.promoCredit(req.Value),
	}
	if scheduled {
		// A scheduled debit settles nothing until it executes.
		params.CounterpartOwnerID = nil
		params.FulfillChargeID = nil
		params.PromoCredit = 0
	}

	created, err := s.repo.CreateTransfer(ctx, params)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateIdempotencyKey) {
			// Lost the race against a concurrent request with the same key;
			// the winner's record is the answer.
			existing, findErr := s.repo.FindTransactionByIdempotencyKey(ctx, idempotencyKey)
			if findErr != nil {
				return nil, fmt.Errorf("duplicate idempotency key but original not found: %w", findErr)
			}
			log.Printf("CreateTransaction: Concurrent replay of idempotency key, returning transaction %s", existing.ID)
			return existing, nil
		}
		return nil, err
	}

	log.Printf("CreateTransaction: Created transaction %s with status %s", created.ID, created.Status)
	s.audit(ctx, "TRANSACTION_CREATED", ownerID, created.ID.String(), correlationID, map[string]string{
		"value":           strconv.FormatInt(created.Value, 10),
		"key_type":        string(created.KeyType),
		"destination_key": MaskKey(created.KeyType, created.DestinationKey),
		"status":          string(created.Status),
	})
	return created, nil
}

// selfFundCharge settles the caller's own open charge, bypassing the balance
// gate. Used to simulate an external deposit.
func (s *Service) selfFundCharge(ctx context.Context, ownerID uuid.UUID, charge *domain.Transaction, correlationID string) (*domain.Transaction, error) {
	log.Printf("CreateTransaction: Self-funding deposit into charge %s for owner %s", charge.ID, ownerID)
	settled, err := s.repo.SettleCharge(ctx, store.SettleChargeParams{
		ChargeID:      charge.ID,
		CorrelationID: correlationID,
		PromoCredit:   s.promoCredit(charge.Value),
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, "DEPOSIT_RECEIVED", ownerID, settled.ID.String(), correlationID, map[string]string{
		"value": strconv.FormatInt(settled.Value, 10),
	})
	return settled, nil
}

// resolveCounterpart maps a validated key to the account that registered it,
// or nil when the key belongs to no internal account (external transfer).
func (s *Service) resolveCounterpart(ctx context.Context, keyType domain.KeyType, key string) (*domain.User, error) {
	var (
		user *domain.User
		err  error
	)
	switch keyType {
	case domain.KeyTypeCPF, domain.KeyTypeCNPJ:
		user, err = s.repo.FindUserByDocument(ctx, key)
	case domain.KeyTypeEmail:
		user, err = s.repo.FindUserByEmail(ctx, key)
	case domain.KeyTypePhone:
		user, err = s.repo.FindUserByPhone(ctx, key)
	default:
		return nil, nil
	}
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve destination key: %w", err)
	}
	return user, nil
}

// ConfirmTransaction settles a pending transaction, modeling the provider
// callback. Confirming an already confirmed transaction is a no-op; canceled
// and failed transactions are final.
func (s *Service) ConfirmTransaction(ctx context.Context, req domain.ConfirmTransactionRequest) (*domain.Transaction, error) {
	txRecord, err := s.repo.FindTransactionByID(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}

	switch txRecord.Status {
	case domain.StatusConfirmed:
		log.Printf("ConfirmTransaction: Transaction %s already confirmed, no-op", txRecord.ID)
		return txRecord, nil
	case domain.StatusCanceled, domain.StatusFailed:
		return nil, fmt.Errorf("%w: cannot confirm a %s transaction", ErrInvalidStateTransition, txRecord.Status)
	}

	if err := s.repo.UpdateTransactionStatus(ctx, txRecord.ID, domain.StatusConfirmed); err != nil {
		return nil, fmt.Errorf("failed to confirm transaction: %w", err)
	}
	txRecord.Status = domain.StatusConfirmed
	txRecord.UpdatedAt = time.Now().UTC()

	log.Printf("ConfirmTransaction: Transaction %s confirmed", txRecord.ID)
	s.audit(ctx, "TRANSACTION_CONFIRMED", txRecord.OwnerID, txRecord.ID.String(), txRecord.CorrelationID, map[string]string{
		"value": strconv.FormatInt(txRecord.Value, 10),
	})
	return txRecord, nil
}

// FailTransaction moves a non-terminal transaction to FAILED, recording the
// provider's reason. Terminal states are immutable.
func (s *Service) FailTransaction(ctx context.Context, transactionID uuid.UUID, reason string) (*domain.Transaction, error) {
	txRecord, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	switch txRecord.Status {
	case domain.StatusFailed:
		log.Printf("FailTransaction: Transaction %s already failed, no-op", txRecord.ID)
		return txRecord, nil
	case domain.StatusConfirmed, domain.StatusCanceled:
		return nil, fmt.Errorf("%w: cannot fail a %s transaction", ErrInvalidStateTransition, txRecord.Status)
	}

	if err := s.repo.UpdateTransactionStatus(ctx, txRecord.ID, domain.StatusFailed); err != nil {
		return nil, fmt.Errorf("failed to mark transaction as failed: %w", err)
	}
	txRecord.Status = domain.StatusFailed
	txRecord.UpdatedAt = time.Now().UTC()

	log.Printf("FailTransaction: Transaction %s failed: %s", txRecord.ID, reason)
	s.audit(ctx, "TRANSACTION_FAILED", txRecord.OwnerID, txRecord.ID.String(), txRecord.CorrelationID, map[string]string{
		"reason": reason,
	})
	return txRecord, nil
}

// CancelTransaction cancels a SCHEDULED transaction owned by the caller. No
// other state is cancelable.
func (s *Service) CancelTransaction(ctx context.Context, ownerID, transactionID uuid.UUID) (*domain.Transaction, error) {
	txRecord, err := s.repo.FindTransactionByIDAndOwner(ctx, transactionID, ownerID)
	if err != nil {
		return nil, err
	}
	if txRecord.Status != domain.StatusScheduled {
		return nil, fmt.Errorf("%w: only scheduled transactions can be canceled", ErrInvalidStateTransition)
	}

	canceled, err := s.repo.CancelScheduledTransaction(ctx, transactionID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel transaction: %w", err)
	}
	if !canceled {
		// The sweep or a concurrent cancel got there first.
		return nil, fmt.Errorf("%w: transaction is no longer scheduled", ErrInvalidStateTransition)
	}
	txRecord.Status = domain.StatusCanceled
	txRecord.UpdatedAt = time.Now().UTC()

	log.Printf("CancelTransaction: Transaction %s canceled by owner %s", transactionID, ownerID)
	s.audit(ctx, "TRANSACTION_CANCELED", ownerID, transactionID.String(), txRecord.CorrelationID, nil)
	return txRecord, nil
}

// GetTransaction retrieves one transaction, scoped to the caller, with the
// same display enrichment as the statement. A record owned by someone else is
// indistinguishable from a missing one.
func (s *Service) GetTransaction(ctx context.Context, ownerID, transactionID uuid.UUID) (*domain.TransactionView, error) {
	txRecord, err := s.repo.FindTransactionByIDAndOwner(ctx, transactionID, ownerID)
	if err != nil {
		return nil, err
	}
	view := s.enrichTransaction(ctx, *txRecord)
	return &view, nil
}

// GetStatement returns the caller's transaction history, newest first, with
// aggregate totals and the derived balance.
func (s *Service) GetStatement(ctx context.Context, ownerID uuid.UUID, filter domain.StatementFilter) (*domain.Statement, error) {
	transactions, err := s.repo.ListTransactionsByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	totalSent, err := s.repo.SumConfirmedOutbound(ctx, ownerID)
	if err != nil {
		log.Printf("WARN: GetStatement: failed to compute total sent for %s: %v", ownerID, err)
		totalSent = 0
	}

	return &domain.Statement{
		TotalTransactions: len(transactions),
		TotalSent:         totalSent,
		Balance:           s.GetBalance(ctx, ownerID),
		Transactions:      s.enrichTransactions(ctx, transactions),
	}, nil
}

// GetBalance returns the derived balance for an account. A transient read
// failure degrades to zero rather than an error so balance consumers stay up.
func (s *Service) GetBalance(ctx context.Context, ownerID uuid.UUID) int64 {
	balance, err := s.repo.GetBalance(ctx, ownerID)
	if err != nil {
		log.Printf("WARN: GetBalance: read failed for %s, degrading to 0: %v", ownerID, err)
		return 0
	}
	return balance
}

// chargePayload formats the copy-and-paste string for a charge. EMV
// standard-ish mock; the reference id sits right after the PIX key field
// header so the resolver can recover it.
func chargePayload(ref uuid.UUID, value int64) string {
	return "00020126580014BR.GOV.BCB.PIX0136" + ref.String() +
		"520400005303986540" + strconv.FormatInt(value, 10) +
		"5802BR5913NewCredit User6008BRASILIA62070503***6304"
}

// IssueCharge creates a pending inbound charge owned by the caller. The
// charge id doubles as the payload reference.
func (s *Service) IssueCharge(ctx context.Context, ownerID uuid.UUID, correlationID string, req domain.IssueChargeRequest) (*domain.Charge, error) {
	if req.Value <= 0 {
		return nil, ErrInvalidValue
	}
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	chargeID := uuid.New()
	payload := chargePayload(chargeID, req.Value)
	txRecord := &domain.Transaction{
		ID:             chargeID,
		Value:          req.Value,
		DestinationKey: payload,
		KeyType:        domain.KeyTypeRandom,
		Direction:      domain.DirectionInbound,
		Status:         domain.StatusCreated,
		OwnerID:        ownerID,
		IdempotencyKey: "charge-" + chargeID.String(),
		CorrelationID:  correlationID,
		Description:    req.Description,
	}

	if _, err := s.repo.CreateTransfer(ctx, store.CreateTransferParams{Transaction: txRecord}); err != nil {
		return nil, fmt.Errorf("failed to create charge: %w", err)
	}

	log.Printf("IssueCharge: Charge %s issued by owner %s for value %d", chargeID, ownerID, req.Value)
	s.audit(ctx, "CHARGE_ISSUED", ownerID, chargeID.String(), correlationID, map[string]string{
		"value": strconv.FormatInt(req.Value, 10),
	})

	return &domain.Charge{
		ChargeID:     chargeID,
		Value:        req.Value,
		Description:  req.Description,
		CopyAndPaste: payload,
		QRCodeURL:    "https://api.qrserver.com/v1/create-qr-code/?size=300x300&data=" + url.QueryEscape(payload),
	}, nil
}

// ConfirmCharge settles an open charge, modeling an external payer. One-time
// use: a confirmed charge cannot settle again.
func (s *Service) ConfirmCharge(ctx context.Context, correlationID string, req domain.ConfirmChargeRequest) (*domain.Transaction, error) {
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	charge, err := s.repo.FindTransactionByID(ctx, req.ChargeID)
	if err != nil {
		return nil, err
	}
	if charge.Direction != domain.DirectionInbound {
		return nil, store.ErrTransactionNotFound
	}

	settled, err := s.repo.SettleCharge(ctx, store.SettleChargeParams{
		ChargeID:      req.ChargeID,
		CorrelationID: correlationID,
		PromoCredit:   s.promoCredit(charge.Value),
	})
	if err != nil {
		return nil, err
	}

	log.Printf("ConfirmCharge: Charge %s settled for owner %s", settled.ID, settled.OwnerID)
	s.audit(ctx, "CHARGE_CONFIRMED", settled.OwnerID, settled.ID.String(), correlationID, map[string]string{
		"value": strconv.FormatInt(settled.Value, 10),
	})
	return settled, nil
}
