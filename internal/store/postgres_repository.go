/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL queries for the ledger tables
 * (pix_transactions, users, boleto_payments, installment_simulations, cards,
 * audit_entries) and the transactional write paths that keep money movement
 * atomic.
 *
 * @dependencies
 * - context, encoding/json, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/newcredit/pix-service/internal/domain"
)

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrUserExists              = errors.New("user already exists")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	ErrChargeAlreadyPaid       = errors.New("charge already paid")
	ErrChargeNotPayable        = errors.New("charge is not payable")
	ErrCardNotFound            = errors.New("card not found")
)

const transactionColumns = `id, value, destination_key, key_type, direction, status, owner_id, idempotency_key, COALESCE(correlation_id, '') AS correlation_id, COALESCE(description, '') AS description, scheduled_for, created_at, updated_at`

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.ID, &t.Value, &t.DestinationKey, &t.KeyType, &t.Direction, &t.Status,
		&t.OwnerID, &t.IdempotencyKey, &t.CorrelationID, &t.Description,
		&t.ScheduledFor, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateUser inserts a new account holder. Unique violations on document or
// email surface as ErrUserExists.
func (r *PostgresRepository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, name, email, document, phone, password_hash, credit_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		user.ID, user.Name, user.Email, user.Document, user.Phone, user.PasswordHash, user.CreditLimit,
	).Scan(&user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) findUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	var user domain.User
	query := `SELECT id, name, email, document, COALESCE(phone, '') AS phone, password_hash, credit_limit, created_at FROM users WHERE ` + where
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Name, &user.Email, &user.Document, &user.Phone,
		&user.PasswordHash, &user.CreditLimit, &user.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindUserByID retrieves a user from the database by their ID.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return r.findUser(ctx, "id = $1", userID)
}

// FindUserByDocument retrieves a user by their CPF/CNPJ (digits only).
func (r *PostgresRepository) FindUserByDocument(ctx context.Context, document string) (*domain.User, error) {
	return r.findUser(ctx, "document = $1", document)
}

// FindUserByEmail retrieves a user by their normalized email address.
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findUser(ctx, "lower(btrim(email)) = lower(btrim($1))", email)
}

// FindUserByPhone retrieves a user by their phone number (digits only).
func (r *PostgresRepository) FindUserByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.findUser(ctx, "phone = $1", phone)
}

// balanceWithin computes the derived balance inside an open transaction:
// confirmed inbound minus confirmed outbound minus paid boletos.
func balanceWithin(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int64, error) {
	var balance int64
	query := `
		SELECT
			COALESCE((SELECT SUM(value) FROM pix_transactions WHERE owner_id = $1 AND direction = 'INBOUND' AND status = 'CONFIRMED'), 0)
			- COALESCE((SELECT SUM(value) FROM pix_transactions WHERE owner_id = $1 AND direction = 'OUTBOUND' AND status = 'CONFIRMED'), 0)
			- COALESCE((SELECT SUM(value) FROM boleto_payments WHERE owner_id = $1 AND status = 'PAID'), 0)
	`
	err := tx.QueryRow(ctx, query, userID).Scan(&balance)
	return balance, err
}

// GetBalance computes the derived balance outside any transaction. Pure read.
func (r *PostgresRepository) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	query := `
		SELECT
			COALESCE((SELECT SUM(value) FROM pix_transactions WHERE owner_id = $1 AND direction = 'INBOUND' AND status = 'CONFIRMED'), 0)
			- COALESCE((SELECT SUM(value) FROM pix_transactions WHERE owner_id = $1 AND direction = 'OUTBOUND' AND status = 'CONFIRMED'), 0)
			- COALESCE((SELECT SUM(value) FROM boleto_payments WHERE owner_id = $1 AND status = 'PAID'), 0)
	`
	err := r.db.QueryRow(ctx, query, userID).Scan(&balance)
	return balance, err
}

// SumConfirmedOutbound returns the confirmed outbound total for an account.
func (r *PostgresRepository) SumConfirmedOutbound(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	query := `SELECT COALESCE(SUM(value), 0) FROM pix_transactions WHERE owner_id = $1 AND direction = 'OUTBOUND' AND status = 'CONFIRMED'`
	err := r.db.QueryRow(ctx, query, userID).Scan(&total)
	return total, err
}

func insertTransactionTx(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `
		INSERT INTO pix_transactions (
			id, value, destination_key, key_type, direction, status, owner_id,
			idempotency_key, correlation_id, description, scheduled_for
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	return tx.QueryRow(ctx, query,
		t.ID, t.Value, t.DestinationKey, t.KeyType, t.Direction, t.Status,
		t.OwnerID, t.IdempotencyKey, t.CorrelationID, t.Description, t.ScheduledFor,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func creditUserLimitTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return nil
	}
	result, err := tx.Exec(ctx, `UPDATE users SET credit_limit = credit_limit + $1 WHERE id = $2`, amount, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// settleChargeTx performs the one-time-use CREATED -> CONFIRMED transition of
// an open charge and credits the owner's promotional limit. The conditional
// UPDATE is what enforces exactly-once settlement under concurrency.
func settleChargeTx(ctx context.Context, tx pgx.Tx, chargeID uuid.UUID, correlationID string, promoCredit int64) (*domain.Transaction, error) {
	query := `
		UPDATE pix_transactions
		SET status = 'CONFIRMED', correlation_id = $2, updated_at = NOW()
		WHERE id = $1 AND direction = 'INBOUND' AND status = 'CREATED'
		RETURNING ` + transactionColumns
	charge, err := scanTransaction(tx.QueryRow(ctx, query, chargeID, correlationID))
	if err != nil {
		if err != pgx.ErrNoRows {
			return nil, err
		}
		// Distinguish "missing" from "already settled" for the caller.
		var status domain.TransactionStatus
		stateErr := tx.QueryRow(ctx,
			`SELECT status FROM pix_transactions WHERE id = $1 AND direction = 'INBOUND'`, chargeID,
		).Scan(&status)
		if stateErr == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		if stateErr != nil {
			return nil, stateErr
		}
		if status == domain.StatusConfirmed {
			return nil, ErrChargeAlreadyPaid
		}
		return nil, ErrChargeNotPayable
	}

	if err := creditUserLimitTx(ctx, tx, charge.OwnerID, promoCredit); err != nil {
		return nil, err
	}
	return charge, nil
}

// CreateTransfer commits one ledger creation as a single atomic unit: the new
// record, its optional counterpart or charge settlement, and the promotional
// credit all land together or not at all.
func (r *PostgresRepository) CreateTransfer(ctx context.Context, params CreateTransferParams) (*domain.Transaction, error) {
	t := params.Transaction

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if params.EnforceBalance {
		// Lock the owner row to serialize concurrent debits against the same
		// account before reading the balance.
		var lockedID uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, t.OwnerID).Scan(&lockedID)
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
		balance, err := balanceWithin(ctx, tx, t.OwnerID)
		if err != nil {
			return nil, err
		}
		if t.Value > balance {
			return nil, ErrInsufficientBalance
		}
	}

	if err := insertTransactionTx(ctx, tx, t); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateIdempotencyKey
		}
		return nil, err
	}

	if params.AutoConfirm {
		if _, err := tx.Exec(ctx,
			`UPDATE pix_transactions SET status = 'CONFIRMED', updated_at = NOW() WHERE id = $1`, t.ID,
		); err != nil {
			return nil, err
		}
		t.Status = domain.StatusConfirmed
	}

	switch {
	case params.FulfillChargeID != nil:
		if _, err := settleChargeTx(ctx, tx, *params.FulfillChargeID, t.CorrelationID, params.PromoCredit); err != nil {
			return nil, err
		}
	case params.CounterpartOwnerID != nil:
		counterpart := &domain.Transaction{
			ID:             uuid.New(),
			Value:          t.Value,
			DestinationKey: t.DestinationKey,
			KeyType:        t.KeyType,
			Direction:      domain.DirectionInbound,
			Status:         domain.StatusConfirmed,
			OwnerID:        *params.CounterpartOwnerID,
			IdempotencyKey: "internal-" + t.IdempotencyKey,
			CorrelationID:  t.CorrelationID,
			Description:    t.Description,
		}
		if counterpart.Description == "" {
			counterpart.Description = "Transfer received"
		}
		if err := insertTransactionTx(ctx, tx, counterpart); err != nil {
			return nil, err
		}
		if err := creditUserLimitTx(ctx, tx, *params.CounterpartOwnerID, params.PromoCredit); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// ExecuteScheduledTransaction settles a due SCHEDULED debit. The conditional
// status flip guards against concurrent execution and cancellation; when the
// balance no longer covers the value, the record flips to FAILED instead and
// ErrInsufficientBalance is returned.
func (r *PostgresRepository) ExecuteScheduledTransaction(ctx context.Context, params ExecuteScheduledParams) error {
	t := params.Transaction

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var lockedID uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, t.OwnerID).Scan(&lockedID); err != nil {
		if err == pgx.ErrNoRows {
			return ErrUserNotFound
		}
		return err
	}

	balance, err := balanceWithin(ctx, tx, t.OwnerID)
	if err != nil {
		return err
	}
	if t.Value > balance {
		if _, err := tx.Exec(ctx,
			`UPDATE pix_transactions SET status = 'FAILED', updated_at = NOW() WHERE id = $1 AND status = 'SCHEDULED'`, t.ID,
		); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		return ErrInsufficientBalance
	}

	result, err := tx.Exec(ctx,
		`UPDATE pix_transactions SET status = 'CONFIRMED', updated_at = NOW() WHERE id = $1 AND status = 'SCHEDULED'`, t.ID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		// Canceled or already executed since it was read.
		return ErrTransactionNotFound
	}

	switch {
	case params.FulfillChargeID != nil:
		if _, err := settleChargeTx(ctx, tx, *params.FulfillChargeID, t.CorrelationID, params.PromoCredit); err != nil {
			return err
		}
	case params.CounterpartOwnerID != nil:
		counterpart := &domain.Transaction{
			ID:             uuid.New(),
			Value:          t.Value,
			DestinationKey: t.DestinationKey,
			KeyType:        t.KeyType,
			Direction:      domain.DirectionInbound,
			Status:         domain.StatusConfirmed,
			OwnerID:        *params.CounterpartOwnerID,
			IdempotencyKey: "internal-" + t.IdempotencyKey,
			CorrelationID:  t.CorrelationID,
			Description:    t.Description,
		}
		if err := insertTransactionTx(ctx, tx, counterpart); err != nil {
			return err
		}
		if err := creditUserLimitTx(ctx, tx, *params.CounterpartOwnerID, params.PromoCredit); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// SettleCharge performs a standalone charge settlement (deposit simulation or
// self-funding path) with its promotional credit, atomically.
func (r *PostgresRepository) SettleCharge(ctx context.Context, params SettleChargeParams) (*domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	charge, err := settleChargeTx(ctx, tx, params.ChargeID, params.CorrelationID, params.PromoCredit)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return charge, nil
}

// FindTransactionByIdempotencyKey returns the record created under the given
// idempotency key, if any.
func (r *PostgresRepository) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM pix_transactions WHERE idempotency_key = $1`
	t, err := scanTransaction(r.db.QueryRow(ctx, query, key))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return t, nil
}

// FindTransactionByID retrieves a transaction regardless of ownership. Used
// by the confirmation path, which models a PSP callback without user context.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM pix_transactions WHERE id = $1`
	t, err := scanTransaction(r.db.QueryRow(ctx, query, transactionID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return t, nil
}

// FindTransactionByIDAndOwner retrieves a transaction only when owned by the
// given account. Ownership failures look identical to absence.
func (r *PostgresRepository) FindTransactionByIDAndOwner(ctx context.Context, transactionID, ownerID uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM pix_transactions WHERE id = $1 AND owner_id = $2`
	t, err := scanTransaction(r.db.QueryRow(ctx, query, transactionID, ownerID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return t, nil
}

// FindOpenCharge retrieves an unconfirmed charge (INBOUND, CREATED) by its
// embeddable reference id.
func (r *PostgresRepository) FindOpenCharge(ctx context.Context, chargeID uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM pix_transactions WHERE id = $1 AND direction = 'INBOUND' AND status = 'CREATED'`
	t, err := scanTransaction(r.db.QueryRow(ctx, query, chargeID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return t, nil
}

// FindConfirmedOutboundByCorrelation finds the other side of an internal
// transfer for read-side display enrichment.
func (r *PostgresRepository) FindConfirmedOutboundByCorrelation(ctx context.Context, correlationID string, excludeID uuid.UUID) (*domain.Transaction, error) {
	if correlationID == "" {
		return nil, ErrTransactionNotFound
	}
	query := `SELECT ` + transactionColumns + ` FROM pix_transactions WHERE correlation_id = $1 AND id <> $2 AND direction = 'OUTBOUND' LIMIT 1`
	t, err := scanTransaction(r.db.QueryRow(ctx, query, correlationID, excludeID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return t, nil
}

// UpdateTransactionStatus sets a transaction's status.
func (r *PostgresRepository) UpdateTransactionStatus(ctx context.Context, transactionID uuid.UUID, status domain.TransactionStatus) error {
	query := `UPDATE pix_transactions SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.db.Exec(ctx, query, status, transactionID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// CancelScheduledTransaction flips a SCHEDULED transaction to CANCELED. The
// conditional WHERE makes cancellation succeed at most once; the boolean
// result is false when the record was not SCHEDULED anymore (or not owned).
func (r *PostgresRepository) CancelScheduledTransaction(ctx context.Context, transactionID, ownerID uuid.UUID) (bool, error) {
	query := `
		UPDATE pix_transactions
		SET status = 'CANCELED', updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND status = 'SCHEDULED'
	`
	result, err := r.db.Exec(ctx, query, transactionID, ownerID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// ListDueScheduledTransactions returns SCHEDULED debits whose execution date
// has arrived, oldest first.
func (r *PostgresRepository) ListDueScheduledTransactions(ctx context.Context, asOf time.Time) ([]domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM pix_transactions
		WHERE status = 'SCHEDULED' AND direction = 'OUTBOUND' AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
	`
	rows, err := r.db.Query(ctx, query, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, *t)
	}
	return due, rows.Err()
}

// ListTransactionsByOwner retrieves an account's records, newest first, with
// optional status filtering.
func (r *PostgresRepository) ListTransactionsByOwner(ctx context.Context, ownerID uuid.UUID, filter domain.StatementFilter) ([]domain.Transaction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	query := `SELECT ` + transactionColumns + ` FROM pix_transactions WHERE owner_id = $1`
	args := []any{ownerID}
	if filter.Status != "" {
		query += ` AND status = $2`
		args = append(args, filter.Status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// InsertAuditEntry appends one audit record. Callers treat failures as
// best-effort; this method never participates in the primary transaction.
func (r *PostgresRepository) InsertAuditEntry(ctx context.Context, entry domain.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO audit_entries (id, action, actor, resource, correlation_id, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.Exec(ctx, query, entry.ID, entry.Action, entry.Actor, entry.Resource, entry.CorrelationID, details)
	return err
}

// CreateBoletoPayment records a balance-gated bill payment atomically.
func (r *PostgresRepository) CreateBoletoPayment(ctx context.Context, payment *domain.BoletoPayment) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var lockedID uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, payment.OwnerID).Scan(&lockedID); err != nil {
		if err == pgx.ErrNoRows {
			return ErrUserNotFound
		}
		return err
	}
	balance, err := balanceWithin(ctx, tx, payment.OwnerID)
	if err != nil {
		return err
	}
	if payment.Value > balance {
		return ErrInsufficientBalance
	}

	query := `
		INSERT INTO boleto_payments (id, owner_id, value, barcode, description, status, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	if err := tx.QueryRow(ctx, query,
		payment.ID, payment.OwnerID, payment.Value, payment.Barcode,
		payment.Description, payment.Status, payment.CorrelationID,
	).Scan(&payment.CreatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListBoletoPaymentsByOwner retrieves an account's bill payments, newest first.
func (r *PostgresRepository) ListBoletoPaymentsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.BoletoPayment, error) {
	query := `
		SELECT id, owner_id, value, barcode, COALESCE(description, '') AS description, status, COALESCE(correlation_id, '') AS correlation_id, created_at
		FROM boleto_payments
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.BoletoPayment
	for rows.Next() {
		var p domain.BoletoPayment
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Value, &p.Barcode, &p.Description, &p.Status, &p.CorrelationID, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// SaveInstallmentSimulation persists a simulation result with its schedule as JSON.
func (r *PostgresRepository) SaveInstallmentSimulation(ctx context.Context, sim *domain.InstallmentSimulation) error {
	table, err := json.Marshal(sim.Table)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO installment_simulations (
			id, value, installments, monthly_rate, installment_value, total_paid, annual_cet, amortization_table, correlation_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query,
		sim.ID, sim.Value, sim.Installments, sim.MonthlyRate, sim.InstallmentValue,
		sim.TotalPaid, sim.AnnualCET, table, sim.CorrelationID,
	).Scan(&sim.CreatedAt)
}

// ListInstallmentSimulations retrieves recent simulations, newest first.
func (r *PostgresRepository) ListInstallmentSimulations(ctx context.Context, limit int) ([]domain.InstallmentSimulation, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, value, installments, monthly_rate, installment_value, total_paid, annual_cet, amortization_table, COALESCE(correlation_id, '') AS correlation_id, created_at
		FROM installment_simulations
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sims []domain.InstallmentSimulation
	for rows.Next() {
		var sim domain.InstallmentSimulation
		var table []byte
		if err := rows.Scan(&sim.ID, &sim.Value, &sim.Installments, &sim.MonthlyRate,
			&sim.InstallmentValue, &sim.TotalPaid, &sim.AnnualCET, &table, &sim.CorrelationID, &sim.CreatedAt); err != nil {
			return nil, err
		}
		if len(table) > 0 {
			if err := json.Unmarshal(table, &sim.Table); err != nil {
				return nil, err
			}
		}
		sims = append(sims, sim)
	}
	return sims, rows.Err()
}

// CreateCard inserts a freshly issued card.
func (r *PostgresRepository) CreateCard(ctx context.Context, card *domain.Card) error {
	query := `
		INSERT INTO cards (id, user_id, number, cvv, expiration_date, holder_name, type, blocked, card_limit, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query,
		card.ID, card.UserID, card.Number, card.CVV, card.ExpirationDate,
		card.HolderName, card.Type, card.Blocked, card.Limit, card.ExpiresAt,
	).Scan(&card.CreatedAt)
}

const cardColumns = `id, user_id, number, cvv, expiration_date, holder_name, type, blocked, card_limit, expires_at, created_at`

func scanCard(row rowScanner) (*domain.Card, error) {
	var c domain.Card
	err := row.Scan(&c.ID, &c.UserID, &c.Number, &c.CVV, &c.ExpirationDate,
		&c.HolderName, &c.Type, &c.Blocked, &c.Limit, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCardsByUser retrieves a user's cards, silently dropping expired
// temporary ones.
func (r *PostgresRepository) ListCardsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Card, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM cards
		WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

// FindCardByID retrieves one non-expired card, ownership-scoped.
func (r *PostgresRepository) FindCardByID(ctx context.Context, cardID, userID uuid.UUID) (*domain.Card, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM cards
		WHERE id = $1 AND user_id = $2 AND (expires_at IS NULL OR expires_at > NOW())
	`
	c, err := scanCard(r.db.QueryRow(ctx, query, cardID, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return c, nil
}

// DeleteCard removes a card, ownership-scoped.
func (r *PostgresRepository) DeleteCard(ctx context.Context, cardID, userID uuid.UUID) (bool, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM cards WHERE id = $1 AND user_id = $2`, cardID, userID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// SetCardBlocked updates the blocked flag and returns the updated card.
func (r *PostgresRepository) SetCardBlocked(ctx context.Context, cardID, userID uuid.UUID, blocked bool) (*domain.Card, error) {
	query := `
		UPDATE cards SET blocked = $3
		WHERE id = $1 AND user_id = $2 AND (expires_at IS NULL OR expires_at > NOW())
		RETURNING ` + cardColumns
	c, err := scanCard(r.db.QueryRow(ctx, query, cardID, userID, blocked))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return c, nil
}

// UpdateCardLimit adjusts a card's spending limit and returns the updated card.
func (r *PostgresRepository) UpdateCardLimit(ctx context.Context, cardID, userID uuid.UUID, limit int64) (*domain.Card, error) {
	query := `
		UPDATE cards SET card_limit = $3
		WHERE id = $1 AND user_id = $2 AND (expires_at IS NULL OR expires_at > NOW())
		RETURNING ` + cardColumns
	c, err := scanCard(r.db.QueryRow(ctx, query, cardID, userID, limit))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return c, nil
}
