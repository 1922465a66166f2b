package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/newcredit/pix-service/internal/domain"
	"github.com/newcredit/pix-service/internal/store"
)

type statementRepoStub struct {
	serviceRepoStub
	transactions []domain.Transaction
	totalSent    int64
	totalSentErr error
	counterpart  *domain.Transaction
	sender       *domain.User
}

func (s *statementRepoStub) ListTransactionsByOwner(ctx context.Context, ownerID uuid.UUID, filter domain.StatementFilter) ([]domain.Transaction, error) {
	return s.transactions, nil
}

func (s *statementRepoStub) SumConfirmedOutbound(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.totalSent, s.totalSentErr
}

func (s *statementRepoStub) FindConfirmedOutboundByCorrelation(ctx context.Context, correlationID string, excludeID uuid.UUID) (*domain.Transaction, error) {
	if s.counterpart != nil && s.counterpart.CorrelationID == correlationID {
		return s.counterpart, nil
	}
	return nil, store.ErrTransactionNotFound
}

func (s *statementRepoStub) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	if s.sender != nil && s.sender.ID == userID {
		return s.sender, nil
	}
	return nil, store.ErrUserNotFound
}

func TestGetStatement(t *testing.T) {
	owner := uuid.New()
	sender := &domain.User{ID: uuid.New(), Name: "Maria Silva"}
	outbound := domain.Transaction{
		ID:            uuid.New(),
		Value:         500,
		Direction:     domain.DirectionOutbound,
		Status:        domain.StatusConfirmed,
		OwnerID:       sender.ID,
		CorrelationID: "corr-internal",
	}
	inbound := domain.Transaction{
		ID:            uuid.New(),
		Value:         500,
		Direction:     domain.DirectionInbound,
		Status:        domain.StatusConfirmed,
		OwnerID:       owner,
		CorrelationID: "corr-internal",
	}
	external := domain.Transaction{
		ID:        uuid.New(),
		Value:     200,
		Direction: domain.DirectionInbound,
		Status:    domain.StatusConfirmed,
		OwnerID:   owner,
	}

	repo := &statementRepoStub{
		serviceRepoStub: serviceRepoStub{balance: 1300},
		transactions:    []domain.Transaction{inbound, external},
		totalSent:       700,
		counterpart:     &outbound,
		sender:          sender,
	}
	svc := NewService(repo, nil, "pix_audit_events", 50, "test-secret", 0)

	statement, err := svc.GetStatement(context.Background(), owner, domain.StatementFilter{})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if statement.TotalTransactions != 2 {
		t.Fatalf("expected 2 transactions, got %d", statement.TotalTransactions)
	}
	if statement.TotalSent != 700 {
		t.Fatalf("expected total sent 700, got %d", statement.TotalSent)
	}
	if statement.Balance != 1300 {
		t.Fatalf("expected balance 1300, got %d", statement.Balance)
	}
	if statement.Transactions[0].CounterpartyName != "Maria Silva" {
		t.Fatalf("expected enriched counterparty name, got %q", statement.Transactions[0].CounterpartyName)
	}
	if statement.Transactions[1].CounterpartyName != "" {
		t.Fatal("external inbound must stay unenriched")
	}
}

func TestGetTransaction_EnrichesInternalInbound(t *testing.T) {
	owner := uuid.New()
	sender := &domain.User{ID: uuid.New(), Name: "Maria Silva"}
	outbound := domain.Transaction{
		ID:            uuid.New(),
		Direction:     domain.DirectionOutbound,
		Status:        domain.StatusConfirmed,
		OwnerID:       sender.ID,
		CorrelationID: "corr-detail",
	}
	inbound := &domain.Transaction{
		ID:            uuid.New(),
		Direction:     domain.DirectionInbound,
		Status:        domain.StatusConfirmed,
		OwnerID:       owner,
		CorrelationID: "corr-detail",
	}

	repo := &statementRepoStub{
		serviceRepoStub: serviceRepoStub{txByID: inbound},
		counterpart:     &outbound,
		sender:          sender,
	}
	svc := NewService(repo, nil, "pix_audit_events", 50, "test-secret", 0)

	view, err := svc.GetTransaction(context.Background(), owner, inbound.ID)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if view.CounterpartyName != "Maria Silva" {
		t.Fatalf("expected the detail view to carry the sender name, got %q", view.CounterpartyName)
	}
}

func TestGetStatement_AggregateFailuresDegrade(t *testing.T) {
	repo := &statementRepoStub{
		serviceRepoStub: serviceRepoStub{balanceErr: errors.New("read timeout")},
		transactions:    []domain.Transaction{{ID: uuid.New(), Direction: domain.DirectionOutbound}},
		totalSentErr:    errors.New("read timeout"),
	}
	svc := NewService(repo, nil, "pix_audit_events", 50, "test-secret", 0)

	statement, err := svc.GetStatement(context.Background(), uuid.New(), domain.StatementFilter{})
	if err != nil {
		t.Fatalf("aggregate failures must not fail the statement, got %v", err)
	}
	if statement.TotalSent != 0 || statement.Balance != 0 {
		t.Fatalf("expected degraded aggregates, got sent=%d balance=%d", statement.TotalSent, statement.Balance)
	}
}
