package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/newcredit/pix-service/internal/domain"
	"github.com/newcredit/pix-service/internal/store"
)

type sweepRepoStub struct {
	serviceRepoStub
	due        []domain.Transaction
	executed   []store.ExecuteScheduledParams
	executeErr error
}

func (s *sweepRepoStub) ListDueScheduledTransactions(ctx context.Context, before time.Time) ([]domain.Transaction, error) {
	return s.due, nil
}

func (s *sweepRepoStub) ExecuteScheduledTransaction(ctx context.Context, params store.ExecuteScheduledParams) error {
	s.executed = append(s.executed, params)
	return s.executeErr
}

func scheduledDebit(keyType domain.KeyType, key string) domain.Transaction {
	return domain.Transaction{
		ID:             uuid.New(),
		Value:          1000,
		DestinationKey: key,
		KeyType:        keyType,
		Direction:      domain.DirectionOutbound,
		Status:         domain.StatusScheduled,
		OwnerID:        uuid.New(),
		IdempotencyKey: "key-" + uuid.New().String(),
	}
}

func TestRunScheduledSweep_InternalTransfer(t *testing.T) {
	receiver := &domain.User{ID: uuid.New()}
	repo := &sweepRepoStub{
		serviceRepoStub: serviceRepoStub{userByDocument: receiver},
		due:             []domain.Transaction{scheduledDebit(domain.KeyTypeCPF, "12345678901")},
	}
	svc := NewService(repo, nil, "pix_audit_events", 50, "test-secret", 0)

	svc.RunScheduledSweep(context.Background())

	if len(repo.executed) != 1 {
		t.Fatalf("expected 1 execution, got %d", len(repo.executed))
	}
	params := repo.executed[0]
	if params.CounterpartOwnerID == nil || *params.CounterpartOwnerID != receiver.ID {
		t.Fatal("expected counterpart resolution at execution time")
	}
	if params.PromoCredit != 500 {
		t.Fatalf("expected promo credit 500, got %d", params.PromoCredit)
	}
}

func TestRunScheduledSweep_ChargeReferenceWins(t *testing.T) {
	charge := &domain.Transaction{
		ID:        uuid.New(),
		Value:     1000,
		Direction: domain.DirectionInbound,
		Status:    domain.StatusCreated,
		OwnerID:   uuid.New(),
	}
	repo := &sweepRepoStub{
		serviceRepoStub: serviceRepoStub{openCharge: charge},
		due:             []domain.Transaction{scheduledDebit(domain.KeyTypeRandom, chargePayload(charge.ID, charge.Value))},
	}
	svc := NewService(repo, nil, "pix_audit_events", 50, "test-secret", 0)

	svc.RunScheduledSweep(context.Background())

	if len(repo.executed) != 1 {
		t.Fatalf("expected 1 execution, got %d", len(repo.executed))
	}
	params := repo.executed[0]
	if params.FulfillChargeID == nil || *params.FulfillChargeID != charge.ID {
		t.Fatal("expected the due debit to settle the referenced charge")
	}
	if params.CounterpartOwnerID != nil {
		t.Fatal("charge settlement must not also create a counterpart")
	}
}

func TestRunScheduledSweep_ExternalKeyDropsPromo(t *testing.T) {
	repo := &sweepRepoStub{
		due: []domain.Transaction{scheduledDebit(domain.KeyTypeEmail, "nobody@example.com")},
	}
	svc := NewService(repo, nil, "pix_audit_events", 50, "test-secret", 0)

	svc.RunScheduledSweep(context.Background())

	if len(repo.executed) != 1 {
		t.Fatalf("expected 1 execution, got %d", len(repo.executed))
	}
	params := repo.executed[0]
	if params.CounterpartOwnerID != nil || params.FulfillChargeID != nil {
		t.Fatal("unknown key must resolve to an external transfer")
	}
	if params.PromoCredit != 0 {
		t.Fatalf("no receiving account means no promo credit, got %d", params.PromoCredit)
	}
}

func TestRunScheduledSweep_InsufficientBalanceContinuesBatch(t *testing.T) {
	repo := &sweepRepoStub{
		due: []domain.Transaction{
			scheduledDebit(domain.KeyTypeEmail, "a@example.com"),
			scheduledDebit(domain.KeyTypeEmail, "b@example.com"),
		},
		executeErr: store.ErrInsufficientBalance,
	}
	svc := NewService(repo, nil, "pix_audit_events", 50, "test-secret", 0)

	svc.RunScheduledSweep(context.Background())

	if len(repo.executed) != 2 {
		t.Fatalf("one failing debit must not stop the batch, got %d executions", len(repo.executed))
	}
	var failures int
	for _, entry := range repo.auditEntries {
		if entry.Action == "SCHEDULED_FAILED" {
			failures++
		}
	}
	if failures != 2 {
		t.Fatalf("expected 2 failure audit entries, got %d", failures)
	}
}

func TestSweeperDisabledWithoutSchedule(t *testing.T) {
	svc := NewService(&sweepRepoStub{}, nil, "pix_audit_events", 50, "test-secret", 0)
	sweeper := NewSweeper(svc, "")
	sweeper.Start()
	if entries := sweeper.cron.Entries(); len(entries) != 0 {
		t.Fatalf("expected no registered jobs, got %d", len(entries))
	}
	<-sweeper.Stop().Done()
}
