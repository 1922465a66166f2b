package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/newcredit/pix-service/internal/domain"
	"github.com/newcredit/pix-service/internal/store"
)

// serviceRepoStub provides a controllable repository for engine tests. Only
// the methods a test exercises are implemented; anything else panics through
// the embedded nil interface, which is a test bug worth surfacing.
type serviceRepoStub struct {
	store.Repository

	existingByIdemKey *domain.Transaction
	openCharge        *domain.Transaction
	userByDocument    *domain.User
	userByEmail       *domain.User
	userByPhone       *domain.User
	balance           int64
	balanceErr        error

	createCalled  bool
	createParams  store.CreateTransferParams
	createErr     error
	settleCalled  bool
	settleParams  store.SettleChargeParams
	settleErr     error
	updatedStatus *domain.TransactionStatus
	txByID        *domain.Transaction
	cancelResult  bool
	auditEntries  []domain.AuditEntry
}

func (s *serviceRepoStub) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	if s.existingByIdemKey != nil {
		return s.existingByIdemKey, nil
	}
	return nil, store.ErrTransactionNotFound
}

func (s *serviceRepoStub) FindOpenCharge(ctx context.Context, chargeID uuid.UUID) (*domain.Transaction, error) {
	if s.openCharge != nil && s.openCharge.ID == chargeID {
		return s.openCharge, nil
	}
	return nil, store.ErrTransactionNotFound
}

func (s *serviceRepoStub) FindUserByDocument(ctx context.Context, document string) (*domain.User, error) {
	if s.userByDocument != nil {
		return s.userByDocument, nil
	}
	return nil, store.ErrUserNotFound
}

func (s *serviceRepoStub) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if s.userByEmail != nil {
		return s.userByEmail, nil
	}
	return nil, store.ErrUserNotFound
}

func (s *serviceRepoStub) FindUserByPhone(ctx context.Context, phone string) (*domain.User, error) {
	if s.userByPhone != nil {
		return s.userByPhone, nil
	}
	return nil, store.ErrUserNotFound
}

func (s *serviceRepoStub) CreateTransfer(ctx context.Context, params store.CreateTransferParams) (*domain.Transaction, error) {
	s.createCalled = true
	s.createParams = params
	if s.createErr != nil {
		return nil, s.createErr
	}
	created := *params.Transaction
	if params.AutoConfirm {
		created.Status = domain.StatusConfirmed
	}
	return &created, nil
}

func (s *serviceRepoStub) SettleCharge(ctx context.Context, params store.SettleChargeParams) (*domain.Transaction, error) {
	s.settleCalled = true
	s.settleParams = params
	if s.settleErr != nil {
		return nil, s.settleErr
	}
	settled := *s.openCharge
	settled.Status = domain.StatusConfirmed
	return &settled, nil
}

func (s *serviceRepoStub) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	if s.txByID != nil && s.txByID.ID == transactionID {
		return s.txByID, nil
	}
	return nil, store.ErrTransactionNotFound
}

func (s *serviceRepoStub) FindTransactionByIDAndOwner(ctx context.Context, transactionID, ownerID uuid.UUID) (*domain.Transaction, error) {
	if s.txByID != nil && s.txByID.ID == transactionID && s.txByID.OwnerID == ownerID {
		return s.txByID, nil
	}
	return nil, store.ErrTransactionNotFound
}

func (s *serviceRepoStub) UpdateTransactionStatus(ctx context.Context, transactionID uuid.UUID, status domain.TransactionStatus) error {
	s.updatedStatus = &status
	return nil
}

func (s *serviceRepoStub) CancelScheduledTransaction(ctx context.Context, transactionID, ownerID uuid.UUID) (bool, error) {
	return s.cancelResult, nil
}

func (s *serviceRepoStub) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.balance, s.balanceErr
}

func (s *serviceRepoStub) InsertAuditEntry(ctx context.Context, entry domain.AuditEntry) error {
	s.auditEntries = append(s.auditEntries, entry)
	return nil
}

func newTestService(repo *serviceRepoStub) *Service {
	return NewService(repo, nil, "pix_audit_events", 50, "test-secret", 30*time.Minute)
}

func TestCreateTransaction_IdempotentReplay(t *testing.T) {
	existing := &domain.Transaction{
		ID:     uuid.New(),
		Value:  1500,
		Status: domain.StatusConfirmed,
	}
	repo := &serviceRepoStub{existingByIdemKey: existing}
	svc := newTestService(repo)

	got, err := svc.CreateTransaction(context.Background(), uuid.New(), "key-1", "", domain.CreateTransactionRequest{
		Value:   9999,
		KeyType: domain.KeyTypeCPF,
		Key:     "12345678901",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.ID != existing.ID {
		t.Fatalf("expected the original record, got %s", got.ID)
	}
	if repo.createCalled {
		t.Fatal("replay must not re-execute the transfer")
	}
}

func TestCreateTransaction_Validation(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	tests := []struct {
		name    string
		idemKey string
		req     domain.CreateTransactionRequest
		wantErr error
	}{
		{
			name:    "missing idempotency key",
			idemKey: "",
			req:     domain.CreateTransactionRequest{Value: 100, KeyType: domain.KeyTypeCPF, Key: "12345678901"},
			wantErr: ErrMissingIdempotencyKey,
		},
		{
			name:    "non-positive value",
			idemKey: "k",
			req:     domain.CreateTransactionRequest{Value: 0, KeyType: domain.KeyTypeCPF, Key: "12345678901"},
			wantErr: ErrInvalidValue,
		},
		{
			name:    "short cpf",
			idemKey: "k",
			req:     domain.CreateTransactionRequest{Value: 100, KeyType: domain.KeyTypeCPF, Key: "123"},
			wantErr: ErrInvalidKey,
		},
		{
			name:    "malformed email",
			idemKey: "k",
			req:     domain.CreateTransactionRequest{Value: 100, KeyType: domain.KeyTypeEmail, Key: "not-an-email"},
			wantErr: ErrInvalidKey,
		},
		{
			name:    "schedule in the past",
			idemKey: "k",
			req:     domain.CreateTransactionRequest{Value: 100, KeyType: domain.KeyTypeCPF, Key: "12345678901", ScheduledFor: &past},
			wantErr: ErrScheduleInPast,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &serviceRepoStub{}
			svc := newTestService(repo)
			_, err := svc.CreateTransaction(context.Background(), uuid.New(), tt.idemKey, "", tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if repo.createCalled {
				t.Fatal("invalid request must not reach the store")
			}
		})
	}
}

func TestCreateTransaction_InternalTransfer(t *testing.T) {
	receiver := &domain.User{ID: uuid.New(), Name: "Receiver"}
	repo := &serviceRepoStub{userByDocument: receiver}
	svc := newTestService(repo)
	sender := uuid.New()

	got, err := svc.CreateTransaction(context.Background(), sender, "key-internal", "corr-1", domain.CreateTransactionRequest{
		Value:   150,
		KeyType: domain.KeyTypeCPF,
		Key:     "123.456.789-01",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	params := repo.createParams
	if !params.AutoConfirm || !params.EnforceBalance {
		t.Fatal("immediate outbound transfer must auto-confirm behind the balance gate")
	}
	if params.CounterpartOwnerID == nil || *params.CounterpartOwnerID != receiver.ID {
		t.Fatal("expected counterpart resolution to the receiving account")
	}
	if params.PromoCredit != 75 {
		t.Fatalf("expected promo credit 75 for value 150, got %d", params.PromoCredit)
	}
	if params.Transaction.DestinationKey != "12345678901" {
		t.Fatalf("expected normalized key, got %q", params.Transaction.DestinationKey)
	}
	if got.Status != domain.StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", got.Status)
	}
}

func TestCreateTransaction_SelfDirectedTransferMirrors(t *testing.T) {
	sender := &domain.User{ID: uuid.New(), Name: "Sender"}
	repo := &serviceRepoStub{userByDocument: sender}
	svc := newTestService(repo)

	got, err := svc.CreateTransaction(context.Background(), sender.ID, "key-self", "", domain.CreateTransactionRequest{
		Value:   150,
		KeyType: domain.KeyTypeCPF,
		Key:     "12345678901",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	params := repo.createParams
	if params.CounterpartOwnerID == nil || *params.CounterpartOwnerID != sender.ID {
		t.Fatal("a transfer to the sender's own key must credit the sender back")
	}
	if params.PromoCredit != 75 {
		t.Fatalf("expected promo credit 75, got %d", params.PromoCredit)
	}
	if got.Status != domain.StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", got.Status)
	}
}

func TestCreateTransaction_InsufficientBalance(t *testing.T) {
	repo := &serviceRepoStub{createErr: store.ErrInsufficientBalance}
	svc := newTestService(repo)

	_, err := svc.CreateTransaction(context.Background(), uuid.New(), "key-broke", "", domain.CreateTransactionRequest{
		Value:   10,
		KeyType: domain.KeyTypeCPF,
		Key:     "12345678901",
	})
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if len(repo.auditEntries) != 0 {
		t.Fatal("a rejected transfer must not leave an audit trail entry")
	}
}

func TestCreateTransaction_ExternalKeyHasNoCounterpart(t *testing.T) {
	repo := &serviceRepoStub{}
	svc := newTestService(repo)

	_, err := svc.CreateTransaction(context.Background(), uuid.New(), "key-ext", "", domain.CreateTransactionRequest{
		Value:   200,
		KeyType: domain.KeyTypeEmail,
		Key:     "Nobody@Example.com",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if repo.createParams.CounterpartOwnerID != nil {
		t.Fatal("unknown key must not resolve a counterpart")
	}
}

// racingRepoStub simulates losing the unique-key race: the pre-insert
// idempotency check misses, the insert reports a duplicate, and the re-fetch
// finds the record the winner committed.
type racingRepoStub struct {
	serviceRepoStub
	winner  *domain.Transaction
	lookups int
}

func (s *racingRepoStub) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	s.lookups++
	if s.lookups == 1 {
		return nil, store.ErrTransactionNotFound
	}
	return s.winner, nil
}

func TestCreateTransaction_DuplicateKeyRace(t *testing.T) {
	winner := &domain.Transaction{ID: uuid.New(), Status: domain.StatusConfirmed}
	repo := &racingRepoStub{
		serviceRepoStub: serviceRepoStub{createErr: store.ErrDuplicateIdempotencyKey},
		winner:          winner,
	}
	svc := NewService(repo, nil, "pix_audit_events", 50, "test-secret", 30*time.Minute)

	got, err := svc.CreateTransaction(context.Background(), uuid.New(), "key-race", "", domain.CreateTransactionRequest{
		Value:   100,
		KeyType: domain.KeyTypeCPF,
		Key:     "12345678901",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.ID != winner.ID {
		t.Fatalf("expected winner record after race, got %s", got.ID)
	}
	if repo.lookups != 2 {
		t.Fatalf("expected a re-fetch after the duplicate, got %d lookups", repo.lookups)
	}
}

func TestCreateTransaction_SelfFundingDeposit(t *testing.T) {
	owner := uuid.New()
	charge := &domain.Transaction{
		ID:        uuid.New(),
		Value:     2000,
		Direction: domain.DirectionInbound,
		Status:    domain.StatusCreated,
		OwnerID:   owner,
	}
	repo := &serviceRepoStub{openCharge: charge}
	svc := newTestService(repo)

	got, err := svc.CreateTransaction(context.Background(), owner, "key-deposit", "corr-dep", domain.CreateTransactionRequest{
		Value:   2000,
		KeyType: domain.KeyTypeRandom,
		Key:     chargePayload(charge.ID, charge.Value),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !repo.settleCalled {
		t.Fatal("paying your own charge must settle it directly")
	}
	if repo.createCalled {
		t.Fatal("self-funding must not create an outbound record")
	}
	if repo.settleParams.PromoCredit != 1000 {
		t.Fatalf("expected promo credit 1000, got %d", repo.settleParams.PromoCredit)
	}
	if got.Status != domain.StatusConfirmed {
		t.Fatalf("expected the settled charge, got status %s", got.Status)
	}
}

func TestCreateTransaction_PaysAnotherAccountsCharge(t *testing.T) {
	charge := &domain.Transaction{
		ID:        uuid.New(),
		Value:     500,
		Direction: domain.DirectionInbound,
		Status:    domain.StatusCreated,
		OwnerID:   uuid.New(),
	}
	repo := &serviceRepoStub{openCharge: charge}
	svc := newTestService(repo)

	_, err := svc.CreateTransaction(context.Background(), uuid.New(), "key-charge", "", domain.CreateTransactionRequest{
		Value:   500,
		KeyType: domain.KeyTypeRandom,
		Key:     chargePayload(charge.ID, charge.Value),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if repo.settleCalled {
		t.Fatal("another account's charge settles inside the transfer, not standalone")
	}
	params := repo.createParams
	if params.FulfillChargeID == nil || *params.FulfillChargeID != charge.ID {
		t.Fatal("expected the transfer to carry the charge settlement")
	}
	if params.CounterpartOwnerID != nil {
		t.Fatal("charge settlement must not also create a counterpart record")
	}
}

func TestCreateTransaction_Scheduled(t *testing.T) {
	future := time.Now().Add(48 * time.Hour)
	repo := &serviceRepoStub{userByDocument: &domain.User{ID: uuid.New()}}
	svc := newTestService(repo)

	got, err := svc.CreateTransaction(context.Background(), uuid.New(), "key-sched", "", domain.CreateTransactionRequest{
		Value:        300,
		KeyType:      domain.KeyTypeCPF,
		Key:          "12345678901",
		ScheduledFor: &future,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.Status != domain.StatusScheduled {
		t.Fatalf("expected SCHEDULED, got %s", got.Status)
	}
	params := repo.createParams
	if params.AutoConfirm || params.EnforceBalance {
		t.Fatal("scheduled debits bypass confirmation and the balance gate at creation")
	}
	if params.CounterpartOwnerID != nil || params.PromoCredit != 0 {
		t.Fatal("scheduled debits settle nothing until execution")
	}
}

func TestConfirmTransaction(t *testing.T) {
	tests := []struct {
		name       string
		status     domain.TransactionStatus
		wantErr    error
		wantUpdate bool
	}{
		{name: "created confirms", status: domain.StatusCreated, wantUpdate: true},
		{name: "scheduled confirms", status: domain.StatusScheduled, wantUpdate: true},
		{name: "confirmed is a no-op", status: domain.StatusConfirmed},
		{name: "canceled is final", status: domain.StatusCanceled, wantErr: ErrInvalidStateTransition},
		{name: "failed is final", status: domain.StatusFailed, wantErr: ErrInvalidStateTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txRecord := &domain.Transaction{ID: uuid.New(), OwnerID: uuid.New(), Status: tt.status}
			repo := &serviceRepoStub{txByID: txRecord}
			svc := newTestService(repo)

			got, err := svc.ConfirmTransaction(context.Background(), domain.ConfirmTransactionRequest{TransactionID: txRecord.ID})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if got.Status != domain.StatusConfirmed {
				t.Fatalf("expected CONFIRMED, got %s", got.Status)
			}
			if tt.wantUpdate && repo.updatedStatus == nil {
				t.Fatal("expected a status update")
			}
			if !tt.wantUpdate && repo.updatedStatus != nil {
				t.Fatal("no-op confirmation must not touch the store")
			}
		})
	}
}

func TestCancelTransaction(t *testing.T) {
	owner := uuid.New()

	t.Run("only scheduled is cancelable", func(t *testing.T) {
		repo := &serviceRepoStub{txByID: &domain.Transaction{ID: uuid.New(), OwnerID: owner, Status: domain.StatusConfirmed}}
		svc := newTestService(repo)
		_, err := svc.CancelTransaction(context.Background(), owner, repo.txByID.ID)
		if !errors.Is(err, ErrInvalidStateTransition) {
			t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
		}
	})

	t.Run("scheduled cancels", func(t *testing.T) {
		repo := &serviceRepoStub{
			txByID:       &domain.Transaction{ID: uuid.New(), OwnerID: owner, Status: domain.StatusScheduled},
			cancelResult: true,
		}
		svc := newTestService(repo)
		got, err := svc.CancelTransaction(context.Background(), owner, repo.txByID.ID)
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if got.Status != domain.StatusCanceled {
			t.Fatalf("expected CANCELED, got %s", got.Status)
		}
	})

	t.Run("foreign transaction reads as missing", func(t *testing.T) {
		repo := &serviceRepoStub{txByID: &domain.Transaction{ID: uuid.New(), OwnerID: uuid.New(), Status: domain.StatusScheduled}}
		svc := newTestService(repo)
		_, err := svc.CancelTransaction(context.Background(), owner, repo.txByID.ID)
		if !errors.Is(err, store.ErrTransactionNotFound) {
			t.Fatalf("expected not found for foreign record, got %v", err)
		}
	})
}

func TestGetBalance_DegradesToZeroOnReadFailure(t *testing.T) {
	repo := &serviceRepoStub{balance: 9999, balanceErr: errors.New("connection reset")}
	svc := newTestService(repo)
	if got := svc.GetBalance(context.Background(), uuid.New()); got != 0 {
		t.Fatalf("expected 0 on read failure, got %d", got)
	}

	repo.balanceErr = nil
	if got := svc.GetBalance(context.Background(), uuid.New()); got != 9999 {
		t.Fatalf("expected 9999, got %d", got)
	}
}

func TestConfirmCharge_PropagatesOneTimeUse(t *testing.T) {
	charge := &domain.Transaction{
		ID:        uuid.New(),
		Value:     400,
		Direction: domain.DirectionInbound,
		Status:    domain.StatusConfirmed,
		OwnerID:   uuid.New(),
	}
	repo := &serviceRepoStub{txByID: charge, openCharge: charge, settleErr: store.ErrChargeAlreadyPaid}
	svc := newTestService(repo)

	_, err := svc.ConfirmCharge(context.Background(), "", domain.ConfirmChargeRequest{ChargeID: charge.ID})
	if !errors.Is(err, store.ErrChargeAlreadyPaid) {
		t.Fatalf("expected ErrChargeAlreadyPaid, got %v", err)
	}
}

func TestIssueCharge_EmbedsRecoverableReference(t *testing.T) {
	repo := &serviceRepoStub{}
	svc := newTestService(repo)

	charge, err := svc.IssueCharge(context.Background(), uuid.New(), "", domain.IssueChargeRequest{Value: 1500})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	ref, ok := ExtractChargeReference(charge.CopyAndPaste)
	if !ok {
		t.Fatal("expected the payload to carry an extractable reference")
	}
	if ref != charge.ChargeID {
		t.Fatalf("expected reference %s, got %s", charge.ChargeID, ref)
	}
	if repo.createParams.Transaction.Direction != domain.DirectionInbound {
		t.Fatal("charges are inbound records")
	}
	if repo.createParams.Transaction.Status != domain.StatusCreated {
		t.Fatal("charges start in CREATED")
	}
}
