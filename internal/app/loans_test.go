package app

import (
	"context"
	"errors"
	"testing"

	"github.com/newcredit/pix-service/internal/domain"
	"github.com/newcredit/pix-service/internal/store"
)

type loanRepoStub struct {
	serviceRepoStub
	saved *domain.InstallmentSimulation
}

func (s *loanRepoStub) SaveInstallmentSimulation(ctx context.Context, sim *domain.InstallmentSimulation) error {
	s.saved = sim
	return nil
}

func TestSimulateInstallments_KnownSchedule(t *testing.T) {
	repo := &loanRepoStub{}
	svc := NewService(repo, nil, "pix_audit_events", 50, "test-secret", 0)

	// PV = 10000 centavos, i = 2% per month, n = 2.
	// PMT = 10000 * (0.02 * 1.0404) / 0.0404 = 5150.4950...
	sim, err := svc.SimulateInstallments(context.Background(), "corr-loan", domain.SimulateInstallmentsRequest{
		Value:        10000,
		Installments: 2,
		MonthlyRate:  0.02,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if sim.InstallmentValue != 5150 {
		t.Fatalf("expected installment 5150, got %d", sim.InstallmentValue)
	}
	if sim.TotalPaid != 10301 {
		t.Fatalf("expected total paid 10301, got %d", sim.TotalPaid)
	}
	if len(sim.Table) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(sim.Table))
	}
	if sim.Table[0].Interest != 200 {
		t.Fatalf("expected first-month interest 200, got %d", sim.Table[0].Interest)
	}
	if sim.Table[len(sim.Table)-1].Balance != 0 {
		t.Fatalf("expected zero final balance, got %d", sim.Table[len(sim.Table)-1].Balance)
	}
	if repo.saved == nil {
		t.Fatal("expected the simulation to be persisted")
	}
}

func TestSimulateInstallments_ScheduleInvariants(t *testing.T) {
	repo := &loanRepoStub{}
	svc := NewService(repo, nil, "pix_audit_events", 50, "test-secret", 0)

	sim, err := svc.SimulateInstallments(context.Background(), "", domain.SimulateInstallmentsRequest{
		Value:        1200000,
		Installments: 12,
		MonthlyRate:  0.015,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	var principalSum int64
	for i, row := range sim.Table {
		if row.Month != i+1 {
			t.Fatalf("expected month %d, got %d", i+1, row.Month)
		}
		if row.Interest+row.Principal < row.Installment-1 || row.Interest+row.Principal > row.Installment+1 {
			t.Fatalf("month %d: interest %d + principal %d does not add up to installment %d", row.Month, row.Interest, row.Principal, row.Installment)
		}
		principalSum += row.Principal
	}
	// Principal repaid must equal the financed value within rounding residue.
	if diff := principalSum - sim.Value; diff < -12 || diff > 12 {
		t.Fatalf("principal sum %d drifts from value %d", principalSum, sim.Value)
	}
	if sim.Table[len(sim.Table)-1].Balance != 0 {
		t.Fatalf("expected zero final balance, got %d", sim.Table[len(sim.Table)-1].Balance)
	}
	if sim.TotalPaid <= sim.Value {
		t.Fatal("interest-bearing schedule must cost more than the principal")
	}
	if sim.AnnualCET <= 0 {
		t.Fatalf("expected positive annual CET, got %f", sim.AnnualCET)
	}
}

func TestSimulateInstallments_Validation(t *testing.T) {
	svc := NewService(&loanRepoStub{}, nil, "pix_audit_events", 50, "test-secret", 0)
	tests := []struct {
		name string
		req  domain.SimulateInstallmentsRequest
	}{
		{name: "zero value", req: domain.SimulateInstallmentsRequest{Installments: 12, MonthlyRate: 0.02}},
		{name: "zero installments", req: domain.SimulateInstallmentsRequest{Value: 10000, MonthlyRate: 0.02}},
		{name: "zero rate", req: domain.SimulateInstallmentsRequest{Value: 10000, Installments: 12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SimulateInstallments(context.Background(), "", tt.req); !errors.Is(err, ErrInvalidSimulation) {
				t.Fatalf("expected ErrInvalidSimulation, got %v", err)
			}
		})
	}
}

func TestListSimulations(t *testing.T) {
	repo := &listSimulationsStub{}
	svc := NewService(repo, nil, "pix_audit_events", 50, "test-secret", 0)
	sims, err := svc.ListSimulations(context.Background(), 5)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(sims) != 2 || repo.limit != 5 {
		t.Fatalf("expected 2 simulations with limit 5 passed through, got %d with limit %d", len(sims), repo.limit)
	}
}

type listSimulationsStub struct {
	store.Repository
	limit int
}

func (s *listSimulationsStub) ListInstallmentSimulations(ctx context.Context, limit int) ([]domain.InstallmentSimulation, error) {
	s.limit = limit
	return []domain.InstallmentSimulation{{}, {}}, nil
}
