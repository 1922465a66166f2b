/**
 * @description
 * This file implements installment loan simulation using the Price table
 * (French amortization, compound interest) and an annualized total effective
 * cost. Money stays in int64 centavos at the boundaries; the amortization
 * math runs on float64 and rounds each row to whole centavos.
 *
 * Formula: PMT = PV * [(1+i)^n * i] / [(1+i)^n - 1]
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"

	"github.com/google/uuid"
	"github.com/newcredit/pix-service/internal/domain"
)

var ErrInvalidSimulation = errors.New("invalid simulation parameters")

func roundCentavos(v float64) int64 {
	return int64(math.Round(v))
}

// SimulateInstallments computes the Price-table schedule for a loan request
// and persists the result for audit history.
func (s *Service) SimulateInstallments(ctx context.Context, correlationID string, req domain.SimulateInstallmentsRequest) (*domain.InstallmentSimulation, error) {
	if req.Value <= 0 || req.Installments <= 0 || req.MonthlyRate <= 0 {
		return nil, ErrInvalidSimulation
	}
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	value := float64(req.Value)
	rate := req.MonthlyRate
	n := req.Installments

	factor := math.Pow(1+rate, float64(n))
	installment := value * (rate * factor) / (factor - 1)

	table := make([]domain.AmortizationRow, 0, n)
	balance := value
	for i := 1; i <= n; i++ {
		interest := balance * rate
		principal := installment - interest
		balance -= principal
		// Floating point residue after the last row collapses to zero.
		if balance < 1 {
			balance = 0
		}
		table = append(table, domain.AmortizationRow{
			Month:       i,
			Installment: roundCentavos(installment),
			Interest:    roundCentavos(interest),
			Principal:   roundCentavos(principal),
			Balance:     roundCentavos(balance),
		})
	}

	totalPaid := installment * float64(n)
	monthlyCET := math.Pow(totalPaid/value, 1/float64(n)) - 1
	annualCET := (math.Pow(1+monthlyCET, 12) - 1) * 100

	sim := &domain.InstallmentSimulation{
		ID:               uuid.New(),
		Value:            req.Value,
		Installments:     n,
		MonthlyRate:      rate,
		InstallmentValue: roundCentavos(installment),
		TotalPaid:        roundCentavos(totalPaid),
		AnnualCET:        math.Round(annualCET*100) / 100,
		Table:            table,
		CorrelationID:    correlationID,
	}
	if err := s.repo.SaveInstallmentSimulation(ctx, sim); err != nil {
		return nil, fmt.Errorf("failed to persist simulation: %w", err)
	}

	log.Printf("SimulateInstallments: Simulation %s for value %d over %d months", sim.ID, req.Value, n)
	s.audit(ctx, "INSTALLMENT_SIMULATION", uuid.Nil, sim.ID.String(), correlationID, map[string]string{
		"value":        strconv.FormatInt(req.Value, 10),
		"installments": strconv.Itoa(n),
	})
	return sim, nil
}

// ListSimulations returns recent simulations, newest first.
func (s *Service) ListSimulations(ctx context.Context, limit int) ([]domain.InstallmentSimulation, error) {
	sims, err := s.repo.ListInstallmentSimulations(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list simulations: %w", err)
	}
	return sims, nil
}
