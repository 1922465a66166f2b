package domain

import (
	"time"

	"github.com/google/uuid"
)

// SimulateInstallmentsRequest is the DTO for a Price-table loan simulation.
type SimulateInstallmentsRequest struct {
	Value        int64   `json:"value"` // principal in centavos
	Installments int     `json:"installments"`
	MonthlyRate  float64 `json:"monthly_rate"` // e.g. 0.02 for 2% a month
}

// AmortizationRow is one month of the Price-table schedule.
type AmortizationRow struct {
	Month       int   `json:"month"`
	Installment int64 `json:"installment"` // in centavos
	Interest    int64 `json:"interest"`
	Principal   int64 `json:"principal"`
	Balance     int64 `json:"balance"`
}

// InstallmentSimulation is a persisted simulation result.
type InstallmentSimulation struct {
	ID               uuid.UUID         `json:"id"`
	Value            int64             `json:"value"`
	Installments     int               `json:"installments"`
	MonthlyRate      float64           `json:"monthly_rate"`
	InstallmentValue int64             `json:"installment_value"`
	TotalPaid        int64             `json:"total_paid"`
	AnnualCET        float64           `json:"annual_cet"` // total effective cost, % per year
	Table            []AmortizationRow `json:"table"`
	CorrelationID    string            `json:"correlation_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}
