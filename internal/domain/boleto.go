package domain

import (
	"time"

	"github.com/google/uuid"
)

// BoletoStatus enumerates boleto payment states.
type BoletoStatus string

const (
	BoletoPaid BoletoStatus = "PAID"
)

// BoletoPayment is a settled bill payment. Paid boletos reduce the owner's
// derived balance alongside confirmed outbound transfers.
type BoletoPayment struct {
	ID            uuid.UUID    `json:"id"`
	OwnerID       uuid.UUID    `json:"owner_id"`
	Value         int64        `json:"value"` // in centavos
	Barcode       string       `json:"barcode"`
	Description   string       `json:"description,omitempty"`
	Status        BoletoStatus `json:"status"`
	CorrelationID string       `json:"correlation_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// BoletoDetails is the mock lookup result for a barcode.
type BoletoDetails struct {
	Barcode     string    `json:"barcode"`
	Beneficiary string    `json:"beneficiary"`
	Value       int64     `json:"value"` // in centavos
	DueDate     time.Time `json:"due_date"`
}

// PayBoletoRequest is the DTO for paying a boleto.
type PayBoletoRequest struct {
	Barcode     string `json:"barcode"`
	Value       int64  `json:"value"` // in centavos
	Description string `json:"description,omitempty"`
}

// QueryBoletoRequest is the DTO for barcode lookup.
type QueryBoletoRequest struct {
	Barcode string `json:"barcode"`
}
