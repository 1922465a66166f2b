/**
 * @description
 * This file implements the bill payment (boleto) features: barcode lookup
 * with mocked issuer data and balance-gated payment. Paid boletos reduce the
 * derived account balance alongside confirmed outbound transactions.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/newcredit/pix-service/internal/domain"
)

var (
	ErrInvalidBarcode = errors.New("invalid barcode")
	ErrBoletoExpired  = errors.New("boleto expired or not found")
)

// QueryBoleto validates a barcode and returns mocked issuer details. Barcodes
// ending in "0000" simulate expired or unknown bills.
func (s *Service) QueryBoleto(ctx context.Context, req domain.QueryBoletoRequest) (*domain.BoletoDetails, error) {
	barcode := req.Barcode
	if len(barcode) < 44 || digitsOnly(barcode) != barcode {
		return nil, ErrInvalidBarcode
	}
	if barcode[len(barcode)-4:] == "0000" {
		return nil, ErrBoletoExpired
	}

	// Mocked issuer data, as a real lookup would hit a clearinghouse.
	value := int64(rand.Intn(49100)+1000) + int64(rand.Intn(100))
	return &domain.BoletoDetails{
		Barcode:     barcode,
		Beneficiary: "Mock Company " + strconv.Itoa(rand.Intn(100)+1) + " LTDA",
		Value:       value,
		DueDate:     time.Now().AddDate(0, 0, rand.Intn(10)+1),
	}, nil
}

// PayBoleto debits the caller's balance by recording a PAID boleto. The
// balance gate and the insert run atomically in the store.
func (s *Service) PayBoleto(ctx context.Context, ownerID uuid.UUID, correlationID string, req domain.PayBoletoRequest) (*domain.BoletoPayment, error) {
	if req.Value <= 0 {
		return nil, ErrInvalidValue
	}
	if len(req.Barcode) < 44 || digitsOnly(req.Barcode) != req.Barcode {
		return nil, ErrInvalidBarcode
	}
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	payment := &domain.BoletoPayment{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		Value:         req.Value,
		Barcode:       req.Barcode,
		Description:   req.Description,
		Status:        domain.BoletoPaid,
		CorrelationID: correlationID,
	}
	if err := s.repo.CreateBoletoPayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to pay boleto: %w", err)
	}

	log.Printf("PayBoleto: Boleto %s paid by owner %s for value %d", payment.ID, ownerID, payment.Value)
	s.audit(ctx, "BOLETO_PAID", ownerID, payment.ID.String(), correlationID, map[string]string{
		"value":   strconv.FormatInt(payment.Value, 10),
		"barcode": maskGeneric(payment.Barcode),
	})
	return payment, nil
}

// ListBoletos returns the caller's bill payments, newest first.
func (s *Service) ListBoletos(ctx context.Context, ownerID uuid.UUID) ([]domain.BoletoPayment, error) {
	payments, err := s.repo.ListBoletoPaymentsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list boletos: %w", err)
	}
	return payments, nil
}
