/**
 * @description
 * This file implements read-side display enrichment for statement and detail
 * views. Enrichment resolves the counterparty name of an internal transfer
 * through the shared correlation id. It is a pure read: the write path never
 * depends on anything here, and a failed lookup simply leaves the view
 * unenriched.
 */

package app

import (
	"context"

	"github.com/newcredit/pix-service/internal/domain"
)

// enrichTransactions maps raw transactions to display views, attaching the
// counterparty name for inbound legs of internal transfers.
func (s *Service) enrichTransactions(ctx context.Context, transactions []domain.Transaction) []domain.TransactionView {
	views := make([]domain.TransactionView, 0, len(transactions))
	for _, t := range transactions {
		views = append(views, s.enrichTransaction(ctx, t))
	}
	return views
}

func (s *Service) enrichTransaction(ctx context.Context, t domain.Transaction) domain.TransactionView {
	view := domain.TransactionView{Transaction: t}
	if t.Direction != domain.DirectionInbound || t.CorrelationID == "" {
		return view
	}
	counterpart, err := s.repo.FindConfirmedOutboundByCorrelation(ctx, t.CorrelationID, t.ID)
	if err != nil {
		return view
	}
	sender, err := s.repo.FindUserByID(ctx, counterpart.OwnerID)
	if err != nil {
		return view
	}
	view.CounterpartyName = sender.Name
	return view
}
