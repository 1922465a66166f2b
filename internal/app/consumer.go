/**
 * @description
 * This file implements the provider status consumer. The simulated payment
 * provider publishes settlement callbacks to the broker; this consumer maps
 * them onto the transaction state machine. Confirmations and failures are
 * idempotent, so redelivered messages are harmless.
 *
 * Ack semantics: malformed payloads, unknown transactions and terminal-state
 * conflicts are acknowledged and dropped. Only transient processing errors
 * are requeued.
 */

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/newcredit/pix-service/internal/domain"
	"github.com/newcredit/pix-service/internal/store"
)

// ProviderStatusConsumer applies provider settlement callbacks to the ledger.
type ProviderStatusConsumer struct {
	service *Service
}

func NewProviderStatusConsumer(service *Service) *ProviderStatusConsumer {
	return &ProviderStatusConsumer{service: service}
}

// HandleMessage processes one broker delivery. The return value is the ack
// decision: true acknowledges, false requeues.
func (c *ProviderStatusConsumer) HandleMessage(body []byte) bool {
	var event domain.ProviderStatusEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("provider-consumer: failed to unmarshal payload: %v", err)
		return true
	}
	if event.TransactionID == uuid.Nil {
		log.Printf("provider-consumer: missing transaction id in event %+v", event)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.processEvent(ctx, event); err != nil {
		log.Printf("provider-consumer: processing error for transaction %s: %v", event.TransactionID, err)
		return false
	}
	return true
}

func (c *ProviderStatusConsumer) processEvent(ctx context.Context, event domain.ProviderStatusEvent) error {
	var err error
	switch normalizeProviderStatus(event.Status) {
	case "confirmed":
		_, err = c.service.ConfirmTransaction(ctx, domain.ConfirmTransactionRequest{TransactionID: event.TransactionID})
	case "failed":
		_, err = c.service.FailTransaction(ctx, event.TransactionID, event.Reason)
	default:
		// Intermediate provider states carry no ledger transition.
		return nil
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrTransactionNotFound):
		log.Printf("provider-consumer: no transaction %s; acknowledging", event.TransactionID)
		return nil
	case errors.Is(err, ErrInvalidStateTransition):
		log.Printf("provider-consumer: transaction %s already terminal; acknowledging: %v", event.TransactionID, err)
		return nil
	default:
		return err
	}
}

func normalizeProviderStatus(status string) string {
	switch strings.TrimSpace(strings.ToLower(status)) {
	case "confirmed", "completed", "successful", "success":
		return "confirmed"
	case "failed", "failure", "rejected":
		return "failed"
	case "initiated", "processing", "pending":
		return "processing"
	default:
		return status
	}
}
