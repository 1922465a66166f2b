/**
 * @description
 * This file implements the best-effort audit sink. Every audited ledger
 * action is written to the append-only audit table and fanned out to the
 * RabbitMQ topic exchange. Neither write may abort the primary operation;
 * failures are logged and swallowed.
 *
 * Key material is masked before it reaches an audit record. Masks keep just
 * enough of the value to be recognizable to the account holder.
 */

package app

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/newcredit/pix-service/internal/domain"
	"github.com/newcredit/pix-service/pkg/rabbitmq"
)

// MaskDocument masks a CPF or CNPJ, keeping the middle digits visible in the
// standard formatted shape.
func MaskDocument(document string) string {
	digits := digitsOnly(document)
	switch len(digits) {
	case 11:
		return "***." + digits[3:6] + "." + digits[6:9] + "-**"
	case 14:
		return "**.***." + digits[5:8] + "/" + digits[8:12] + "-**"
	default:
		return maskGeneric(digits)
	}
}

// MaskEmail keeps the first two characters of the local part and the full
// domain.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return maskGeneric(email)
	}
	local := email[:at]
	if len(local) <= 2 {
		return local + "***" + email[at:]
	}
	return local[:2] + "***" + email[at:]
}

// MaskPhone keeps only the trailing four digits.
func MaskPhone(phone string) string {
	digits := digitsOnly(phone)
	if len(digits) <= 4 {
		return "***"
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}

func maskGeneric(value string) string {
	if len(value) <= 5 {
		return "***"
	}
	return value[:3] + "***" + value[len(value)-2:]
}

// MaskKey applies the mask appropriate to the key type.
func MaskKey(keyType domain.KeyType, key string) string {
	switch keyType {
	case domain.KeyTypeCPF, domain.KeyTypeCNPJ:
		return MaskDocument(key)
	case domain.KeyTypeEmail:
		return MaskEmail(key)
	case domain.KeyTypePhone:
		return MaskPhone(key)
	default:
		return maskGeneric(key)
	}
}

// audit records one action, best-effort. The durable insert and the broker
// publish are independent; either can fail without affecting the other or
// the caller.
func (s *Service) audit(ctx context.Context, action string, actor uuid.UUID, resource, correlationID string, details map[string]string) {
	entry := domain.AuditEntry{
		ID:            uuid.New(),
		Action:        action,
		Actor:         actor.String(),
		Resource:      resource,
		CorrelationID: correlationID,
		Details:       details,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.repo.InsertAuditEntry(ctx, entry); err != nil {
		log.Printf("WARN: failed to persist audit entry for action %s: %v", action, err)
	}
	if s.producer != nil {
		event := rabbitmq.AuditEvent{
			Action:        action,
			Actor:         entry.Actor,
			Resource:      resource,
			CorrelationID: correlationID,
			Details:       details,
			Timestamp:     entry.CreatedAt,
		}
		if err := s.producer.PublishAuditEvent(ctx, s.auditExchange, event); err != nil {
			log.Printf("WARN: failed to publish audit event for action %s: %v", action, err)
		}
	}
}
