/**
 * @description
 * This file implements card issuance and lifecycle management. Generated
 * numbers are Visa-shaped (prefix 4, 16 digits) with a Luhn check digit so
 * downstream validators accept them. Temporary virtual cards expire 24 hours
 * after issuance and disappear from listings once expired.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/newcredit/pix-service/internal/domain"
	"github.com/newcredit/pix-service/internal/store"
)

var ErrInvalidCardType = errors.New("invalid card type")

// defaultCardLimit is the issuance limit in centavos.
const defaultCardLimit int64 = 100000

// luhnCheckDigit computes the digit that makes prefix+digit pass the Luhn
// checksum.
func luhnCheckDigit(prefix string) int {
	sum := 0
	double := true
	for i := len(prefix) - 1; i >= 0; i-- {
		d := int(prefix[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		double = !double
		sum += d
	}
	return (10 - sum%10) % 10
}

func generateCardNumber() string {
	var b strings.Builder
	b.WriteByte('4')
	for i := 0; i < 14; i++ {
		b.WriteByte(byte('0' + rand.Intn(10)))
	}
	prefix := b.String()
	return prefix + strconv.Itoa(luhnCheckDigit(prefix))
}

func generateCVV() string {
	return fmt.Sprintf("%03d", rand.Intn(1000))
}

// CreateCard issues a new card for the authenticated user.
func (s *Service) CreateCard(ctx context.Context, userID uuid.UUID, req domain.CreateCardRequest) (*domain.Card, error) {
	switch req.Type {
	case domain.CardPhysical, domain.CardVirtual, domain.CardVirtualTemp:
	default:
		return nil, ErrInvalidCardType
	}

	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if req.Type == domain.CardVirtualTemp {
		exp := time.Now().UTC().Add(24 * time.Hour)
		expiresAt = &exp
	}

	card := &domain.Card{
		ID:             uuid.New(),
		UserID:         userID,
		Number:         generateCardNumber(),
		CVV:            generateCVV(),
		ExpirationDate: time.Now().AddDate(4, 0, 0).Format("01/06"),
		HolderName:     strings.ToUpper(user.Name),
		Type:           req.Type,
		Blocked:        false,
		Limit:          defaultCardLimit,
		ExpiresAt:      expiresAt,
	}
	if err := s.repo.CreateCard(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to create card: %w", err)
	}

	log.Printf("CreateCard: Issued %s card %s for user %s", card.Type, card.ID, userID)
	s.audit(ctx, "CARD_CREATED", userID, card.ID.String(), "", map[string]string{
		"type":   string(card.Type),
		"number": maskGeneric(card.Number),
	})
	return card, nil
}

// ListCards returns the user's non-expired cards.
func (s *Service) ListCards(ctx context.Context, userID uuid.UUID) ([]domain.Card, error) {
	return s.repo.ListCardsByUser(ctx, userID)
}

// GetCard returns one card, ownership-scoped.
func (s *Service) GetCard(ctx context.Context, userID, cardID uuid.UUID) (*domain.Card, error) {
	return s.repo.FindCardByID(ctx, cardID, userID)
}

// DeleteCard removes a card, ownership-scoped.
func (s *Service) DeleteCard(ctx context.Context, userID, cardID uuid.UUID) error {
	deleted, err := s.repo.DeleteCard(ctx, cardID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	if !deleted {
		return store.ErrCardNotFound
	}
	log.Printf("DeleteCard: Card %s deleted by user %s", cardID, userID)
	s.audit(ctx, "CARD_DELETED", userID, cardID.String(), "", nil)
	return nil
}

// ToggleCardBlock flips the blocked flag and returns the updated card.
func (s *Service) ToggleCardBlock(ctx context.Context, userID, cardID uuid.UUID) (*domain.Card, error) {
	card, err := s.repo.FindCardByID(ctx, cardID, userID)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.SetCardBlocked(ctx, cardID, userID, !card.Blocked)
	if err != nil {
		return nil, err
	}
	log.Printf("ToggleCardBlock: Card %s blocked=%v", cardID, updated.Blocked)
	s.audit(ctx, "CARD_BLOCK_TOGGLED", userID, cardID.String(), "", map[string]string{
		"blocked": strconv.FormatBool(updated.Blocked),
	})
	return updated, nil
}

// UpdateCardLimit sets a new spending limit on a card.
func (s *Service) UpdateCardLimit(ctx context.Context, userID, cardID uuid.UUID, limit int64) (*domain.Card, error) {
	if limit <= 0 {
		return nil, ErrInvalidValue
	}
	updated, err := s.repo.UpdateCardLimit(ctx, cardID, userID, limit)
	if err != nil {
		return nil, err
	}
	log.Printf("UpdateCardLimit: Card %s limit set to %d", cardID, limit)
	s.audit(ctx, "CARD_LIMIT_UPDATED", userID, cardID.String(), "", map[string]string{
		"limit": strconv.FormatInt(limit, 10),
	})
	return updated, nil
}
