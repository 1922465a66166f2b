/**
 * @description
 * This file implements the optional scheduled-transfer sweep. When a cron
 * schedule is configured, the sweep periodically settles SCHEDULED debits
 * whose execution date has arrived. Counterpart resolution and the balance
 * gate run at execution time, not creation time; a debit the balance no
 * longer covers is marked FAILED.
 *
 * Without a configured schedule the sweep never runs and scheduled
 * transactions settle only through explicit confirmation.
 *
 * @dependencies
 * - github.com/robfig/cron/v3: Job scheduling with panic recovery.
 */

package app

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/newcredit/pix-service/internal/domain"
	"github.com/newcredit/pix-service/internal/store"
	"github.com/robfig/cron/v3"
)

// Sweeper runs the scheduled-transfer sweep on a cron schedule.
type Sweeper struct {
	cron     *cron.Cron
	service  *Service
	schedule string
}

// NewSweeper creates a sweeper for the given cron expression. An empty
// expression disables the sweep entirely.
func NewSweeper(service *Service, schedule string) *Sweeper {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	return &Sweeper{cron: c, service: service, schedule: schedule}
}

// Start registers and starts the sweep job. No-op when disabled.
func (s *Sweeper) Start() {
	if s.schedule == "" {
		log.Printf("level=info component=sweeper msg=\"scheduled transfer sweep disabled\"")
		return
	}
	if _, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		s.service.RunScheduledSweep(ctx)
	}); err != nil {
		log.Printf("level=error component=sweeper msg=\"failed to schedule sweep job\" schedule=%q err=%v", s.schedule, err)
		return
	}
	log.Printf("level=info component=sweeper msg=\"scheduled transfer sweep enabled\" schedule=%q", s.schedule)
	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// RunScheduledSweep settles every due SCHEDULED debit once. Failures on one
// record never stop the rest of the batch.
func (s *Service) RunScheduledSweep(ctx context.Context) {
	due, err := s.repo.ListDueScheduledTransactions(ctx, time.Now())
	if err != nil {
		log.Printf("WARN: RunScheduledSweep: failed to list due transactions: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}
	log.Printf("RunScheduledSweep: Executing %d due scheduled transactions", len(due))

	for i := range due {
		txRecord := due[i]
		if err := s.executeScheduled(ctx, &txRecord); err != nil {
			log.Printf("WARN: RunScheduledSweep: transaction %s not settled: %v", txRecord.ID, err)
		}
	}
}

func (s *Service) executeScheduled(ctx context.Context, txRecord *domain.Transaction) error {
	params := store.ExecuteScheduledParams{
		Transaction: txRecord,
		PromoCredit: s.promoCredit(txRecord.Value),
	}

	// Resolve the receiving side now, with the same precedence as immediate
	// creation: an open charge reference wins over account lookup.
	resolvedCharge := false
	if txRecord.KeyType == domain.KeyTypeRandom {
		if ref, ok := ExtractChargeReference(txRecord.DestinationKey); ok {
			charge, err := s.repo.FindOpenCharge(ctx, ref)
			switch {
			case err == nil:
				params.FulfillChargeID = &charge.ID
				resolvedCharge = true
			case errors.Is(err, store.ErrTransactionNotFound):
			default:
				return err
			}
		}
	}
	if !resolvedCharge {
		counterpart, err := s.resolveCounterpart(ctx, txRecord.KeyType, txRecord.DestinationKey)
		if err != nil {
			return err
		}
		if counterpart != nil && counterpart.ID != txRecord.OwnerID {
			params.CounterpartOwnerID = &counterpart.ID
		}
	}
	if params.FulfillChargeID == nil && params.CounterpartOwnerID == nil {
		params.PromoCredit = 0
	}

	err := s.repo.ExecuteScheduledTransaction(ctx, params)
	switch {
	case err == nil:
		s.audit(ctx, "SCHEDULED_EXECUTED", txRecord.OwnerID, txRecord.ID.String(), txRecord.CorrelationID, map[string]string{
			"value": strconv.FormatInt(txRecord.Value, 10),
		})
		return nil
	case errors.Is(err, store.ErrInsufficientBalance):
		s.audit(ctx, "SCHEDULED_FAILED", txRecord.OwnerID, txRecord.ID.String(), txRecord.CorrelationID, map[string]string{
			"reason": "insufficient balance at execution time",
		})
		return err
	default:
		return err
	}
}
