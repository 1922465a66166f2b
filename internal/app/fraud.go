/**
 * @description
 * This file implements the heuristic fraud scoring engine. Rules are plain
 * tagged values in a slice; each contributes points when its predicate
 * triggers. The aggregate score is capped at 100 and the transaction is
 * approved while it stays under the rejection threshold.
 */

package app

import (
	"errors"
	"log"
	"strconv"
	"strings"

	"github.com/newcredit/pix-service/internal/domain"
)

var ErrInvalidFraudContext = errors.New("invalid fraud check context")

const fraudRejectionThreshold = 60

// fraudRule is one scoring heuristic. The rule set is data, not a type
// hierarchy.
type fraudRule struct {
	Name        string
	Points      int
	Description string
	Triggered   func(req domain.FraudCheckRequest, hour int) bool
}

var fraudRules = []fraudRule{
	{
		Name:        "NIGHT_TIME",
		Points:      40,
		Description: "Transaction performed during high-risk hours (22h-6h)",
		Triggered: func(_ domain.FraudCheckRequest, hour int) bool {
			return hour >= 22 || hour < 6
		},
	},
	{
		Name:        "HIGH_VALUE",
		Points:      30,
		Description: "Transaction value exceeds R$ 300",
		Triggered: func(req domain.FraudCheckRequest, _ int) bool {
			return req.Value > 30000
		},
	},
	{
		Name:        "EXCESSIVE_ATTEMPTS",
		Points:      50,
		Description: "More than 3 attempts in the last 24h",
		Triggered: func(req domain.FraudCheckRequest, _ int) bool {
			return req.AttemptsLast24h > 3
		},
	},
	{
		Name:        "EXTREME_VALUE",
		Points:      60,
		Description: "Transaction value exceeds R$ 1000 (extreme)",
		Triggered: func(req domain.FraudCheckRequest, _ int) bool {
			return req.Value > 100000
		},
	},
}

// CheckFraud evaluates the rule set against a transaction context.
func (s *Service) CheckFraud(req domain.FraudCheckRequest) (*domain.FraudAssessment, error) {
	hour, err := parseHour(req.Time)
	if err != nil {
		return nil, err
	}
	if req.Value <= 0 || req.AttemptsLast24h < 0 {
		return nil, ErrInvalidFraudContext
	}

	score := 0
	var triggered []string
	for _, rule := range fraudRules {
		if rule.Triggered(req, hour) {
			score += rule.Points
			triggered = append(triggered, rule.Name+": "+rule.Description)
			log.Printf("CheckFraud: Rule triggered: %s (+%d points)", rule.Name, rule.Points)
		}
	}
	if score > 100 {
		score = 100
	}
	if triggered == nil {
		triggered = []string{"No rules triggered"}
	}

	approved := score < fraudRejectionThreshold
	var riskLevel, recommendation string
	switch {
	case score < 30:
		riskLevel, recommendation = "LOW", "Approve transaction"
	case score < fraudRejectionThreshold:
		riskLevel, recommendation = "MEDIUM", "Approve with monitoring"
	default:
		riskLevel, recommendation = "HIGH", "Reject and notify user"
	}
	reason := "Transaction approved - acceptable risk"
	if !approved {
		reason = "Transaction rejected - " + strings.ToLower(riskLevel) + " risk detected"
	}

	log.Printf("CheckFraud: Analysis completed: score=%d approved=%v level=%s", score, approved, riskLevel)
	return &domain.FraudAssessment{
		Score:          score,
		Approved:       approved,
		Reason:         reason,
		TriggeredRules: triggered,
		RiskLevel:      riskLevel,
		Recommendation: recommendation,
	}, nil
}

func parseHour(clock string) (int, error) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, ErrInvalidFraudContext
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, ErrInvalidFraudContext
	}
	return hour, nil
}
