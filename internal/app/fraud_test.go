package app

import (
	"errors"
	"testing"

	"github.com/newcredit/pix-service/internal/domain"
)

func TestCheckFraud(t *testing.T) {
	svc := newTestService(&serviceRepoStub{})

	tests := []struct {
		name         string
		req          domain.FraudCheckRequest
		wantScore    int
		wantApproved bool
		wantLevel    string
	}{
		{
			name:         "daytime small value is clean",
			req:          domain.FraudCheckRequest{Value: 1000, Time: "14:30"},
			wantScore:    0,
			wantApproved: true,
			wantLevel:    "LOW",
		},
		{
			name:         "night time alone stays under the threshold",
			req:          domain.FraudCheckRequest{Value: 1000, Time: "23:15"},
			wantScore:    40,
			wantApproved: true,
			wantLevel:    "MEDIUM",
		},
		{
			name:         "six in the morning is daytime again",
			req:          domain.FraudCheckRequest{Value: 1000, Time: "06:00"},
			wantScore:    0,
			wantApproved: true,
			wantLevel:    "LOW",
		},
		{
			name:         "ten at night starts the risk window",
			req:          domain.FraudCheckRequest{Value: 1000, Time: "22:00"},
			wantScore:    40,
			wantApproved: true,
			wantLevel:    "MEDIUM",
		},
		{
			name:         "high value at night crosses the threshold",
			req:          domain.FraudCheckRequest{Value: 40000, Time: "23:00"},
			wantScore:    70,
			wantApproved: false,
			wantLevel:    "HIGH",
		},
		{
			name:         "extreme value also counts as high value",
			req:          domain.FraudCheckRequest{Value: 200000, Time: "12:00"},
			wantScore:    90,
			wantApproved: false,
			wantLevel:    "HIGH",
		},
		{
			name:         "score caps at one hundred",
			req:          domain.FraudCheckRequest{Value: 200000, Time: "02:00", AttemptsLast24h: 10},
			wantScore:    100,
			wantApproved: false,
			wantLevel:    "HIGH",
		},
		{
			name:         "excessive attempts alone still approves",
			req:          domain.FraudCheckRequest{Value: 1000, Time: "12:00", AttemptsLast24h: 4},
			wantScore:    50,
			wantApproved: true,
			wantLevel:    "MEDIUM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.CheckFraud(tt.req)
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if got.Score != tt.wantScore {
				t.Fatalf("expected score %d, got %d", tt.wantScore, got.Score)
			}
			if got.Approved != tt.wantApproved {
				t.Fatalf("expected approved=%v, got %v", tt.wantApproved, got.Approved)
			}
			if got.RiskLevel != tt.wantLevel {
				t.Fatalf("expected level %s, got %s", tt.wantLevel, got.RiskLevel)
			}
		})
	}
}

func TestCheckFraud_NoRulesTriggered(t *testing.T) {
	svc := newTestService(&serviceRepoStub{})
	got, err := svc.CheckFraud(domain.FraudCheckRequest{Value: 500, Time: "10:00"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(got.TriggeredRules) != 1 || got.TriggeredRules[0] != "No rules triggered" {
		t.Fatalf("expected placeholder rule list, got %v", got.TriggeredRules)
	}
	if got.Recommendation != "Approve transaction" {
		t.Fatalf("unexpected recommendation %q", got.Recommendation)
	}
}

func TestCheckFraud_InvalidContext(t *testing.T) {
	svc := newTestService(&serviceRepoStub{})
	tests := []struct {
		name string
		req  domain.FraudCheckRequest
	}{
		{name: "missing time", req: domain.FraudCheckRequest{Value: 100, Time: ""}},
		{name: "hour out of range", req: domain.FraudCheckRequest{Value: 100, Time: "25:00"}},
		{name: "non-positive value", req: domain.FraudCheckRequest{Value: 0, Time: "12:00"}},
		{name: "negative attempts", req: domain.FraudCheckRequest{Value: 100, Time: "12:00", AttemptsLast24h: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CheckFraud(tt.req); !errors.Is(err, ErrInvalidFraudContext) {
				t.Fatalf("expected ErrInvalidFraudContext, got %v", err)
			}
		})
	}
}
