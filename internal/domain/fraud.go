package domain

// FraudCheckRequest carries the transaction context evaluated by the risk
// rule set.
type FraudCheckRequest struct {
	Value           int64  `json:"value"` // in centavos
	Time            string `json:"time"`  // HH:MM, 24h clock
	AttemptsLast24h int    `json:"attempts_last_24h"`
}

// FraudAssessment is the aggregated risk verdict.
type FraudAssessment struct {
	Score          int      `json:"score"` // 0-100
	Approved       bool     `json:"approved"`
	Reason         string   `json:"reason"`
	TriggeredRules []string `json:"triggered_rules"`
	RiskLevel      string   `json:"risk_level"` // LOW, MEDIUM, HIGH
	Recommendation string   `json:"recommendation"`
}
