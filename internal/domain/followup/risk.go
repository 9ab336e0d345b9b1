package followup

import (
	"fmt"
	"strings"
)

// RiskLevel is the clinical assessment of a response.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// Rank orders risk levels. Unknown levels rank below low.
func (r RiskLevel) Rank() int {
	if n, ok := riskRank[r]; ok {
		return n
	}
	return -1
}

// AtLeast reports whether r is as severe as other or worse.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.Rank() >= other.Rank()
}

// MaxRisk returns the more severe of a and b.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseRiskLevel accepts English and Portuguese spellings.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "baixo":
		return RiskLow, nil
	case "medium", "moderate", "medio", "médio", "moderado":
		return RiskMedium, nil
	case "high", "alto":
		return RiskHigh, nil
	case "critical", "critico", "crítico":
		return RiskCritical, nil
	}
	return "", fmt.Errorf("unknown risk level %q", s)
}
