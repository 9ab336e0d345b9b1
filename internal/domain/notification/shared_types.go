// internal/domain/notification/shared_types.go
package notification

import "postop_followup/internal/domain/followup"

// Type separates clinical alerts from non-response alerts.
type Type string

const (
	TypeClinicalRisk       Type = "clinical_risk"       // raised by the response analyzer
	TypeFollowUpUnanswered Type = "followup_unanswered" // raised by the doctor alert job
)

// Priority orders notifications on the dashboard.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// PriorityForRisk maps an analysis risk level onto a notification priority.
func PriorityForRisk(r followup.RiskLevel) Priority {
	switch r {
	case followup.RiskCritical:
		return PriorityUrgent
	case followup.RiskHigh:
		return PriorityHigh
	case followup.RiskMedium:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
