package app

import (
	"fmt"
	"sort"

	"postop_followup/internal/domain/followup"
	"postop_followup/internal/domain/patient"
)

// RedFlag is a rule-detected warning sign. Severity is medium, high or critical.
type RedFlag struct {
	Severity    followup.RiskLevel
	Description string
}

var cellulitisKeywords = []string{"vermelh", "inchac", "inchad", "calor local", "quente", "endurec"}

// DetectRedFlags applies the clinical threshold rules to one set of answers.
// It never depends on external services.
func DetectRedFlags(t patient.SurgeryType, day int, a followup.Answers) []RedFlag {
	var flags []RedFlag
	add := func(sev followup.RiskLevel, format string, args ...any) {
		flags = append(flags, RedFlag{Severity: sev, Description: fmt.Sprintf(format, args...)})
	}

	if a.HasFever() {
		switch {
		case a.Temperature == nil:
			add(followup.RiskHigh, "Febre relatada sem temperatura aferida")
		case *a.Temperature >= 39:
			add(followup.RiskCritical, "Febre alta (%.1f °C)", *a.Temperature)
		case *a.Temperature >= 38:
			add(followup.RiskHigh, "Febre (%.1f °C)", *a.Temperature)
		}
	}

	switch {
	case a.Bleeding == followup.BleedingSevere:
		add(followup.RiskCritical, "Sangramento intenso")
	case a.Bleeding == followup.BleedingModerate && (day > 3 || t == patient.SurgeryFissure):
		add(followup.RiskHigh, "Sangramento moderado no D+%d", day)
	}

	if pain, ok := a.Pain(); ok && pain >= 9 {
		add(followup.RiskCritical, "Dor muito intensa (%d/10)", pain)
	}

	folded := fold(a.Symptoms)

	switch t {
	case patient.SurgeryHemorrhoidectomy:
		if h := a.UrinaryRetentionHours; h != nil {
			switch {
			case *h > 12:
				add(followup.RiskCritical, "Retenção urinária há %.0f horas", *h)
			case *h >= 6:
				add(followup.RiskHigh, "Retenção urinária há %.0f horas", *h)
			}
		}
		if day >= 3 && a.BowelMovement != nil && !*a.BowelMovement {
			add(followup.RiskMedium, "Sem evacuação até o D+%d", day)
		}

	case patient.SurgeryFistula:
		if a.Discharge == followup.DischargePurulent || a.Discharge == followup.DischargeAbundant {
			add(followup.RiskHigh, "Secreção purulenta ou abundante")
		}
		if containsAny(folded, cellulitisKeywords...) {
			add(followup.RiskHigh, "Sinais de celulite (vermelhidão, inchaço ou calor local)")
		}

	case patient.SurgeryFissure:
		if day >= 4 && a.BowelMovement != nil && !*a.BowelMovement {
			add(followup.RiskMedium, "Sem evacuação até o D+%d", day)
		}

	case patient.SurgeryPilonidal:
		if a.Discharge == followup.DischargePurulent {
			add(followup.RiskHigh, "Secreção purulenta")
		}
		if containsAny(folded, cellulitisKeywords...) {
			add(followup.RiskHigh, "Sinais de celulite (vermelhidão, inchaço ou calor local)")
		}
	}

	sortFlags(flags)
	return flags
}

func sortFlags(flags []RedFlag) {
	sort.SliceStable(flags, func(i, j int) bool {
		return flags[i].Severity.Rank() > flags[j].Severity.Rank()
	})
}

// RiskFromFlags condenses rule flags into a risk level: any critical or two highs
// is critical, one high is high, any medium is medium.
func RiskFromFlags(flags []RedFlag) followup.RiskLevel {
	var critical, high, medium int
	for _, f := range flags {
		switch f.Severity {
		case followup.RiskCritical:
			critical++
		case followup.RiskHigh:
			high++
		case followup.RiskMedium:
			medium++
		}
	}
	switch {
	case critical > 0 || high >= 2:
		return followup.RiskCritical
	case high == 1:
		return followup.RiskHigh
	case medium > 0:
		return followup.RiskMedium
	default:
		return followup.RiskLow
	}
}

func flagDescriptions(flags []RedFlag) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		out = append(out, f.Description)
	}
	return out
}
