package followup

// Bleeding is the patient reported amount of bleeding.
type Bleeding string

const (
	BleedingNone     Bleeding = "none"
	BleedingLight    Bleeding = "light"
	BleedingModerate Bleeding = "moderate"
	BleedingSevere   Bleeding = "severe"
)

// Discharge describes secretion from the wound.
type Discharge string

const (
	DischargeNone     Discharge = "none"
	DischargeSerous   Discharge = "serous"
	DischargePurulent Discharge = "purulent"
	DischargeAbundant Discharge = "abundant"
)

// Answers is the structured questionnaire payload. Nil pointers are questions that
// were not asked (or not answered) for this follow-up.
type Answers struct {
	PainLevel             *int      `json:"pain_level,omitempty"`
	Fever                 *bool     `json:"fever,omitempty"`
	Temperature           *float64  `json:"temperature,omitempty"`
	Bleeding              Bleeding  `json:"bleeding,omitempty"`
	UrinatingNormally     *bool     `json:"urinating_normally,omitempty"`
	UrinaryRetentionHours *float64  `json:"urinary_retention_hours,omitempty"`
	BowelMovement         *bool     `json:"bowel_movement,omitempty"`
	Discharge             Discharge `json:"discharge,omitempty"`
	Symptoms              string    `json:"symptoms,omitempty"`
}

// HasFever is true only when the patient explicitly reported fever.
func (a Answers) HasFever() bool {
	return a.Fever != nil && *a.Fever
}

// Pain returns the reported pain and whether it was answered.
func (a Answers) Pain() (int, bool) {
	if a.PainLevel == nil {
		return 0, false
	}
	return *a.PainLevel, true
}
