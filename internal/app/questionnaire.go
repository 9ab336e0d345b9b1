package app

import (
	"errors"
	"math"

	"postop_followup/internal/domain/followup"
	"postop_followup/internal/domain/patient"
)

// QuestionID identifies a questionnaire item.
type QuestionID string

const (
	QuestionPain             QuestionID = "pain_level"
	QuestionFever            QuestionID = "fever"
	QuestionTemperature      QuestionID = "temperature"
	QuestionBleeding         QuestionID = "bleeding"
	QuestionUrination        QuestionID = "urination"
	QuestionUrinaryRetention QuestionID = "urinary_retention_hours"
	QuestionBowelMovement    QuestionID = "bowel_movement"
	QuestionDischarge        QuestionID = "discharge"
	QuestionSymptoms         QuestionID = "symptoms"
)

// errUnparseable makes the conversation re-ask the same question.
var errUnparseable = errors.New("answer not understood")

// QuestionContext decides which questions apply.
type QuestionContext struct {
	SurgeryType patient.SurgeryType
	DayNumber   int
	Answers     followup.Answers
}

// Question is one item. Parse writes the interpreted answer into a.
type Question struct {
	ID      QuestionID
	Prompt  string
	Hint    string
	Applies func(qc QuestionContext) bool
	Parse   func(text string, a *followup.Answers) error
}

// Questionnaire is the ordered list of questions; conversations store the index.
type Questionnaire struct {
	questions []Question
}

// DefaultQuestionnaire is the postoperative day questionnaire.
func DefaultQuestionnaire() *Questionnaire {
	always := func(QuestionContext) bool { return true }
	return &Questionnaire{questions: []Question{
		{
			ID:      QuestionPain,
			Prompt:  "De 0 a 10, qual a intensidade da sua dor agora? (0 = sem dor, 10 = pior dor imaginável)",
			Hint:    "Por favor, responda com um número de 0 a 10.",
			Applies: always,
			Parse:   parsePain,
		},
		{
			ID:      QuestionFever,
			Prompt:  "Você teve febre desde a última mensagem? (sim/não)",
			Hint:    "Responda apenas sim ou não.",
			Applies: always,
			Parse: func(text string, a *followup.Answers) error {
				return parseBool(text, &a.Fever)
			},
		},
		{
			ID:     QuestionTemperature,
			Prompt: "Qual foi a maior temperatura medida? (ex.: 38,2). Se não mediu, responda \"não medi\".",
			Hint:   "Informe a temperatura em graus, por exemplo 37,8, ou responda \"não medi\".",
			Applies: func(qc QuestionContext) bool {
				return qc.Answers.HasFever()
			},
			Parse: parseTemperature,
		},
		{
			ID:      QuestionBleeding,
			Prompt:  "Como está o sangramento? Responda: nenhum, leve, moderado ou intenso.",
			Hint:    "Escolha uma opção: nenhum, leve, moderado ou intenso.",
			Applies: always,
			Parse:   parseBleeding,
		},
		{
			ID:     QuestionUrination,
			Prompt: "Você está conseguindo urinar normalmente? (sim/não)",
			Hint:   "Responda apenas sim ou não.",
			Applies: func(qc QuestionContext) bool {
				return qc.SurgeryType == patient.SurgeryHemorrhoidectomy && qc.DayNumber <= 3
			},
			Parse: func(text string, a *followup.Answers) error {
				return parseBool(text, &a.UrinatingNormally)
			},
		},
		{
			ID:     QuestionUrinaryRetention,
			Prompt: "Há quantas horas você não consegue urinar?",
			Hint:   "Informe o número aproximado de horas, por exemplo 6.",
			Applies: func(qc QuestionContext) bool {
				return qc.Answers.UrinatingNormally != nil && !*qc.Answers.UrinatingNormally
			},
			Parse: parseHours,
		},
		{
			ID:     QuestionBowelMovement,
			Prompt: "Você já conseguiu evacuar desde a cirurgia? (sim/não)",
			Hint:   "Responda apenas sim ou não.",
			Applies: func(qc QuestionContext) bool {
				return qc.DayNumber >= 2
			},
			Parse: func(text string, a *followup.Answers) error {
				return parseBool(text, &a.BowelMovement)
			},
		},
		{
			ID:     QuestionDischarge,
			Prompt: "Está saindo alguma secreção da ferida? Responda: nenhuma, clara, pus ou muita secreção.",
			Hint:   "Escolha uma opção: nenhuma, clara, pus ou muita secreção.",
			Applies: func(qc QuestionContext) bool {
				return qc.SurgeryType == patient.SurgeryFistula || qc.SurgeryType == patient.SurgeryPilonidal
			},
			Parse: parseDischarge,
		},
		{
			ID:      QuestionSymptoms,
			Prompt:  "Tem algum outro sintoma ou preocupação que queira contar? Se não, responda \"não\".",
			Applies: always,
			Parse:   parseSymptoms,
		},
	}}
}

// Len is the number of questions, applicable or not.
func (q *Questionnaire) Len() int { return len(q.questions) }

// At returns the question stored at a conversation step.
func (q *Questionnaire) At(step int) (Question, bool) {
	if step < 0 || step >= len(q.questions) {
		return Question{}, false
	}
	return q.questions[step], true
}

// NextFrom returns the first applicable question at or after step.
func (q *Questionnaire) NextFrom(step int, qc QuestionContext) (int, Question, bool) {
	for i := max(step, 0); i < len(q.questions); i++ {
		if q.questions[i].Applies(qc) {
			return i, q.questions[i], true
		}
	}
	return 0, Question{}, false
}

func parsePain(text string, a *followup.Answers) error {
	v, ok := firstNumber(text)
	if !ok || v < 0 || v > 10 || v != math.Trunc(v) {
		return errUnparseable
	}
	pain := int(v)
	a.PainLevel = &pain
	return nil
}

func parseBool(text string, dst **bool) error {
	yes, known := parseYesNo(text)
	if !known {
		return errUnparseable
	}
	*dst = &yes
	return nil
}

func parseTemperature(text string, a *followup.Answers) error {
	folded := fold(text)
	if containsAny(folded, "nao medi", "nao sei", "sem termometro", "nao tenho") {
		a.Temperature = nil
		return nil
	}
	v, ok := firstNumber(text)
	if !ok || v < 34 || v > 43 {
		return errUnparseable
	}
	a.Temperature = &v
	return nil
}

func parseHours(text string, a *followup.Answers) error {
	v, ok := firstNumber(text)
	if !ok || v < 0 || v > 24*14 {
		return errUnparseable
	}
	a.UrinaryRetentionHours = &v
	return nil
}

func parseBleeding(text string, a *followup.Answers) error {
	folded := fold(text)
	switch {
	case containsAny(folded, "intens", "muito sangue", "grave", "forte", "hemorragia"):
		a.Bleeding = followup.BleedingSevere
	case containsAny(folded, "moderad", "medio"):
		a.Bleeding = followup.BleedingModerate
	case containsAny(folded, "leve", "pouco", "pouquinho", "manchando", "raia"):
		a.Bleeding = followup.BleedingLight
	case containsAny(folded, "nenhum", "nada", "sem sangr") || folded == "nao" || folded == "n":
		a.Bleeding = followup.BleedingNone
	default:
		return errUnparseable
	}
	return nil
}

func parseDischarge(text string, a *followup.Answers) error {
	folded := fold(text)
	switch {
	case containsAny(folded, "muita", "abundante", "bastante"):
		a.Discharge = followup.DischargeAbundant
	case containsAny(folded, "pus", "purulent", "amarel", "esverde", "mau cheiro", "fedor"):
		a.Discharge = followup.DischargePurulent
	case containsAny(folded, "clara", "transparente", "serosa", "agua"):
		a.Discharge = followup.DischargeSerous
	case containsAny(folded, "nenhum", "nada", "sem secre") || folded == "nao" || folded == "n":
		a.Discharge = followup.DischargeNone
	default:
		return errUnparseable
	}
	return nil
}

func parseSymptoms(text string, a *followup.Answers) error {
	ws := words(fold(text))
	if len(ws) <= 2 && len(ws) > 0 && negativeWords[ws[0]] {
		a.Symptoms = ""
		return nil
	}
	a.Symptoms = text
	return nil
}
