package ai

import (
	"fmt"
	"strings"

	"postop_followup/internal/app"
	"postop_followup/internal/domain/followup"
)

const systemPrompt = `Você é um assistente médico especializado em pós-operatório de cirurgia colorretal.
Seja conservador na avaliação de risco: prefira superestimar a subestimar.
Febre alta, dor intensa ou sangramento ativo são sempre high ou critical.
Responda APENAS com um objeto JSON no formato:
{"riskLevel":"low|medium|high|critical","redFlags":["..."],"recommendations":["..."],"empathicReply":"...","analysis":"..."}
A empathicReply é enviada ao paciente por WhatsApp: linguagem simples, acolhedora, no máximo 3 parágrafos.`

func buildPrompt(req app.AIRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Questionário de acompanhamento D+%d.\n", req.DayNumber)
	fmt.Fprintf(&b, "Cirurgia: %s\n", req.SurgeryType.Label())
	if req.PatientAge > 0 {
		fmt.Fprintf(&b, "Idade: %d anos\n", req.PatientAge)
	}
	if len(req.Comorbidities) > 0 {
		fmt.Fprintf(&b, "Comorbidades: %s\n", strings.Join(req.Comorbidities, ", "))
	} else {
		b.WriteString("Sem comorbidades registradas\n")
	}

	b.WriteString("\nRespostas:\n")
	writeAnswers(&b, req.Answers)

	if len(req.PainHistory) > 0 {
		points := make([]string, 0, len(req.PainHistory))
		for _, p := range req.PainHistory {
			points = append(points, fmt.Sprintf("D+%d=%d", p.Day, p.Pain))
		}
		fmt.Fprintf(&b, "\nEvolução da dor: %s\n", strings.Join(points, ", "))
	}

	b.WriteString("\nSinais de alerta já detectados pelas regras:\n")
	if len(req.RuleFlags) == 0 {
		b.WriteString("- nenhum\n")
	}
	for _, f := range req.RuleFlags {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	return b.String()
}

func writeAnswers(b *strings.Builder, a followup.Answers) {
	if pain, ok := a.Pain(); ok {
		fmt.Fprintf(b, "- Dor (0-10): %d\n", pain)
	}
	if a.Fever != nil {
		fmt.Fprintf(b, "- Febre: %s\n", yesNo(*a.Fever))
	}
	if a.Temperature != nil {
		fmt.Fprintf(b, "- Temperatura: %.1f°C\n", *a.Temperature)
	}
	if a.Bleeding != "" {
		fmt.Fprintf(b, "- Sangramento: %s\n", a.Bleeding)
	}
	if a.UrinatingNormally != nil {
		fmt.Fprintf(b, "- Urinando normalmente: %s\n", yesNo(*a.UrinatingNormally))
	}
	if a.UrinaryRetentionHours != nil {
		fmt.Fprintf(b, "- Horas sem urinar: %.0f\n", *a.UrinaryRetentionHours)
	}
	if a.BowelMovement != nil {
		fmt.Fprintf(b, "- Evacuou: %s\n", yesNo(*a.BowelMovement))
	}
	if a.Discharge != "" {
		fmt.Fprintf(b, "- Secreção: %s\n", a.Discharge)
	}
	if a.Symptoms != "" {
		fmt.Fprintf(b, "- Outros sintomas: %s\n", a.Symptoms)
	}
}

func yesNo(v bool) string {
	if v {
		return "sim"
	}
	return "não"
}
