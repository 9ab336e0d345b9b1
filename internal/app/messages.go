package app

import (
	"fmt"
	"strings"
)

// WhatsApp template names registered with the gateway.
const (
	templateFirstDay = "pos_op_dia1"
	templateFollowUp = "acompanhamento_medico"
)

const (
	msgPatientNotFound    = "Olá! Não encontramos seu cadastro. Por favor, entre em contato com o consultório do seu médico."
	msgNothingPending     = "Olá! No momento não há nenhum questionário pendente. Enviaremos a próxima mensagem no dia programado."
	msgAskConfirmation    = "Para começarmos o questionário de acompanhamento, responda *SIM*."
	msgTextOnly           = "Desculpe, só consigo entender mensagens de texto. Por favor, digite sua resposta."
	msgQuestionnaireIntro = "Ótimo! Vamos começar. São poucas perguntas rápidas."
	msgThanks             = "Obrigado por responder! Suas respostas foram enviadas para a equipe médica. Em caso de piora súbita, procure atendimento de urgência."
	msgDefaultEmpathic    = "Recebemos suas respostas e a equipe médica vai acompanhar sua recuperação. Qualquer dúvida, estamos à disposição."
	msgReminder           = "Olá! Notamos que o questionário de acompanhamento de hoje ainda não foi concluído. Poderia responder quando puder? É rapidinho."
)

func doctorRiskAlert(patientName string, day int, risk string, flags []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 ALERTA: %s (D+%d)\nRisco: %s", patientName, day, strings.ToUpper(risk))
	if len(flags) > 0 {
		b.WriteString("\nSinais de alerta:")
		for _, f := range flags {
			b.WriteString("\n• ")
			b.WriteString(f)
		}
	}
	return b.String()
}

func doctorUnansweredAlert(patientName string, day int, hours int) string {
	return fmt.Sprintf("⏰ %s não respondeu o questionário do D+%d enviado há %d horas.", patientName, day, hours)
}
