package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postop_followup/internal/app"
	"postop_followup/internal/domain/followup"
	"postop_followup/internal/domain/patient"
)

func completionServer(t *testing.T, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		w.Header().Set("Content-Type", "application/json")
		quoted, _ := json.Marshal(content)
		fmt.Fprintf(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":%s},"finish_reason":"stop"}]}`, quoted)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sampleRequest() app.AIRequest {
	pain, fever := 8, true
	temp := 38.4
	return app.AIRequest{
		SurgeryType:   patient.SurgeryHemorrhoidectomy,
		DayNumber:     2,
		PatientAge:    54,
		Comorbidities: []string{"diabetes"},
		Answers:       followup.Answers{PainLevel: &pain, Fever: &fever, Temperature: &temp, Bleeding: followup.BleedingLight},
		RuleFlags:     []string{"Febre"},
		PainHistory:   []followup.PainPoint{{Day: 1, Pain: 6}, {Day: 2, Pain: 8}},
	}
}

func TestAssessParsesStructuredReply(t *testing.T) {
	var seen map[string]any
	srv := completionServer(t, `{"riskLevel":"alto","redFlags":["Dor crescente"],"recommendations":["Procurar o pronto-socorro"],"empathicReply":" Sinto muito pela dor. ","analysis":"febre com dor 8"}`, &seen)

	got, err := NewOpenAIAnalyzer("key", srv.URL, "gpt-4o-mini").Assess(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, followup.RiskHigh, got.RiskLevel)
	assert.Equal(t, []string{"Dor crescente"}, got.RedFlags)
	assert.Equal(t, "Sinto muito pela dor.", got.EmpathicReply)
	assert.Equal(t, "gpt-4o-mini", seen["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, seen["response_format"])

	msgs := seen["messages"].([]any)
	require.Len(t, msgs, 2)
	user := msgs[1].(map[string]any)["content"].(string)
	assert.Contains(t, user, "D+2")
	assert.Contains(t, user, "Dor (0-10): 8")
	assert.Contains(t, user, "D+1=6, D+2=8")
	assert.Contains(t, user, "- Febre\n")
}

func TestAssessRejectsUnknownRisk(t *testing.T) {
	var seen map[string]any
	srv := completionServer(t, `{"riskLevel":"whatever"}`, &seen)

	_, err := NewOpenAIAnalyzer("key", srv.URL, "m").Assess(context.Background(), sampleRequest())
	assert.Error(t, err)
}

func TestParseAssessmentStripsCodeFence(t *testing.T) {
	got, err := parseAssessment("```json\n{\"riskLevel\":\"low\",\"empathicReply\":\"Tudo certo\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, followup.RiskLow, got.RiskLevel)
	assert.Equal(t, "Tudo certo", got.EmpathicReply)

	_, err = parseAssessment("não sei")
	assert.Error(t, err)
}
