package whatsapp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postop_followup/internal/domain/messaging"
)

const samplePayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "contacts": [{"wa_id": "5511987654321", "profile": {"name": "Maria"}}],
        "messages": [
          {"from": "5511987654321", "id": "wamid.A", "timestamp": "1773316800", "type": "text", "text": {"body": "sim"}},
          {"from": "5511987654321", "id": "wamid.B", "timestamp": "1773316860", "type": "button", "button": {"text": "Responder"}},
          {"from": "5511987654321", "id": "wamid.C", "timestamp": "1773316900", "type": "image"}
        ],
        "statuses": [{"id": "wamid.OUT", "status": "delivered"}]
      }
    }]
  }]
}`

func TestVerifySignature(t *testing.T) {
	body := []byte(samplePayload)
	header := Sign(body, "app-secret")

	assert.True(t, VerifySignature(body, "app-secret", header))
	assert.False(t, VerifySignature(body, "other", header))
	assert.False(t, VerifySignature(append(body, ' '), "app-secret", header))
	assert.False(t, VerifySignature(body, "app-secret", ""))
	assert.False(t, VerifySignature(body, "app-secret", header[len("sha256="):]))
	assert.False(t, VerifySignature(body, "", Sign(body, "")))
}

func TestParseMessages(t *testing.T) {
	msgs, err := ParseMessages([]byte(samplePayload))
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, messaging.InboundMessage{
		ID: "wamid.A", From: "5511987654321", Type: messaging.TypeText, Text: "sim",
		Timestamp: time.Unix(1773316800, 0),
	}, msgs[0])
	assert.Equal(t, messaging.TypeText, msgs[1].Type)
	assert.Equal(t, "Responder", msgs[1].Text)
	assert.Equal(t, "image", msgs[2].Type)
	assert.Empty(t, msgs[2].Text)
}

func TestParseMessagesStatusOnly(t *testing.T) {
	payload := `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"statuses":[{"id":"x","status":"read"}]}}]}]}`
	msgs, err := ParseMessages([]byte(payload))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestParseMessagesRejectsGarbage(t *testing.T) {
	_, err := ParseMessages([]byte("not json"))
	assert.Error(t, err)

	_, err = ParseMessages([]byte(`{"object":"page","entry":[]}`))
	assert.Error(t, err)
}
