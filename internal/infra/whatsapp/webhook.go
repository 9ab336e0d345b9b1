package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"postop_followup/internal/domain/messaging"
)

// SignatureHeader carries the HMAC of the raw webhook body.
const SignatureHeader = "X-Hub-Signature-256"

// Sign returns the header value the gateway would send for body.
func Sign(body []byte, appSecret string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a "sha256=<hex>" header against the raw body.
func VerifySignature(body []byte, appSecret, header string) bool {
	if appSecret == "" || !strings.HasPrefix(header, "sha256=") {
		return false
	}
	return hmac.Equal([]byte(Sign(body, appSecret)), []byte(header))
}

// Envelope is the webhook payload: object -> entry[] -> changes[] -> value.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
	Statuses         []Status  `json:"statuses"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type Message struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Button *struct {
		Text string `json:"text"`
	} `json:"button,omitempty"`
	Interactive *struct {
		ButtonReply *struct {
			Title string `json:"title"`
		} `json:"button_reply,omitempty"`
	} `json:"interactive,omitempty"`
}

// Status is a delivery receipt for an outbound message. Receipts are not processed.
type Status struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ParseMessages decodes the envelope and flattens it into inbound messages.
// Quick-reply buttons and interactive replies are surfaced as text.
func ParseMessages(body []byte) ([]messaging.InboundMessage, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("whatsapp: malformed webhook payload: %w", err)
	}
	if env.Object != "whatsapp_business_account" {
		return nil, fmt.Errorf("whatsapp: unexpected object %q", env.Object)
	}

	var out []messaging.InboundMessage
	for _, e := range env.Entry {
		for _, ch := range e.Changes {
			for _, m := range ch.Value.Messages {
				out = append(out, toInbound(m))
			}
		}
	}
	return out, nil
}

func toInbound(m Message) messaging.InboundMessage {
	in := messaging.InboundMessage{ID: m.ID, From: m.From, Type: m.Type}
	if sec, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil {
		in.Timestamp = time.Unix(sec, 0)
	}
	switch {
	case m.Text != nil:
		in.Text = m.Text.Body
	case m.Button != nil:
		in.Type, in.Text = messaging.TypeText, m.Button.Text
	case m.Interactive != nil && m.Interactive.ButtonReply != nil:
		in.Type, in.Text = messaging.TypeText, m.Interactive.ButtonReply.Title
	}
	return in
}
