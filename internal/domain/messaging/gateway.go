package messaging

import (
	"context"
	"time"
)

// Template is a pre-approved gateway message with positional body parameters.
type Template struct {
	Name     string
	Language string
	Params   []string
}

// Gateway sends WhatsApp messages. Implementations return the gateway message id.
type Gateway interface {
	SendText(ctx context.Context, to, body string) (string, error)
	SendTemplate(ctx context.Context, to string, tpl Template) (string, error)
	MarkRead(ctx context.Context, messageID string) error
}

// Message type values reported by the gateway.
const (
	TypeText = "text"
)

// InboundMessage is one patient message extracted from a webhook delivery.
type InboundMessage struct {
	ID        string
	From      string
	Type      string
	Text      string
	Timestamp time.Time
}
