package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"postop_followup/internal/domain/messaging"
	"postop_followup/internal/domain/patient"
)

// Client talks to the WhatsApp Cloud API.
type Client struct {
	baseURL       string
	phoneNumberID string
	accessToken   string
	httpClient    *http.Client
	logger        *logrus.Entry
}

func NewClient(baseURL, phoneNumberID, accessToken string, logger *logrus.Entry) *Client {
	return &Client{
		baseURL:       baseURL,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		logger:        logger,
	}
}

type textBody struct {
	Body string `json:"body"`
}

type language struct {
	Code string `json:"code"`
}

type parameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type component struct {
	Type       string      `json:"type"`
	Parameters []parameter `json:"parameters"`
}

type template struct {
	Name       string      `json:"name"`
	Language   language    `json:"language"`
	Components []component `json:"components,omitempty"`
}

type outbound struct {
	MessagingProduct string    `json:"messaging_product"`
	RecipientType    string    `json:"recipient_type,omitempty"`
	To               string    `json:"to,omitempty"`
	Type             string    `json:"type,omitempty"`
	Text             *textBody `json:"text,omitempty"`
	Template         *template `json:"template,omitempty"`
	Status           string    `json:"status,omitempty"`
	MessageID        string    `json:"message_id,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText sends a free-form message, allowed inside the 24h customer care window.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	return c.send(ctx, outbound{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               patient.Digits(to),
		Type:             "text",
		Text:             &textBody{Body: body},
	})
}

// SendTemplate sends a pre-approved template; positional params fill the body.
func (c *Client) SendTemplate(ctx context.Context, to string, tpl messaging.Template) (string, error) {
	t := &template{Name: tpl.Name, Language: language{Code: tpl.Language}}
	if len(tpl.Params) > 0 {
		params := make([]parameter, 0, len(tpl.Params))
		for _, p := range tpl.Params {
			params = append(params, parameter{Type: "text", Text: p})
		}
		t.Components = []component{{Type: "body", Parameters: params}}
	}
	return c.send(ctx, outbound{
		MessagingProduct: "whatsapp",
		To:               patient.Digits(to),
		Type:             "template",
		Template:         t,
	})
}

// MarkRead shows the blue ticks for an inbound message.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	_, err := c.post(ctx, outbound{
		MessagingProduct: "whatsapp",
		Status:           "read",
		MessageID:        messageID,
	})
	return err
}

func (c *Client) send(ctx context.Context, msg outbound) (string, error) {
	raw, err := c.post(ctx, msg)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"to":   patient.MaskPhone(msg.To),
			"type": msg.Type,
		}).Warn("WhatsApp send failed")
		return "", err
	}
	var resp sendResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("whatsapp: decode response: %w", err)
	}
	if len(resp.Messages) == 0 {
		return "", fmt.Errorf("whatsapp: response without message id")
	}
	return resp.Messages[0].ID, nil
}

func (c *Client) post(ctx context.Context, msg outbound) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("whatsapp: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("whatsapp: status %d: %s (code %d)", resp.StatusCode, apiErr.Error.Message, apiErr.Error.Code)
		}
		return nil, fmt.Errorf("whatsapp: status %d", resp.StatusCode)
	}
	return body, nil
}
