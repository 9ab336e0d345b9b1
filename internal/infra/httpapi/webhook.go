package httpapi

import (
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"postop_followup/internal/domain/patient"
	"postop_followup/internal/infra/metrics"
	"postop_followup/internal/infra/whatsapp"
)

const maxWebhookBody = 1 << 20

type webhookHandler struct {
	appSecret   string
	verifyToken string
	inbound     InboundHandler
	logger      *logrus.Entry
}

// verify answers the gateway's subscription handshake.
func (h *webhookHandler) verify(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	if mode != "subscribe" || subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) != 1 {
		h.logger.WithField("mode", mode).Warn("Webhook verification rejected")
		return c.String(http.StatusForbidden, "forbidden")
	}
	return c.String(http.StatusOK, c.QueryParam("hub.challenge"))
}

// receive handles the delivered messages inline, in payload order, so a patient's
// answers are applied in the order they were sent. Malformed payloads are
// acknowledged with 200. A handling failure stops the batch and returns 500 so the
// gateway redelivers it; messages already handled are skipped as duplicates.
func (h *webhookHandler) receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		h.logger.WithError(err).Warn("Failed to read webhook body")
		return c.NoContent(http.StatusOK)
	}
	if !whatsapp.VerifySignature(body, h.appSecret, c.Request().Header.Get(whatsapp.SignatureHeader)) {
		h.logger.Warn("Webhook signature mismatch")
		metrics.WebhookMessages.WithLabelValues("bad_signature").Inc()
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "invalid signature"})
	}

	msgs, err := whatsapp.ParseMessages(body)
	if err != nil {
		h.logger.WithError(err).Warn("Ignoring malformed webhook payload")
		metrics.WebhookMessages.WithLabelValues("malformed").Inc()
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	for i, msg := range msgs {
		if err := h.inbound.HandleInbound(c.Request().Context(), msg); err != nil {
			h.logger.WithError(err).WithFields(logrus.Fields{
				"message_id": msg.ID,
				"from":       patient.MaskPhone(msg.From),
				"remaining":  len(msgs) - i,
			}).Error("Failed to handle inbound message, asking for redelivery")
			return c.JSON(http.StatusInternalServerError, errorBody{Error: "message not processed"})
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "received", "messages": len(msgs)})
}
