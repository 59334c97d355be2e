// README: Payment-provider webhook endpoint.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"freightly/internal/modules/payments"
)

// maxWebhookBody bounds provider payload size.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	processor *payments.Processor
}

func NewWebhookHandler(p *payments.Processor) *WebhookHandler {
	return &WebhookHandler{processor: p}
}

// Handle always acknowledges with 2xx unless signature verification failed;
// handler failures are recorded on the event row instead.
func (h *WebhookHandler) Handle(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		writeError(c, http.StatusBadRequest, "unreadable body")
		return
	}
	sig := c.GetHeader("Provider-Signature")

	if err := h.processor.Process(c.Request.Context(), payload, sig); err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			writeError(c, http.StatusUnauthorized, err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
