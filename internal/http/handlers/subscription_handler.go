// README: Remaining-quota read endpoint.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"freightly/internal/modules/subscription"
)

type SubscriptionHandler struct {
	subs *subscription.Service
}

func NewSubscriptionHandler(svc *subscription.Service) *SubscriptionHandler {
	return &SubscriptionHandler{subs: svc}
}

func (h *SubscriptionHandler) Usage(c *gin.Context) {
	a := actor(c)
	if a.ID == "" {
		writeError(c, http.StatusUnauthorized, "missing actor")
		return
	}
	u, err := h.subs.Usage(c.Request.Context(), a.ID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
