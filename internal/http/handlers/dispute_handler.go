// README: Dispute resolution handler (admin).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"freightly/internal/modules/dispute"
	"freightly/internal/types"
)

type DisputeHandler struct {
	disputes *dispute.Service
}

func NewDisputeHandler(svc *dispute.Service) *DisputeHandler {
	return &DisputeHandler{disputes: svc}
}

type resolveReq struct {
	Action       string `json:"action"`
	Notes        string `json:"notes"`
	RefundAmount int64  `json:"refund_amount"`
}

func (h *DisputeHandler) Resolve(c *gin.Context) {
	var req resolveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	b, err := h.disputes.Resolve(c.Request.Context(), dispute.ResolveCommand{
		BookingID:    types.ID(c.Param("id")),
		Actor:        actor(c),
		Action:       dispute.Action(req.Action),
		Notes:        req.Notes,
		RefundAmount: req.RefundAmount,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"booking_id": b.ID,
		"status":     b.Status,
		"settlement": b.Settlement,
		"resolution": b.ResolutionNote,
	})
}
