// README: Job/booking lifecycle handlers.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"freightly/internal/modules/booking"
	"freightly/internal/types"
)

type BookingHandler struct {
	bookings *booking.Service
}

func NewBookingHandler(svc *booking.Service) *BookingHandler {
	return &BookingHandler{bookings: svc}
}

type createJobReq struct {
	DayRate      int64  `json:"day_rate"`
	Currency     string `json:"currency"`
	Urgent       bool   `json:"urgent"`
	UrgencyBonus int64  `json:"urgency_bonus"`
}

func (h *BookingHandler) CreateJob(c *gin.Context) {
	a := actor(c)
	if a.Role != types.RoleCompany {
		writeError(c, http.StatusForbidden, "only companies may publish jobs")
		return
	}
	var req createJobReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Currency == "" {
		req.Currency = "EUR"
	}
	j, err := h.bookings.CreateJob(c.Request.Context(), booking.CreateJobCommand{
		CompanyID:    a.ID,
		DayRate:      types.Money{Amount: req.DayRate, Currency: req.Currency},
		Urgent:       req.Urgent,
		UrgencyBonus: req.UrgencyBonus,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"job_id": j.ID, "status": j.Status})
}

func (h *BookingHandler) GetJob(c *gin.Context) {
	j, err := h.bookings.GetJob(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job_id":     j.ID,
		"company_id": j.CompanyID,
		"status":     j.Status,
		"day_rate":   j.DayRate.Amount,
		"currency":   j.DayRate.Currency,
		"urgent":     j.Urgent,
	})
}

type applyReq struct {
	Note *string `json:"note"`
}

func (h *BookingHandler) Apply(c *gin.Context) {
	a := actor(c)
	if a.Role != types.RoleDriver {
		writeError(c, http.StatusForbidden, "only drivers may apply")
		return
	}
	var req applyReq
	_ = c.ShouldBindJSON(&req)

	b, err := h.bookings.Apply(c.Request.Context(), booking.ApplyCommand{
		JobID:      types.ID(c.Param("id")),
		DriverID:   a.ID,
		DriverNote: req.Note,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bookingView(b))
}

func (h *BookingHandler) Get(c *gin.Context) {
	b, err := h.bookings.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingView(b))
}

func (h *BookingHandler) ListByJob(c *gin.Context) {
	list, err := h.bookings.ListByJob(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, b := range list {
		out = append(out, bookingView(b))
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}

func (h *BookingHandler) Accept(c *gin.Context) {
	b, err := h.bookings.Accept(c.Request.Context(), booking.AcceptCommand{
		BookingID: types.ID(c.Param("id")),
		CompanyID: actor(c).ID,
	})
	if err != nil {
		h.writeTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingView(b))
}

func (h *BookingHandler) Start(c *gin.Context) {
	b, err := h.bookings.Start(c.Request.Context(), booking.StartCommand{
		BookingID: types.ID(c.Param("id")),
		DriverID:  actor(c).ID,
	})
	if err != nil {
		h.writeTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingView(b))
}

type deliveredReq struct {
	ProofRef string `json:"proof_ref"`
}

func (h *BookingHandler) MarkDelivered(c *gin.Context) {
	var req deliveredReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	b, err := h.bookings.MarkDelivered(c.Request.Context(), booking.MarkDeliveredCommand{
		BookingID: types.ID(c.Param("id")),
		DriverID:  actor(c).ID,
		ProofRef:  req.ProofRef,
	})
	if err != nil {
		h.writeTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingView(b))
}

func (h *BookingHandler) ValidateCompletion(c *gin.Context) {
	b, err := h.bookings.ValidateCompletion(c.Request.Context(), booking.ValidateCompletionCommand{
		BookingID: types.ID(c.Param("id")),
		CompanyID: actor(c).ID,
	})
	if err != nil {
		h.writeTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingView(b))
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	var req cancelReq
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "cancelled"
	}
	b, err := h.bookings.Cancel(c.Request.Context(), booking.CancelCommand{
		BookingID: types.ID(c.Param("id")),
		Actor:     actor(c),
		Reason:    req.Reason,
	})
	if err != nil {
		h.writeTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingView(b))
}

type noShowReq struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) ReportNoShow(c *gin.Context) {
	var req noShowReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.bookings.ReportNoShow(c.Request.Context(), booking.ReportNoShowCommand{
		BookingID: types.ID(c.Param("id")),
		CompanyID: actor(c).ID,
		Reason:    req.Reason,
	})
	if err != nil {
		h.writeTransitionError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"reported": true})
}

type confirmNoShowReq struct {
	Confirmed bool   `json:"confirmed"`
	Comment   string `json:"comment"`
}

func (h *BookingHandler) ConfirmNoShow(c *gin.Context) {
	var req confirmNoShowReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.bookings.ConfirmNoShow(c.Request.Context(), booking.ConfirmNoShowCommand{
		BookingID: types.ID(c.Param("id")),
		Actor:     actor(c),
		Confirmed: req.Confirmed,
		Comment:   req.Comment,
	})
	if err != nil {
		h.writeTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"confirmed": req.Confirmed})
}

type openDisputeReq struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) OpenDispute(c *gin.Context) {
	var req openDisputeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	b, err := h.bookings.OpenDispute(c.Request.Context(), booking.OpenDisputeCommand{
		BookingID: types.ID(c.Param("id")),
		Actor:     actor(c),
		Reason:    req.Reason,
	})
	if err != nil {
		h.writeTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingView(b))
}

// writeTransitionError attaches the current status to conflict responses.
func (h *BookingHandler) writeTransitionError(c *gin.Context, err error) {
	if errors.Is(err, booking.ErrInvalidState) || errors.Is(err, booking.ErrConflict) {
		if b, gerr := h.bookings.Get(c.Request.Context(), types.ID(c.Param("id"))); gerr == nil {
			writeConflict(c, err, b.Status)
			return
		}
	}
	writeDomainError(c, err)
}

func bookingView(b *booking.Booking) gin.H {
	return gin.H{
		"booking_id": b.ID,
		"job_id":     b.JobID,
		"driver_id":  b.DriverID,
		"status":     b.Status,
		"settlement": b.Settlement,
		"price":      b.AgreedPrice.Amount,
		"currency":   b.AgreedPrice.Currency,
		"proof_ref":  b.ProofRef,
		"created_at": b.CreatedAt,
	}
}
