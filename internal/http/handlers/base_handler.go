// README: Base handler utilities (error mapping, actor extraction).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"freightly/internal/modules/booking"
	"freightly/internal/modules/dispute"
	"freightly/internal/modules/driver"
	"freightly/internal/modules/subscription"
	"freightly/internal/types"
)

type errorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status,omitempty"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}

// writeConflict surfaces the current authoritative status so UI collaborators
// can resynchronize after a rejected transition.
func writeConflict(c *gin.Context, err error, current booking.Status) {
	c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), Status: string(current)})
}

func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, driver.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrForbidden), errors.Is(err, dispute.ErrForbidden),
		errors.Is(err, driver.ErrSuspended), errors.Is(err, driver.ErrBanned):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, subscription.ErrLimitReached):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, booking.ErrInvalidState), errors.Is(err, booking.ErrConflict),
		errors.Is(err, booking.ErrDuplicateBooking),
		errors.Is(err, dispute.ErrNotDisputed), errors.Is(err, dispute.ErrResolved):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, dispute.ErrBadAction):
		writeError(c, http.StatusBadRequest, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// actor reads the identity set by the upstream auth layer.
func actor(c *gin.Context) types.Actor {
	return types.Actor{
		ID:   types.ID(c.GetHeader("X-Actor-Id")),
		Role: types.Role(c.GetHeader("X-Actor-Role")),
	}
}
