package handlers

import (
	"errors"
	"net/http"

	"bandroom/dues"

	"github.com/gin-gonic/gin"
)

func statusForKind(kind string) int {
	switch kind {
	case dues.KindNotFound:
		return http.StatusNotFound
	case dues.KindForbidden:
		return http.StatusForbidden
	case dues.KindConflict:
		return http.StatusConflict
	case dues.KindValidation:
		return http.StatusBadRequest
	case dues.KindDuesRequired:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps a dues error kind onto its HTTP status; anything else is
// a 500.
func respondError(c *gin.Context, err error) {
	var duesErr *dues.Error
	if errors.As(err, &duesErr) {
		c.JSON(statusForKind(duesErr.Kind), gin.H{"error": duesErr.Message, "kind": duesErr.Kind})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
