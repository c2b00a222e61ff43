package handlers

import (
	"net/http"
	"strconv"

	"bandroom/dues"

	"github.com/gin-gonic/gin"
)

// GetStanding evaluates dues standing for the caller, or for another member
// when the caller holds treasurer or governor authority.
func GetStanding(c *gin.Context) {
	_, span := Tracer.StartSpan(c.Request.Context(), "GetStanding")
	defer span.End()

	bandID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid band ID"})
		return
	}

	callerUserID := uint(c.GetUint64("callerUserID"))
	targetUserID := callerUserID

	if userIDStr := c.Query("user_id"); userIDStr != "" {
		userID, err := strconv.ParseUint(userIDStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
			return
		}
		targetUserID = uint(userID)
	}

	if targetUserID != callerUserID {
		isTreasurer, err := dues.IsTreasurerEquivalent(c.Request.Context(), uint(bandID), callerUserID)
		if err != nil {
			span.SetError(err.Error(), "")
			respondError(c, err)
			return
		}
		isGovernor, err := dues.IsGovernorEquivalent(c.Request.Context(), uint(bandID), callerUserID)
		if err != nil {
			span.SetError(err.Error(), "")
			respondError(c, err)
			return
		}
		if !isTreasurer && !isGovernor {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only a treasurer, founder or governor can view another member's standing"})
			return
		}
	}

	span.SetAttributes(map[string]interface{}{"band_id": bandID, "user_id": targetUserID})

	standing, err := dues.Evaluate(c.Request.Context(), uint(bandID), targetUserID)
	if err != nil {
		span.SetError(err.Error(), "")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, standing)
}
