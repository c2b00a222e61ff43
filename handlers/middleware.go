package handlers

import (
	"net/http"
	"strconv"

	"bandroom/database"
	"bandroom/dues"
	"bandroom/models"

	"github.com/gin-gonic/gin"
)

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		callerUserIDStr := c.Query("caller_user_id")

		callerUserID, err := strconv.ParseUint(callerUserIDStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid caller user ID"})
			c.Abort()
			return
		}

		var callerUser models.User
		if err := database.DB.First(&callerUser, callerUserID).Error; err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized: Caller user not found"})
			c.Abort()
			return
		}

		c.Set("callerUserID", callerUserID)

		c.Next()
	}
}

// RequireGoodStanding blocks the request unless the caller is in good dues
// standing with the band named by the given path parameter. The failure
// carries the evaluator's reason.
func RequireGoodStanding(bandParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		bandID, err := strconv.ParseUint(c.Param(bandParam), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid band ID"})
			c.Abort()
			return
		}

		callerUserID := c.GetUint64("callerUserID")
		if err := dues.RequireGoodStanding(c.Request.Context(), uint(bandID), uint(callerUserID)); err != nil {
			respondError(c, err)
			c.Abort()
			return
		}

		c.Next()
	}
}
