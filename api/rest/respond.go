package rest

import (
	"github.com/bumpspot/server/apperr"
	"github.com/gin-gonic/gin"
)

// respondData writes the success half of the {data, error} result pair.
func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"data": data})
}

// respondErr maps an engine error onto an HTTP status and a short
// user-facing message.
func respondErr(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.UserMessage(err)})
}
