package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/fusionchat/server/apperr"
)

// fail writes the classified error as the response. Internal causes are
// mapped to a generic message so they never leak to clients.
func fail(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.Message(err)})
}
