package public

import (
	"strconv"

	"github.com/liveshop-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

func parseUintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(value), true
}
