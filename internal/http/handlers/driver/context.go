package driver

import (
	"strconv"

	"github.com/liveshop-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// getDriverID 骑手令牌中的 actor_id 即骑手 ID
func getDriverID(c *gin.Context) (uint, bool) {
	value, ok := c.Get("actor_id")
	if !ok {
		response.Unauthorized(c, "unauthorized")
		c.Abort()
		return 0, false
	}
	driverID, ok := value.(uint)
	if !ok || driverID == 0 {
		response.Unauthorized(c, "unauthorized")
		c.Abort()
		return 0, false
	}
	return driverID, true
}

func parseUintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(value), true
}
