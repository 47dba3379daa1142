package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-schedule-api/internal/middleware"
	appErrors "github.com/noah-isme/academy-schedule-api/pkg/errors"
	"github.com/noah-isme/academy-schedule-api/pkg/response"
)

type clock func() time.Time

// staffField tags a log line with the console user behind the request.
func staffField(c *gin.Context) zap.Field {
	if claims := middleware.StaffFromContext(c); claims != nil {
		return zap.String("staff_id", claims.StaffID)
	}
	return zap.Skip()
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return false
	}
	return true
}

func queryBool(c *gin.Context, key string) *bool {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return v
}
