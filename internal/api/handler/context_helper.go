package handler

import (
	"github.com/gin-gonic/gin"

	"compliance-tracker/internal/model"
	"compliance-tracker/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, "未认证")
		return "", false
	}
	return s, true
}

// queryDate 解析可选的 YYYY-MM-DD 查询参数；缺省时取 today
// 格式错误时写入 400 响应并返回 false
func queryDate(c *gin.Context, key string, today model.Date) (model.Date, bool) {
	raw := c.Query(key)
	if raw == "" {
		return today, true
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		response.BadRequest(c, response.CodeBadRequest, key+" 格式无效，应为 YYYY-MM-DD")
		return model.Date{}, false
	}
	return d, true
}
