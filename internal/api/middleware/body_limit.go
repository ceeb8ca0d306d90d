package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"compliance-tracker/pkg/response"
)

// BodyLimit 限制 ICS 上传等请求体大小
// 声明的 Content-Length 已超限时直接返回 413；
// 未声明长度（分块上传）时由 MaxBytesReader 在读取时截断，Handler 将 *http.MaxBytesError 映射为 413
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.TooLarge(c)
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
