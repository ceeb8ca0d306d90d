package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"compliance-tracker/pkg/jwt"
	"compliance-tracker/pkg/response"
)

// 注入 gin.Context 的键
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// knownRoles 外部认证服务签发的角色；其余角色一律拒绝
var knownRoles = map[string]bool{
	jwt.RoleAdmin:   true,
	jwt.RoleManager: true,
	jwt.RoleMember:  true,
}

// JWTAuth 校验外部认证服务签发的 Access Token
// 从 Authorization: Bearer <token> 中提取，成功后注入 user_id 与 role
func JWTAuth(jwtMgr *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Unauthorized(c, "缺少或无效的 Bearer Token")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(token)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			response.Unauthorized(c, "Token 已过期")
			c.Abort()
			return
		case err != nil:
			response.Unauthorized(c, "Token 无效")
			c.Abort()
			return
		}

		if claims.TokenType != "access" || claims.UserID == "" || !knownRoles[claims.Role] {
			response.Unauthorized(c, "Token 声明无效")
			c.Abort()
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RoleAuth 限定可访问的角色（运维操作仅 admin，查询与缺勤维护 admin / manager）
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		role := c.GetString(ctxRole)
		if role == "" {
			response.Unauthorized(c, "未认证")
			c.Abort()
			return
		}
		if !allowed[role] {
			response.Forbidden(c, "当前角色无权执行该操作")
			c.Abort()
			return
		}
		c.Next()
	}
}
