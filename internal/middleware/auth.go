// Package middleware gin 中间件
package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/marville001/eduaiapp/internal/config"
)

// AuthMiddleware 认证中间件
// 携带有效 JWT 时解析出用户；否则按匿名用户处理，不阻断请求
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			if userID, role, err := parseToken(tokenStr, cfg.Auth.JWTSecret); err == nil {
				c.Set("user_id", userID)
				c.Set("role", role)
				c.Next()
				return
			}
			// Token 无效，继续尝试其他方式
		}

		// 从 Header 获取用户ID（兼容内部调用）
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	}
}

// RequireAuth 要求已认证用户
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserID(c) == "" {
			c.JSON(401, gin.H{"code": 401, "msg": "authentication required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin 要求管理员角色
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != "admin" {
			c.JSON(403, gin.H{"code": 403, "msg": "admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserID 从上下文获取当前用户ID，匿名用户为空串
func GetUserID(c *gin.Context) string {
	if id, exists := c.Get("user_id"); exists {
		if userID, ok := id.(string); ok {
			return userID
		}
	}
	return ""
}

// GetRole 从上下文获取当前用户角色
func GetRole(c *gin.Context) string {
	if r, exists := c.Get("role"); exists {
		if role, ok := r.(string); ok {
			return role
		}
	}
	return ""
}

func parseToken(tokenStr, secret string) (userID, role string, err error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", "", fmt.Errorf("token missing subject")
	}
	r, _ := claims["role"].(string)
	return sub, r, nil
}
