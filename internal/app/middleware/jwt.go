package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"device-management-service/internal/domain/services"
	"device-management-service/internal/error/code"
	"device-management-service/internal/error/response"
)

// ContextKeySubject is the gin context key holding the token subject.
const ContextKeySubject = "subject"

// Authentication requires a valid Bearer token. A missing header and an
// invalid or expired token both yield 401, with distinct messages.
func Authentication(jwtService services.InterfaceJWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Fail(c, code.ErrAuthHeaderMissing, nil)
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			response.FailWithMessage(c, code.ErrTokenInvalid, "Authorization header format must be Bearer {token}", nil)
			c.Abort()
			return
		}

		subject, err := jwtService.ExtractSubject(parts[1])
		if err != nil {
			response.Fail(c, code.ErrTokenInvalid, nil)
			c.Abort()
			return
		}

		c.Set(ContextKeySubject, subject)
		c.Next()
	}
}
