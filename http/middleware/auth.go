package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tnqbao/gau-job-orchestrator/config"
	"github.com/tnqbao/gau-job-orchestrator/utils"
)

// AuthMiddleware requires a valid HMAC-signed bearer token. With no
// JWT_SECRET_KEY configured it lets every request through.
func AuthMiddleware(cfg *config.EnvConfig) gin.HandlerFunc {
	if cfg.JWT.SecretKey == "" {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		tokenStr := utils.ExtractToken(c)
		if tokenStr == "" {
			tokenStr = c.Query("access_token")
		}

		if tokenStr == "" {
			utils.AbortJSON401(c, "Authorization token is required")
			return
		}

		parsedToken, err := utils.ParseToken(tokenStr, cfg)
		if err != nil || !parsedToken.Valid {
			utils.AbortJSON401(c, "Invalid or expired token")
			return
		}

		claims, ok := parsedToken.Claims.(jwt.MapClaims)
		if !ok {
			utils.AbortJSON401(c, "Invalid token claims")
			return
		}
		if err := utils.InjectClaimsToContext(c, claims); err != nil {
			utils.AbortJSON401(c, "Invalid claims")
			return
		}

		c.Next()
	}
}
