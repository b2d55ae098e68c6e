package utils

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tnqbao/gau-job-orchestrator/config"
)

func ExtractToken(c *gin.Context) string {
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token
	}
	authHeader := c.GetHeader("Authorization")
	parts := strings.Fields(authHeader)
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
		return parts[1]
	}
	return ""
}

func ParseToken(tokenString string, cfg *config.EnvConfig) (*jwt.Token, error) {
	secret := []byte(cfg.JWT.SecretKey)
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{cfg.JWT.Algorithm}))
}

// InjectClaimsToContext exposes the caller identity to handlers and logs.
func InjectClaimsToContext(c *gin.Context, claims jwt.MapClaims) error {
	subject, err := claims.GetSubject()
	if err != nil {
		return errors.New("invalid sub claim")
	}
	if subject == "" {
		if userID, ok := claims["user_id"].(string); ok {
			subject = userID
		}
	}
	if subject == "" {
		return errors.New("token has no subject")
	}
	c.Set("subject", subject)
	return nil
}
