package middelware

import (
	"net/http"
	"strings"

	"fieldops-backend/models"
	"fieldops-backend/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextActorKey is where the authenticated principal lands in the gin
// context.
const ContextActorKey = "actor"

// ActorMiddleware extracts the acting principal from a bearer token. Token
// issuing, refresh and account management belong to the identity service;
// this side only needs a verified subject to stamp into audit records.
type ActorMiddleware struct {
	config *models.Config
	logger logger.Logger
}

func NewActorMiddleware(cfg *models.Config, log logger.Logger) *ActorMiddleware {
	return &ActorMiddleware{
		config: cfg,
		logger: log,
	}
}

// RequireActor rejects requests without a valid bearer token and stores the
// token subject under ContextActorKey.
func (m *ActorMiddleware) RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := m.actorFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.APIResponse{
				Status:  "error",
				Code:    http.StatusUnauthorized,
				Message: "Authentication required",
				Error: &models.APIError{
					Type:    "AuthenticationError",
					Details: err.Error(),
				},
			})
			return
		}
		c.Set(ContextActorKey, actor)
		c.Next()
	}
}

func (m *ActorMiddleware) actorFromRequest(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return "", errMissingToken
	}
	tokenStr := strings.TrimPrefix(header, "Bearer ")

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errBadSigningMethod
		}
		return []byte(m.config.JWTSecret), nil
	})
	if err != nil {
		m.logger.Warnf("Token rejected: %v", err)
		return "", errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errInvalidToken
	}

	if username, ok := claims["username"].(string); ok && username != "" {
		return username, nil
	}
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub, nil
	}
	return "", errNoSubject
}

// Actor reads the principal stored by RequireActor. Empty when the request
// was not authenticated.
func Actor(c *gin.Context) string {
	if v, ok := c.Get(ContextActorKey); ok {
		if actor, ok := v.(string); ok {
			return actor
		}
	}
	return ""
}

type middlewareError string

func (e middlewareError) Error() string { return string(e) }

const (
	errMissingToken     = middlewareError("missing bearer token")
	errBadSigningMethod = middlewareError("unexpected token signing method")
	errInvalidToken     = middlewareError("invalid or expired token")
	errNoSubject        = middlewareError("token carries no subject")
)
