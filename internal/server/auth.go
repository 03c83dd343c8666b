package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// ActorClaims are the token claims that identify a signed-in reader. The
// subject is the user id.
type ActorClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Admin bool   `json:"admin"`
	jwt.RegisteredClaims
}

// JWTAuthenticator resolves HMAC-signed bearer tokens. Requests without an
// Authorization header are anonymous.
func JWTAuthenticator(secret string) Authenticator {
	key := []byte(secret)
	return func(c *fiber.Ctx) (models.Actor, error) {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return nil, nil
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return nil, errors.New("invalid authorization header format")
		}

		claims := &ActorClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			return nil, errors.New("invalid or expired token")
		}

		id, err := strconv.ParseUint(claims.Subject, 10, 32)
		if err != nil || id == 0 {
			return nil, errors.New("invalid user id in token")
		}
		return models.Authenticated{
			ID:    uint(id),
			Name:  claims.Name,
			Email: claims.Email,
			Admin: claims.Admin,
		}, nil
	}
}

// authenticateMiddleware stores the resolved actor for the handlers. A
// presented but unusable credential is refused rather than downgraded to
// anonymous.
func (s *Server) authenticateMiddleware(c *fiber.Ctx) error {
	actor, err := s.authenticate(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{
			Error: err.Error(),
			Code:  codeUnauthorized,
		})
	}
	if actor != nil {
		c.Locals(ActorLocal, actor)
	}
	return c.Next()
}
