// Package auth verifies bearer tokens issued by the account service and exposes the
// authenticated requester to handlers. Token issuance lives elsewhere.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// RequesterLocalKey is the Fiber locals key holding the authenticated Requester.
const RequesterLocalKey = "requester"

var (
	ErrMissingSecret = errors.New("jwt secret is not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

// Requester is the caller of a request: who they are and where they connect from.
type Requester struct {
	ID      string
	Name    string
	Role    string
	Address string
}

// Claims is the token payload. The user id travels in "sub".
type Claims struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens against a shared secret.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}, nil
}

// Verify parses raw and returns the requester it identifies. The address is left empty.
func (v *Verifier) Verify(raw string) (Requester, error) {
	var claims Claims
	token, err := v.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return Requester{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	// exp is mandatory
	if !token.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return Requester{}, ErrInvalidToken
	}
	return Requester{ID: claims.Subject, Name: claims.Name, Role: claims.Role}, nil
}

// Identify stores the Requester of a request carrying a valid bearer token and lets
// every request through. Mounted ahead of app-wide middleware such as rate limiting so
// it can key on the user; access is still decided by Middleware on each route.
func (v *Verifier) Identify() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if raw, ok := bearer(c.Get(fiber.HeaderAuthorization)); ok {
			if r, err := v.Verify(raw); err == nil {
				r.Address = c.IP()
				c.Locals(RequesterLocalKey, r)
			}
		}
		return c.Next()
	}
}

// Middleware rejects requests without a valid bearer token and stores the Requester
// in the request locals.
func (v *Verifier) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := FromContext(c); ok {
			// already identified
			return c.Next()
		}
		raw, ok := bearer(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		r, err := v.Verify(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		r.Address = c.IP()
		c.Locals(RequesterLocalKey, r)
		return c.Next()
	}
}

// RequireRole allows only requesters with the given role. It must run after Middleware.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, ok := FromContext(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		if r.Role != role {
			return fiber.NewError(fiber.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}

// FromContext returns the authenticated requester, if any.
func FromContext(c *fiber.Ctx) (Requester, bool) {
	r, ok := c.Locals(RequesterLocalKey).(Requester)
	return r, ok
}

func bearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
