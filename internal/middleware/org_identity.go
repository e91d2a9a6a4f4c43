package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"coordination-service/internal/utils"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
)

// OrgLocalKey is the fiber locals key carrying the acting organization's
// MSP id for the current request.
const OrgLocalKey = "org_msp_id"

// OrgClaims is the token payload issued by the network's identity service.
type OrgClaims struct {
	jwt.RegisteredClaims
	Org string `json:"org"`
}

// OrgIdentity resolves the acting organization for every request, either
// from a bearer token's org claim or from the X-Org-ID header when no JWT
// secret is configured (trusted-gateway deployments). The organization is
// an explicit per-request value, never process-wide state, so concurrent
// requests acting for different organizations cannot leak into each other.
func OrgIdentity(jwtSecret string) fiber.Handler {
	return func(c fiber.Ctx) error {
		org, err := resolveOrg(c, jwtSecret)
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(
				utils.CreateErrorResponse("UNAUTHORIZED", err.Error()))
		}

		c.Locals(OrgLocalKey, org)
		return c.Next()
	}
}

// Org returns the organization resolved for this request, or empty when
// the middleware did not run.
func Org(c fiber.Ctx) string {
	if org, ok := c.Locals(OrgLocalKey).(string); ok {
		return org
	}
	return ""
}

func resolveOrg(c fiber.Ctx, jwtSecret string) (string, error) {
	auth := c.Get("Authorization")
	if jwtSecret != "" && strings.HasPrefix(auth, "Bearer ") {
		return orgFromToken(strings.TrimPrefix(auth, "Bearer "), jwtSecret)
	}

	if org := c.Get("X-Org-ID"); org != "" {
		return org, nil
	}

	return "", fmt.Errorf("organization identity is required (bearer token or X-Org-ID header)")
}

func orgFromToken(tokenString, jwtSecret string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&OrgClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		},
	)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*OrgClaims)
	if !ok || !token.Valid || claims.Org == "" {
		return "", fmt.Errorf("token carries no organization claim")
	}

	return claims.Org, nil
}
