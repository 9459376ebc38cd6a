package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"campusboard/internal/config"
	"campusboard/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func testAuthenticator() *Authenticator {
	return NewAuthenticator(&config.Config{
		JWTSecret:   testSecret,
		JWTIssuer:   "campusboard-api",
		JWTAudience: "campusboard-client",
	})
}

func signToken(t *testing.T, sub string, role string, exp time.Duration, issuer string) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{"campusboard-client"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(exp)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestRequireCaller(t *testing.T) {
	auth := testAuthenticator()
	app := fiber.New()
	app.Get("/test", auth.RequireCaller(), func(c *fiber.Ctx) error {
		caller := CallerFrom(c)
		return c.JSON(fiber.Map{"userID": caller.UserID, "role": caller.Role})
	})

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedUserID uint
		expectedRole   models.Role
	}{
		{
			name:           "Happy Path",
			authHeader:     "Bearer " + signToken(t, "123", "alumni", time.Hour, "campusboard-api"),
			expectedStatus: http.StatusOK,
			expectedUserID: 123,
			expectedRole:   models.RoleAlumni,
		},
		{
			name:           "Unknown role stays authenticated",
			authHeader:     "Bearer " + signToken(t, "7", "janitor", time.Hour, "campusboard-api"),
			expectedStatus: http.StatusOK,
			expectedUserID: 7,
		},
		{"Missing Header", "", http.StatusUnauthorized, 0, ""},
		{"Invalid Format", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, 0, ""},
		{"Malformed Token", "Bearer malformed.token.here", http.StatusUnauthorized, 0, ""},
		{
			name:           "Expired Token",
			authHeader:     "Bearer " + signToken(t, "123", "student", -time.Hour, "campusboard-api"),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Wrong Issuer",
			authHeader:     "Bearer " + signToken(t, "123", "student", time.Hour, "someone-else"),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Non-numeric subject",
			authHeader:     "Bearer " + signToken(t, "abc", "student", time.Hour, "campusboard-api"),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body struct {
					UserID uint        `json:"userID"`
					Role   models.Role `json:"role"`
				}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.expectedUserID, body.UserID)
				assert.Equal(t, tt.expectedRole, body.Role)
			}
		})
	}
}

func TestOptionalCaller(t *testing.T) {
	auth := testAuthenticator()
	app := fiber.New()
	app.Get("/test", auth.OptionalCaller(), func(c *fiber.Ctx) error {
		return c.SendString(strconv.FormatUint(uint64(CallerFrom(c).UserID), 10))
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequireModerator(t *testing.T) {
	auth := testAuthenticator()
	app := fiber.New()
	app.Get("/mod", auth.RequireCaller(), RequireModerator(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	cases := map[string]int{
		"admin":   http.StatusNoContent,
		"faculty": http.StatusNoContent,
		"alumni":  http.StatusForbidden,
		"student": http.StatusForbidden,
	}
	for role, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/mod", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "5", role, time.Hour, "campusboard-api"))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, role)
	}
}
