package adminapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typely/certify/certificate"
	"github.com/typely/certify/internal/cache"
	"github.com/typely/certify/storage"
	"github.com/typely/certify/storage/model"
)

func newTestApp(t *testing.T) (*fiber.App, *storage.Storage) {
	t.Helper()
	s, err := storage.NewStorage(
		storage.Config{
			Driver:  storage.DriverSQLite,
			DataDir: t.TempDir(),
			UsersHash: storage.Argon2idParams{
				Time:        1,
				MemoryKiB:   1024,
				Parallelism: 1,
				KeyLen:      32,
				SaltLen:     16,
			},
		},
	)
	require.NoError(t, err)
	app := fiber.New()
	backends := s.Backends()
	require.NoError(t, Register(app.Group("/api/v1/admin"), backends, certificate.NewRevoker(backends.Certificates), nil))
	return app, s
}

func do(t *testing.T, app *fiber.App, method, path string, body any, auth ...string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if len(auth) == 2 {
		req.Header.Set(
			fiber.HeaderAuthorization,
			"Basic "+base64.StdEncoding.EncodeToString([]byte(auth[0]+":"+auth[1])),
		)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestBasicCredentials(t *testing.T) {
	u, p, ok := basicCredentials("Basic " + base64.StdEncoding.EncodeToString([]byte("admin:pa:ss")))
	require.True(t, ok)
	assert.Equal(t, "admin", u)
	assert.Equal(t, "pa:ss", p)

	u, _, ok = basicCredentials("basic " + base64.StdEncoding.EncodeToString([]byte("root:x")))
	require.True(t, ok)
	assert.Equal(t, "root", u)

	_, _, ok = basicCredentials("Bearer abc")
	assert.False(t, ok)
	_, _, ok = basicCredentials("Basic !!!")
	assert.False(t, ok)
	_, _, ok = basicCredentials("Basic " + base64.StdEncoding.EncodeToString([]byte("nocolon")))
	assert.False(t, ok)
}

func TestAuthMiddleware(t *testing.T) {
	app, _ := newTestApp(t)

	status, _ := do(t, app, http.MethodGet, "/api/v1/admin/rules", nil)
	require.Equal(t, fiber.StatusOK, status, "admin api is open while no user exists")

	status, _ = do(
		t, app, http.MethodPost, "/api/v1/admin/users", map[string]string{
			"username": "admin",
			"password": "correct horse",
		},
	)
	require.Equal(t, fiber.StatusCreated, status)

	status, _ = do(t, app, http.MethodGet, "/api/v1/admin/rules", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _ = do(t, app, http.MethodGet, "/api/v1/admin/rules", nil, "admin", "wrong password")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _ = do(t, app, http.MethodGet, "/api/v1/admin/rules", nil, "admin", "correct horse")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestUsers_Validation(t *testing.T) {
	app, _ := newTestApp(t)
	status, body := do(
		t, app, http.MethodPost, "/api/v1/admin/users", map[string]string{
			"username": "admin",
			"password": "short",
		},
	)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, string(body), "invalid_request")
}

func TestUsers_Lifecycle(t *testing.T) {
	app, _ := newTestApp(t)
	admin := []string{"admin", "correct horse"}
	for _, u := range []string{"admin", "editor"} {
		status, _ := do(
			t, app, http.MethodPost, "/api/v1/admin/users", map[string]string{
				"username": u,
				"password": "correct horse",
			}, admin...,
		)
		require.Equal(t, fiber.StatusCreated, status, u)
	}

	status, _ := do(
		t, app, http.MethodPost, "/api/v1/admin/users", map[string]string{
			"username": "Editor",
			"password": "another password",
		}, admin...,
	)
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = do(t, app, http.MethodDelete, "/api/v1/admin/users/admin", nil, admin...)
	assert.Equal(t, fiber.StatusConflict, status)
	status, _ = do(
		t, app, http.MethodPut, "/api/v1/admin/users/admin", map[string]bool{"disabled": true}, admin...,
	)
	assert.Equal(t, fiber.StatusConflict, status)

	status, body := do(
		t, app, http.MethodPut, "/api/v1/admin/users/editor", map[string]bool{"disabled": true}, admin...,
	)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body), `"disabled":true`)
	status, _ = do(t, app, http.MethodGet, "/api/v1/admin/rules", nil, "editor", "correct horse")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = do(t, app, http.MethodDelete, "/api/v1/admin/users/editor", nil, admin...)
	assert.Equal(t, fiber.StatusNoContent, status)
	status, _ = do(t, app, http.MethodGet, "/api/v1/admin/users/editor", nil, admin...)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestRules(t *testing.T) {
	app, _ := newTestApp(t)

	status, _ := do(t, app, http.MethodGet, "/api/v1/admin/rules/active", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body := do(
		t, app, http.MethodPost, "/api/v1/admin/rules", map[string]any{
			"min_wpm":      45,
			"min_accuracy": 90,
			"test_type":    "marathon",
		},
	)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, string(body), "test_type must be one of")

	status, _ = do(
		t, app, http.MethodPost, "/api/v1/admin/rules", map[string]any{
			"min_wpm":      45,
			"min_accuracy": 101,
			"test_type":    "timed",
		},
	)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = do(
		t, app, http.MethodPost, "/api/v1/admin/rules", map[string]any{
			"min_wpm":      45,
			"min_accuracy": 90,
			"test_type":    " Timed ",
		},
	)
	require.Equal(t, fiber.StatusCreated, status)
	var rule model.CertificateRule
	require.NoError(t, json.Unmarshal(body, &rule))
	assert.Equal(t, model.TestTypeTimed, rule.TestType)
	assert.True(t, rule.Enabled)

	status, body = do(t, app, http.MethodGet, "/api/v1/admin/rules/active", nil)
	require.Equal(t, fiber.StatusOK, status)
	var active model.CertificateRule
	require.NoError(t, json.Unmarshal(body, &active))
	assert.Equal(t, rule.ID, active.ID)

	status, _ = do(t, app, http.MethodDelete, "/api/v1/admin/rules/999", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestTemplates(t *testing.T) {
	app, _ := newTestApp(t)

	status, _ := do(
		t, app, http.MethodPost, "/api/v1/admin/templates", map[string]any{
			"title":     "Typing Certificate",
			"is_active": true,
		},
	)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body := do(
		t, app, http.MethodPost, "/api/v1/admin/templates", map[string]any{
			"title":                "Typing Certificate",
			"is_active":            true,
			"background_image_url": "https://cdn.example.com/bg.png",
			"show_wpm":             false,
		},
	)
	require.Equal(t, fiber.StatusCreated, status)
	var tmpl model.CertificateTemplate
	require.NoError(t, json.Unmarshal(body, &tmpl))
	assert.Equal(t, 1, tmpl.Version)
	assert.False(t, tmpl.ShowWPM)
	assert.True(t, tmpl.ShowAccuracy)

	status, body = do(
		t, app, http.MethodPut, "/api/v1/admin/templates/"+strconv.FormatUint(uint64(tmpl.ID), 10), map[string]any{
			"title":                "Typing Certificate v2",
			"is_active":            true,
			"background_image_url": "https://cdn.example.com/bg2.png",
		},
	)
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &tmpl))
	assert.Equal(t, 2, tmpl.Version)

	status, _ = do(t, app, http.MethodGet, "/api/v1/admin/templates/active", nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestCertificateRevocation(t *testing.T) {
	app, s := newTestApp(t)
	ctx := context.Background()
	code := "TYP-20260101-AB12"
	res := s.CertificatesStorage().Insert(
		ctx, model.Certificate{
			Code:      code,
			UserID:    "user-1",
			AttemptID: "attempt-1",
			WPM:       50,
			Accuracy:  95,
			TestType:  model.TestTypeTimed,
			IssuedAt:  time.Now().UTC(),
		},
	)
	require.Equal(t, model.InsertInserted, res.Status)

	cacheKey := cache.VerificationKey(code)
	require.NoError(t, cache.Set(cacheKey, "cached", time.Minute))

	path := "/api/v1/admin/certificates/" + code + "/revocation"

	status, _ := do(t, app, http.MethodPut, path, map[string]any{"revoked": true})
	assert.Equal(t, fiber.StatusBadRequest, status, "reason is required")
	status, _ = do(t, app, http.MethodPut, path, map[string]any{"reason": "x"})
	assert.Equal(t, fiber.StatusBadRequest, status, "revoked is required")

	status, body := do(t, app, http.MethodPut, path, map[string]any{"revoked": true, "reason": "cheating"})
	require.Equal(t, fiber.StatusOK, status)
	var cert model.Certificate
	require.NoError(t, json.Unmarshal(body, &cert))
	assert.True(t, cert.IsRevoked)
	require.NotNil(t, cert.RevokedReason)
	assert.Equal(t, "cheating", *cert.RevokedReason)

	var cached string
	found, err := cache.Get(cacheKey, &cached)
	require.NoError(t, err)
	assert.False(t, found, "revocation invalidates the cached verification")

	status, body = do(t, app, http.MethodPut, path, map[string]any{"revoked": false})
	require.Equal(t, fiber.StatusOK, status)
	cert = model.Certificate{}
	require.NoError(t, json.Unmarshal(body, &cert))
	assert.False(t, cert.IsRevoked)
	assert.Nil(t, cert.RevokedAt)

	status, _ = do(
		t, app, http.MethodPut, "/api/v1/admin/certificates/TYP-20260101-ZZZZ/revocation",
		map[string]any{"revoked": true, "reason": "x"},
	)
	assert.Equal(t, fiber.StatusNotFound, status)
	status, _ = do(
		t, app, http.MethodPut, "/api/v1/admin/certificates/TYP-12345-ABCD/revocation",
		map[string]any{"revoked": true, "reason": "x"},
	)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = do(t, app, http.MethodGet, "/api/v1/admin/certificates?limit=10", nil)
	require.Equal(t, fiber.StatusOK, status)
	var list []model.Certificate
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 1)

	status, _ = do(t, app, http.MethodGet, "/api/v1/admin/certificates?limit=abc", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, _ = do(t, app, http.MethodGet, "/api/v1/admin/certificates/TYP-20260101-ZZZZ", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestSettings(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := do(t, app, http.MethodGet, "/api/v1/admin/settings", nil)
	require.Equal(t, fiber.StatusOK, status)
	var s settings
	require.NoError(t, json.Unmarshal(body, &s))
	assert.True(t, s.IssuanceEnabled)
	assert.Empty(t, s.LogoURL)

	status, _ = do(t, app, http.MethodPut, "/api/v1/admin/settings", map[string]any{"logo_url": "not a url"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = do(
		t, app, http.MethodPut, "/api/v1/admin/settings", map[string]any{
			"issuance_enabled": false,
			"logo_url":         "https://cdn.example.com/logo.png",
		},
	)
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &s))
	assert.False(t, s.IssuanceEnabled)
	assert.Equal(t, "https://cdn.example.com/logo.png", s.LogoURL)

	status, body = do(t, app, http.MethodPut, "/api/v1/admin/settings", map[string]any{"logo_url": ""})
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &s))
	assert.Empty(t, s.LogoURL)
	assert.False(t, s.IssuanceEnabled)
}
