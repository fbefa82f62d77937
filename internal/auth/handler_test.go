package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reathuta/lms/internal/models"
	"github.com/reathuta/lms/pkg/response"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeSender struct {
	codes map[string]string
	err   error
}

func (f *fakeSender) SendLoginCode(_ context.Context, email, code string, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.codes[email] = code
	return nil
}

func newTestRouter(t *testing.T, sender *fakeSender, expose bool) (*gin.Engine, *JWTService) {
	jwtSvc := NewJWTService("test-secret", 1)
	o := NewOTP(NewMemoryCodeStore(), 10*time.Minute, zaptest.NewLogger(t))
	h := NewHandler(o, jwtSvc, sender, expose, zaptest.NewLogger(t))
	r := gin.New()
	r.POST("/auth/2fa/request", h.RequestCode)
	r.POST("/auth/2fa/verify", h.VerifyCode)
	return r, jwtSvc
}

func postJSON(r http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	var body struct {
		response.Body
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NoError(t, json.Unmarshal(body.Data, into))
}

func TestLoginFlow(t *testing.T) {
	sender := &fakeSender{codes: map[string]string{}}
	r, jwtSvc := newTestRouter(t, sender, false)

	w := postJSON(r, "/auth/2fa/request", gin.H{"email": "Ada@Example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	var issued RequestCodeResponse
	decodeData(t, w, &issued)
	assert.True(t, issued.Sent)
	assert.Empty(t, issued.DevCode, "code is not echoed unless enabled")

	code := sender.codes["ada@example.com"]
	require.Len(t, code, 6)

	w = postJSON(r, "/auth/2fa/verify", gin.H{"email": "ada@example.com", "code": code, "role": "ADMIN"})
	require.Equal(t, http.StatusOK, w.Code)
	var tok TokenResponse
	decodeData(t, w, &tok)
	assert.Equal(t, "ada", tok.User.Name)
	assert.Equal(t, models.RoleAdmin, tok.User.Role)
	assert.True(t, tok.User.Verified)
	assert.Equal(t, models.UserIDForEmail("ada@example.com"), tok.User.ID)

	claims, err := jwtSvc.Validate(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, tok.User, claims.User())

	w = postJSON(r, "/auth/2fa/verify", gin.H{"email": "ada@example.com", "code": code})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "code already consumed")
}

func TestRequestCodeEchoesDevCode(t *testing.T) {
	sender := &fakeSender{codes: map[string]string{}}
	r, _ := newTestRouter(t, sender, true)
	w := postJSON(r, "/auth/2fa/request", gin.H{"email": "a@b.co"})
	require.Equal(t, http.StatusOK, w.Code)
	var issued RequestCodeResponse
	decodeData(t, w, &issued)
	assert.Equal(t, sender.codes["a@b.co"], issued.DevCode)
}

func TestRequestCodeDeliveryFailure(t *testing.T) {
	sender := &fakeSender{codes: map[string]string{}, err: errors.New("redis down")}

	r, _ := newTestRouter(t, sender, false)
	w := postJSON(r, "/auth/2fa/request", gin.H{"email": "a@b.co"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	r, _ = newTestRouter(t, sender, true)
	w = postJSON(r, "/auth/2fa/request", gin.H{"email": "a@b.co"})
	require.Equal(t, http.StatusOK, w.Code)
	var issued RequestCodeResponse
	decodeData(t, w, &issued)
	assert.False(t, issued.Sent)
	assert.Len(t, issued.DevCode, 6)
}

func TestVerifyRejectsBadInput(t *testing.T) {
	r, _ := newTestRouter(t, &fakeSender{codes: map[string]string{}}, false)
	assert.Equal(t, http.StatusBadRequest, postJSON(r, "/auth/2fa/verify", gin.H{"email": "nope", "code": "123456"}).Code)
	assert.Equal(t, http.StatusBadRequest, postJSON(r, "/auth/2fa/verify", gin.H{"email": "a@b.co", "code": "12ab56"}).Code)
	assert.Equal(t, http.StatusBadRequest, postJSON(r, "/auth/2fa/verify", gin.H{"email": "a@b.co", "code": "123456", "role": "ROOT"}).Code)
	assert.Equal(t, http.StatusUnauthorized, postJSON(r, "/auth/2fa/verify", gin.H{"email": "a@b.co", "code": "123456"}).Code)
}

func TestNewVerifiedUserDefaults(t *testing.T) {
	u := NewVerifiedUser(" Grace@Navy.mil ", "  ", "")
	assert.Equal(t, "grace@navy.mil", u.Email)
	assert.Equal(t, "grace", u.Name)
	assert.Equal(t, models.RoleStudent, u.Role)
	assert.Contains(t, u.Avatar, "picsum.photos/seed/")

	u = NewVerifiedUser("grace@navy.mil", "Grace Hopper", models.RoleAdmin)
	assert.Equal(t, "Grace Hopper", u.Name)
	assert.Equal(t, models.RoleAdmin, u.Role)
}
