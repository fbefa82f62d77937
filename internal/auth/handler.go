package auth

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reathuta/lms/internal/models"
	"github.com/reathuta/lms/pkg/response"
)

// ContextClaims is the gin context key under which the JWT middleware stores *Claims.
const ContextClaims = "claims"

// CodeSender delivers a one-time code to its owner.
type CodeSender interface {
	SendLoginCode(ctx context.Context, email, code string, ttl time.Duration) error
}

// RequestCodeRequest is the body for POST /auth/2fa/request.
type RequestCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// RequestCodeResponse reports issuance. DevCode is only set while code echo is enabled.
type RequestCodeResponse struct {
	Sent      bool      `json:"sent"`
	ExpiresAt time.Time `json:"expires_at"`
	DevCode   string    `json:"dev_code,omitempty"`
}

// VerifyCodeRequest is the body for POST /auth/2fa/verify.
type VerifyCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
	Name  string `json:"name" binding:"omitempty,max=120"`
	Role  string `json:"role" binding:"omitempty,oneof=STUDENT ADMIN"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	otp        *OTP
	jwt        *JWTService
	sender     CodeSender
	exposeCode bool
	logger     *zap.Logger
}

// NewHandler creates an auth handler. With exposeCode set, issued codes are
// echoed back to the requester.
func NewHandler(otp *OTP, jwt *JWTService, sender CodeSender, exposeCode bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{otp: otp, jwt: jwt, sender: sender, exposeCode: exposeCode, logger: logger}
}

// RequestCode handles POST /auth/2fa/request.
func (h *Handler) RequestCode(c *gin.Context) {
	var req RequestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	email := NormalizeEmail(req.Email)
	code, expiresAt, err := h.otp.Issue(c.Request.Context(), email)
	if err != nil {
		h.logger.Error("issue login code failed", zap.Error(err))
		response.Internal(c, "failed to issue code")
		return
	}

	resp := RequestCodeResponse{Sent: true, ExpiresAt: expiresAt}
	if err := h.sender.SendLoginCode(c.Request.Context(), email, code, h.otp.TTL()); err != nil {
		h.logger.Error("send login code failed", zap.Error(err), zap.String("email", email))
		if !h.exposeCode {
			response.ServiceUnavailable(c, "failed to send code")
			return
		}
		resp.Sent = false
	}
	if h.exposeCode {
		resp.DevCode = code
	}
	response.OK(c, resp)
}

// VerifyCode handles POST /auth/2fa/verify and returns a token for the verified user.
func (h *Handler) VerifyCode(c *gin.Context) {
	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	email := NormalizeEmail(req.Email)
	ok, err := h.otp.Verify(c.Request.Context(), email, req.Code)
	if err != nil {
		h.logger.Error("verify login code failed", zap.Error(err))
		response.Internal(c, "failed to verify code")
		return
	}
	if !ok {
		response.Unauthorized(c, "invalid or expired code")
		return
	}

	user := NewVerifiedUser(email, req.Name, models.Role(req.Role))
	token, err := h.jwt.Generate(user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	h.logger.Info("user verified", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))
	response.OK(c, TokenResponse{Token: token, User: user})
}

// Me handles GET /me.
func (h *Handler) Me(c *gin.Context) {
	claims := c.MustGet(ContextClaims).(*Claims)
	response.OK(c, claims.User())
}

// NewVerifiedUser builds the user record for a freshly verified email. The name
// falls back to the email's local part and the role to STUDENT.
func NewVerifiedUser(email, name string, role models.Role) models.User {
	email = NormalizeEmail(email)
	local := email
	if i := strings.IndexByte(email, '@'); i > 0 {
		local = email[:i]
	}
	if name = strings.TrimSpace(name); name == "" {
		name = local
	}
	if !role.Valid() {
		role = models.RoleStudent
	}
	return models.User{
		ID:       models.UserIDForEmail(email),
		Name:     name,
		Email:    email,
		Role:     role,
		Avatar:   "https://picsum.photos/seed/" + url.PathEscape(email) + "/100/100",
		Verified: true,
	}
}
