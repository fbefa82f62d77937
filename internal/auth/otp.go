package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reathuta/lms/pkg/utils"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// NormalizeEmail is the canonical form used for code lookup and user identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// OTP issues and verifies six-digit one-time login codes.
type OTP struct {
	store  CodeStore
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewOTP creates a one-time code service.
func NewOTP(store CodeStore, ttl time.Duration, logger *zap.Logger) *OTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OTP{store: store, ttl: ttl, now: time.Now, logger: logger}
}

// TTL is how long an issued code stays valid.
func (o *OTP) TTL() time.Duration { return o.ttl }

// Issue creates a fresh code for email, superseding any earlier one.
func (o *OTP) Issue(ctx context.Context, email string) (code string, expiresAt time.Time, err error) {
	email = NormalizeEmail(email)
	code, err = utils.RandomDigits(codeMin, codeMax)
	if err != nil {
		return "", time.Time{}, err
	}
	hash, err := utils.HashSecret(code)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := o.store.Put(ctx, email, hash, o.ttl); err != nil {
		return "", time.Time{}, err
	}
	o.logger.Info("login code issued", zap.String("email", email))
	return code, o.now().Add(o.ttl), nil
}

// Verify reports whether code is the live code for email. A match consumes it.
func (o *OTP) Verify(ctx context.Context, email, code string) (bool, error) {
	email = NormalizeEmail(email)
	if !wellFormed(code) {
		return false, nil
	}
	hash, err := o.store.Get(ctx, email)
	if errors.Is(err, ErrCodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !utils.CheckSecret(code, hash) {
		o.logger.Info("login code mismatch", zap.String("email", email))
		return false, nil
	}
	return o.store.Consume(ctx, email, hash)
}

func wellFormed(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
