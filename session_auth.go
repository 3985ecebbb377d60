package dealerportal

import (
	"context"
	"fmt"
	"time"

	"github.com/askgroup/dealerportal/api"
	"github.com/askgroup/dealerportal/storage"
)

// Login exchanges credentials for a bearer token, decodes the user from it
// and persists both. On success every later request carries the bearer.
// Failures are returned as *AuthError and are never retried.
func (s *SessionStore) Login(ctx context.Context, email, password string) (*User, error) {
	if s == nil || s.api == nil {
		return nil, ErrPortalNotReady
	}
	s.beginLoading()
	defer s.endLoading()

	u, err := s.login(ctx, email, password)
	if err != nil {
		s.metrics.Inc(MetricLoginFailure)
		emitAudit(ctx, s.audit, AuditLogin, &User{Email: email}, err, nil)
		return nil, err
	}
	s.metrics.Inc(MetricLoginSuccess)
	emitAudit(ctx, s.audit, AuditLogin, u, nil, nil)
	return u, nil
}

func (s *SessionStore) login(ctx context.Context, email, password string) (*User, error) {
	start := time.Now()
	resp, err := s.api.Login(ctx, api.LoginRequest{Email: email, Password: password})
	s.metrics.Observe(MetricLoginLatency, time.Since(start))
	if err != nil {
		return nil, newAuthError(OpLogin, err)
	}

	claims, err := s.decoder.Decode(resp.AccessToken)
	if err != nil {
		return nil, newAuthError(OpLogin, fmt.Errorf("%w: %v", ErrInvalidToken, err))
	}
	u := userFromClaims(claims)

	if err := s.persist(ctx, resp.AccessToken, u); err != nil {
		// A half-written pair may already have replaced the previous
		// session on disk, so memory follows storage back to empty.
		s.drop()
		s.clearStorage(ctx)
		return nil, newAuthError(OpLogin, err)
	}

	s.settle(StateAuthenticated, resp.AccessToken, u)
	out := *u
	return &out, nil
}

func (s *SessionStore) persist(ctx context.Context, token string, u *User) error {
	if err := s.storage.Set(ctx, storage.TokenKey, token); err != nil {
		return err
	}
	return s.persistUser(ctx, u)
}

// Register creates the account and then logs in with the same
// credentials. There is no pending-activation state.
func (s *SessionStore) Register(ctx context.Context, req api.RegisterRequest) (*User, error) {
	if s == nil || s.api == nil {
		return nil, ErrPortalNotReady
	}
	s.beginLoading()
	defer s.endLoading()

	u, err := s.register(ctx, req)
	if err != nil {
		s.metrics.Inc(MetricRegisterFailure)
		emitAudit(ctx, s.audit, AuditRegister, &User{Email: req.Email, Role: req.Role}, err, nil)
		return nil, newAuthError(OpRegister, err)
	}
	s.metrics.Inc(MetricRegisterSuccess)
	emitAudit(ctx, s.audit, AuditRegister, u, nil, nil)
	return u, nil
}

func (s *SessionStore) register(ctx context.Context, req api.RegisterRequest) (*User, error) {
	if _, err := s.api.Register(ctx, req); err != nil {
		return nil, err
	}
	return s.Login(ctx, req.Email, req.Password)
}

// ResetPassword asks the API to replace the password. The session is left
// untouched; the user signs in again afterwards.
func (s *SessionStore) ResetPassword(ctx context.Context, email, newPassword, confirmNewPassword string) error {
	if s == nil || s.api == nil {
		return ErrPortalNotReady
	}
	s.beginLoading()
	defer s.endLoading()

	err := s.api.ResetPassword(ctx, api.PasswordResetRequest{
		Email:              email,
		NewPassword:        newPassword,
		ConfirmNewPassword: confirmNewPassword,
	})
	if err != nil {
		s.metrics.Inc(MetricPasswordResetFailure)
		emitAudit(ctx, s.audit, AuditPasswordReset, &User{Email: email}, err, nil)
		return newAuthError(OpPasswordReset, err)
	}
	s.metrics.Inc(MetricPasswordResetSuccess)
	emitAudit(ctx, s.audit, AuditPasswordReset, &User{Email: email}, nil, nil)
	return nil
}
