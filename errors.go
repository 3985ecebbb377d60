package dealerportal

import (
	"errors"

	"github.com/askgroup/dealerportal/api"
)

var (
	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrPortalNotReady is returned when a Portal was not built by Builder.
	ErrPortalNotReady = errors.New("portal not initialized")
	// ErrEmptyCart is returned by Checkout when there is nothing to order.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNoDealerProfile is returned by Checkout when the buyer has no dealer profile.
	ErrNoDealerProfile = errors.New("no dealer profile for current user")
	// ErrInvalidToken marks a token that could not be decoded into a user.
	ErrInvalidToken = errors.New("invalid session token")
)

// AuthOp names the session operation an AuthError came from.
type AuthOp string

const (
	OpLogin         AuthOp = "login"
	OpRegister      AuthOp = "register"
	OpPasswordReset AuthOp = "password_reset"
)

var defaultAuthMessages = map[AuthOp]string{
	OpLogin:         "Login failed",
	OpRegister:      "Registration failed",
	OpPasswordReset: "Password reset failed",
}

// AuthError is the single human-readable failure returned by Login,
// Register and ResetPassword. Message is the server's detail when there is
// one and a per-operation default otherwise.
type AuthError struct {
	Op      AuthOp
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Err }

func newAuthError(op AuthOp, err error) *AuthError {
	msg := api.Detail(err)
	if msg == "" {
		msg = defaultAuthMessages[op]
	}
	return &AuthError{Op: op, Message: msg, Err: err}
}
