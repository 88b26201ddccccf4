package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a uniqueness conflict.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrInvalidCredentials indicates login failure. Unknown email, wrong
	// password and inactive accounts all collapse into this error.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMFARequired indicates the account has a second factor enrolled and
	// no code was supplied. Distinguished from ErrInvalidCredentials so
	// clients can re-prompt without re-asking for the password.
	ErrMFARequired = errors.New("mfa code required")
	// ErrInvalidMFACode indicates the supplied TOTP code did not verify.
	ErrInvalidMFACode = errors.New("invalid mfa code")
	// ErrInvalidToken covers malformed, expired and revoked tokens uniformly.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrSetupSessionExpired indicates the staged MFA secret is gone.
	ErrSetupSessionExpired = errors.New("mfa setup session expired")
	// ErrForbidden indicates an authenticated caller without the required
	// permission.
	ErrForbidden = errors.New("insufficient permissions")
)

// PermissionError carries the permission that was required, for operator
// diagnostics.
type PermissionError struct {
	Required string
}

func (e *PermissionError) Error() string {
	return "insufficient permissions: required " + e.Required
}

// Unwrap lets errors.Is match ErrForbidden.
func (e *PermissionError) Unwrap() error {
	return ErrForbidden
}
