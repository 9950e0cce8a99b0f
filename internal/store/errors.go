package store

import "errors"

// Remote failures fall into two classes. Infrastructure failures
// (network loss, revoked access, exhausted quota) mean the backend
// cannot be used right now and the session should fall back to local
// operation. Caller mistakes (bad credentials, invalid input) are
// surfaced unchanged and never change the operating mode.
var (
	// ErrUnavailable reports that the remote backend cannot be
	// reached or answered with a transport-level failure.
	ErrUnavailable = errors.New("remote store unavailable")

	// ErrPermissionDenied reports that the backend refused the
	// operation for the signed-in identity.
	ErrPermissionDenied = errors.New("remote store permission denied")

	// ErrQuota reports that the backend rejected the write for
	// capacity reasons.
	ErrQuota = errors.New("remote store quota exceeded")

	// ErrInvalidCredentials reports a failed sign-in or sign-up.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotFound reports that the addressed entity does not exist
	// in the consulted store.
	ErrNotFound = errors.New("not found")
)

// Demotes reports whether err is an infrastructure failure that should
// switch the session to offline operation.
func Demotes(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrQuota)
}
