package cloudsync

import (
	"errors"
	"fmt"
)

var (
	// ErrInitialization matches every *InitializationError.
	ErrInitialization = errors.New("cloudsync: initialization failed")
	// ErrAuthentication matches every *AuthenticationError.
	ErrAuthentication = errors.New("cloudsync: authentication failed")
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("cloudsync: not found")
	// ErrSync matches every *SyncError.
	ErrSync = errors.New("cloudsync: remote operation failed")
)

// InitializationError is returned when the adapter cannot build its
// OAuth2 config or Drive client.
type InitializationError struct {
	Reason string
	Err    error
}

func (e *InitializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("initialize drive sync: %s: %v", e.Reason, e.Err)
	}
	return "initialize drive sync: " + e.Reason
}

func (e *InitializationError) Unwrap() error { return e.Err }

func (e *InitializationError) Is(target error) bool { return target == ErrInitialization }

// AuthenticationError carries the provider's reason for a failed sign-in.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("sign in to google drive: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// NotFoundError is returned by LoadFromDrive when the backup file does not exist.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("backup %q not found in google drive", e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// SyncError wraps a failed remote call.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("drive %s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

func (e *SyncError) Is(target error) bool { return target == ErrSync }
