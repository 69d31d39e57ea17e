package portal

import "errors"

// Failures while driving the attendance portal. Every error returned by
// Client wraps exactly one of these.
var (
	ErrCredentials     = errors.New("portal credentials missing")
	ErrLogin           = errors.New("portal login failed")
	ErrTimeClock       = errors.New("failed to open time clock system")
	ErrNavigation      = errors.New("time clock navigation failed")
	ErrElementNotFound = errors.New("page element not found")
	ErrSignIn          = errors.New("sign-in failed")
	ErrSignOut         = errors.New("sign-out failed")
	ErrConfirmation    = errors.New("confirmation failed")
)
