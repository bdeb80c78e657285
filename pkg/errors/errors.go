// Package errors defines the closed error taxonomy used throughout the client.
//
// Every failure belongs to a Kind. Kinds form a hierarchy, so a LoginError
// matches both KindLogin and the broader KindAuthorisation and
// KindCommunication when tested with errors.Is. Concrete error structs carry
// context (resource ids, HTTP status codes, server messages) and can be
// recovered with errors.As.
package errors

import (
	"fmt"
)

// Kind identifies a class of failure. Kinds are comparable sentinels: use
// errors.Is(err, KindNotFound) to test classification without inspecting
// message text. A Kind unwraps to its parent Kind, so matching against a
// broader class also succeeds.
type Kind struct {
	name   string
	parent *Kind
}

func (k *Kind) Error() string { return k.name }

// Unwrap returns the parent Kind, or nil at the root of a hierarchy.
func (k *Kind) Unwrap() error {
	if k.parent == nil {
		return nil
	}
	return k.parent
}

var (
	// KindCommunication covers every failed exchange with the server:
	// transport errors, unexpected status codes, and malformed bodies.
	KindCommunication = &Kind{name: "communication error"}

	// KindAuthorisation covers failures to establish or use credentials.
	KindAuthorisation = &Kind{name: "authorisation error", parent: KindCommunication}

	// KindLogin indicates the OAuth token exchange failed.
	KindLogin = &Kind{name: "login error", parent: KindAuthorisation}

	// KindNotLoggedIn indicates an authenticated-only operation was
	// attempted on an anonymous session.
	KindNotLoggedIn = &Kind{name: "not logged in", parent: KindAuthorisation}

	// KindNotFound maps HTTP 404.
	KindNotFound = &Kind{name: "not found", parent: KindCommunication}

	// KindUnauthorised maps HTTP 403.
	KindUnauthorised = &Kind{name: "unauthorised", parent: KindCommunication}

	// KindInvalidInteraction covers semantic misuse detected locally or
	// reported by the platform at the application level. Not a
	// communication failure.
	KindInvalidInteraction = &Kind{name: "invalid interaction"}

	// KindEditing indicates a submission could not be edited.
	KindEditing = &Kind{name: "editing error", parent: KindInvalidInteraction}

	// KindPosting indicates a malformed or rejected post attempt.
	KindPosting = &Kind{name: "posting error", parent: KindInvalidInteraction}

	// KindModeration indicates an invalid moderation action.
	KindModeration = &Kind{name: "moderation error", parent: KindInvalidInteraction}

	// KindBan indicates an invalid ban attempt.
	KindBan = &Kind{name: "ban error", parent: KindModeration}

	// KindBanDuration indicates a ban length outside [0, 999] days.
	KindBanDuration = &Kind{name: "ban duration error", parent: KindBan}

	// KindFileOperation indicates a local file could not be read or written.
	KindFileOperation = &Kind{name: "file operation error"}

	// KindArgument marks programmer errors caught before any network call:
	// unknown HTTP methods, out-of-range limits, unrecognised sorts.
	KindArgument = &Kind{name: "invalid argument"}
)

// chain builds the multi-unwrap slice linking an error to its Kind and,
// when present, its underlying cause.
func chain(kind *Kind, cause error) []error {
	if cause != nil {
		return []error{kind, cause}
	}
	return []error{kind}
}

// NotFoundError indicates the server responded with HTTP 404.
type NotFoundError struct {
	// Resource describes what was being fetched, e.g. "post abc123".
	Resource string
	// Err is the underlying error, if this wraps a lower-level failure.
	Err error
}

func (e *NotFoundError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("not found: %s", e.Resource)
	}
	return "server responded with HTTP 404 (not found)"
}

func (e *NotFoundError) Unwrap() []error { return chain(KindNotFound, e.Err) }

// UnauthorisedError indicates the server responded with HTTP 403.
type UnauthorisedError struct {
	// Resource describes what access was refused, e.g. "r/golang".
	Resource string
	Err      error
}

func (e *UnauthorisedError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("unauthorised: %s", e.Resource)
	}
	return "server responded with HTTP 403 (unauthorised)"
}

func (e *UnauthorisedError) Unwrap() []error { return chain(KindUnauthorised, e.Err) }

// StatusError indicates a non-200 response outside the specifically mapped
// codes, or a structurally malformed success body.
type StatusError struct {
	// StatusCode is the HTTP status code, 0 when the failure happened
	// before a status was received.
	StatusCode int
	Message    string
	Err        error
}

func (e *StatusError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("server responded with error code %d: %s", e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("server responded with error code %d", e.StatusCode)
	case e.Message != "":
		return "communication error: " + e.Message
	case e.Err != nil:
		return "communication error: " + e.Err.Error()
	}
	return "communication error"
}

func (e *StatusError) Unwrap() []error { return chain(KindCommunication, e.Err) }

// LoginError indicates the OAuth password-grant exchange failed.
type LoginError struct {
	// StatusCode is the HTTP status of the token endpoint response.
	StatusCode int
	// Message is the server-reported error, e.g. "invalid_grant".
	Message string
	Err     error
}

func (e *LoginError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("login failed (status %d): %s", e.StatusCode, msg)
	}
	return "login failed: " + msg
}

func (e *LoginError) Unwrap() []error { return chain(KindLogin, e.Err) }

// NotLoggedInError indicates an operation that requires credentials was
// invoked on an anonymous session.
type NotLoggedInError struct {
	// Action names the attempted operation, e.g. "reply".
	Action string
}

func (e *NotLoggedInError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("you must be logged in to %s", e.Action)
	}
	return "not logged in"
}

func (e *NotLoggedInError) Unwrap() []error { return chain(KindNotLoggedIn, nil) }

// EditingError indicates a submission could not be edited, either because
// the content kind does not support editing (platform code 500) or because
// the caller is not the author (platform code 403).
type EditingError struct {
	Message string
}

func (e *EditingError) Error() string { return "editing error: " + e.Message }

func (e *EditingError) Unwrap() []error { return chain(KindEditing, nil) }

// PostingError indicates a post submission was rejected, locally (bad event
// window) or by the platform.
type PostingError struct {
	Message string
	// Description is the platform's longer explanation, when reported.
	Description string
}

func (e *PostingError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("posting error: %q - %q", e.Message, e.Description)
	}
	return "posting error: " + e.Message
}

func (e *PostingError) Unwrap() []error { return chain(KindPosting, nil) }

// BanDurationError indicates a ban length outside the permitted range.
// A 0-day ban is permanent; the maximum is 999 days.
type BanDurationError struct {
	Days int
}

func (e *BanDurationError) Error() string {
	return fmt.Sprintf("a user can only be banned for 0 (permanent) to 999 days, not %d", e.Days)
}

func (e *BanDurationError) Unwrap() []error { return chain(KindBanDuration, nil) }

// FileOperationError indicates a local media path could not be opened.
type FileOperationError struct {
	Path string
	Err  error
}

func (e *FileOperationError) Error() string {
	return fmt.Sprintf("file operation failed for %q: %v", e.Path, e.Err)
}

func (e *FileOperationError) Unwrap() []error { return chain(KindFileOperation, e.Err) }

// ArgumentError is a programmer error caught before any network call.
type ArgumentError struct {
	// Name is the offending parameter.
	Name    string
	Message string
}

func (e *ArgumentError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("invalid argument %s: %s", e.Name, e.Message)
	}
	return "invalid argument: " + e.Message
}

func (e *ArgumentError) Unwrap() []error { return chain(KindArgument, nil) }
