// Package fault defines the error taxonomy shared by the decoder, the relay
// transport, the signer and the booking validator.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a categorized failure with enough context to log or render it.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Relay is the relay URL involved, when there is exactly one.
	Relay string

	// EventID identifies the affected event, when known.
	EventID string

	// Kind is the event kind involved, when known.
	Kind int

	// Reasons lists per-relay rejection reasons for PUBLISH_REJECTED.
	Reasons []string

	// Err is the underlying cause.
	Err error
}

// Code categorizes errors.
type Code string

const (
	// CodeMalformedEvent indicates an event is missing a required tag.
	CodeMalformedEvent Code = "MALFORMED_EVENT"

	// CodeConnectionFailure indicates relays could not be reached.
	CodeConnectionFailure Code = "CONNECTION_FAILURE"

	// CodePublishRejected indicates no relay accepted a published event.
	CodePublishRejected Code = "PUBLISH_REJECTED"

	// CodeValidationFailure indicates a booking does not fit its template.
	CodeValidationFailure Code = "VALIDATION_FAILURE"

	// CodeSigningFailure indicates the identity provider could not sign.
	CodeSigningFailure Code = "SIGNING_FAILURE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	switch {
	case e.Relay != "" && e.EventID != "":
		fmt.Fprintf(&b, " (relay=%s, event=%s)", e.Relay, e.EventID)
	case e.Relay != "":
		fmt.Fprintf(&b, " (relay=%s)", e.Relay)
	case e.EventID != "":
		fmt.Fprintf(&b, " (event=%s)", e.EventID)
	}
	if len(e.Reasons) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Reasons, "; "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Malformed creates an error for an event that lacks a required tag.
func Malformed(kind int, eventID, missing string) *Error {
	return &Error{
		Code:    CodeMalformedEvent,
		Message: fmt.Sprintf("kind %d event missing %s", kind, missing),
		EventID: eventID,
		Kind:    kind,
	}
}

// ConnectionFailed creates an error for a relay that could not be opened.
// relay may be empty when the error covers every configured relay.
func ConnectionFailed(relay string, err error) *Error {
	msg := "relay connection failed"
	if relay == "" {
		msg = "no relay could be connected"
	}
	return &Error{
		Code:    CodeConnectionFailure,
		Message: msg,
		Relay:   relay,
		Err:     err,
	}
}

// PublishRejected creates an error carrying every rejection reason.
func PublishRejected(eventID string, reasons []string) *Error {
	return &Error{
		Code:    CodePublishRejected,
		Message: fmt.Sprintf("rejected by %d relay(s)", len(reasons)),
		EventID: eventID,
		Reasons: reasons,
	}
}

// ValidationFailed creates an error for a booking that fails a template check.
func ValidationFailed(eventID, message string) *Error {
	return &Error{
		Code:    CodeValidationFailure,
		Message: message,
		EventID: eventID,
	}
}

// SigningFailed wraps an identity provider failure.
func SigningFailed(kind int, err error) *Error {
	return &Error{
		Code:    CodeSigningFailure,
		Message: fmt.Sprintf("could not sign kind %d event", kind),
		Kind:    kind,
		Err:     err,
	}
}

// IsMalformed returns true if err is a MALFORMED_EVENT error.
func IsMalformed(err error) bool { return hasCode(err, CodeMalformedEvent) }

// IsConnectionFailure returns true if err is a CONNECTION_FAILURE error.
func IsConnectionFailure(err error) bool { return hasCode(err, CodeConnectionFailure) }

// IsPublishRejected returns true if err is a PUBLISH_REJECTED error.
func IsPublishRejected(err error) bool { return hasCode(err, CodePublishRejected) }

// IsValidationFailure returns true if err is a VALIDATION_FAILURE error.
func IsValidationFailure(err error) bool { return hasCode(err, CodeValidationFailure) }

// IsSigningFailure returns true if err is a SIGNING_FAILURE error.
func IsSigningFailure(err error) bool { return hasCode(err, CodeSigningFailure) }

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

func hasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
