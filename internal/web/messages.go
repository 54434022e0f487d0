package web

// messages.go maps engine errors to user-facing messages with support codes.
//
// # Error Codes Reference
//
// # Grid Errors (GRD001-GRD099)
//
//	GRD001 - Page out of range            (grid.ErrOutOfRange)
//	GRD002 - Row no longer available      (grid.ErrStaleHandle)
//	GRD003 - Invalid row position         (grid.ErrInvalidPosition)
//	GRD004 - Checkboxes not enabled       (grid.ErrCheckboxesNotEnabled)
//	GRD005 - Unknown column               (grid.ErrInvalidColumn)
//	GRD006 - View misconfigured           (grid.ErrSetup)
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Unknown field group          (validate.ErrUnknownGroup)
//	VAL002 - Form misconfigured           (validate.ErrSetup, ErrUnknownRule, ErrDuplicateField)
//	VAL003 - Form has no rules            (errNoForm)
//
// # Template and Schema Errors
//
//	TPL001 - Template not found           (render.ErrTemplateNotFound)
//	SCH001 - Table schema not found       (schema.ErrTableNotFound)
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session expired              (errSessionNotFound)
//	SES002 - Unknown view                 (errViewNotFound)
//	SES003 - Unsupported action           (view.ErrNoHandler)
//	SES004 - Record not found             (errRecordNotFound)
//
// # Request Errors
//
//	DB004  - Connection refused           pattern "connection refused"
//	REQ001 - Request cancelled            context.Canceled
//	REQ002 - Request timed out            context.DeadlineExceeded, pattern "timeout"
//	REQ003 - Malformed request            (errBadRequest)
//	RATE001 - Rate limited                pattern "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Support staff should check the application
// logs for the original technical error when users report ERR000.
//
// Sentinels are matched with errors.Is first, in table order; the string
// patterns are a case-insensitive fallback for errors from outside the
// module (driver and network errors).

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/viewkit/internal/grid"
	"github.com/JonMunkholm/viewkit/internal/render"
	"github.com/JonMunkholm/viewkit/internal/schema"
	"github.com/JonMunkholm/viewkit/internal/validate"
	"github.com/JonMunkholm/viewkit/internal/view"
)

var (
	errSessionNotFound = errors.New("session not found")
	errViewNotFound    = errors.New("view not found")
	errNoForm          = errors.New("view has no form")
	errRateLimited     = errors.New("rate limit exceeded")
	errBadRequest      = errors.New("bad request")
	errRecordNotFound  = errors.New("record not found")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorTarget struct {
	target error
	msg    UserMessage
}

var errorTargets = []errorTarget{
	// Grid usage errors
	{grid.ErrOutOfRange, UserMessage{
		Message: "That page does not exist",
		Action:  "Go back to the first page",
		Code:    "GRD001",
	}},
	{grid.ErrStaleHandle, UserMessage{
		Message: "This row is no longer available",
		Action:  "Refresh the view to load the current rows",
		Code:    "GRD002",
	}},
	{grid.ErrInvalidPosition, UserMessage{
		Message: "Invalid row position",
		Action:  "Refresh the view and try again",
		Code:    "GRD003",
	}},
	{grid.ErrCheckboxesNotEnabled, UserMessage{
		Message: "Row selection is not enabled for this view",
		Action:  "Enable selection before checking rows",
		Code:    "GRD004",
	}},
	{grid.ErrInvalidColumn, UserMessage{
		Message: "Unknown column",
		Action:  "Refresh the view and try again",
		Code:    "GRD005",
	}},
	{grid.ErrSetup, UserMessage{
		Message: "This view is misconfigured",
		Action:  "Contact support with the error code",
		Code:    "GRD006",
	}},

	// Validation errors
	{validate.ErrUnknownGroup, UserMessage{
		Message: "Unknown field group",
		Action:  "Reload the form",
		Code:    "VAL001",
	}},
	{validate.ErrSetup, UserMessage{
		Message: "This form is misconfigured",
		Action:  "Contact support with the error code",
		Code:    "VAL002",
	}},
	{validate.ErrUnknownRule, UserMessage{
		Message: "This form is misconfigured",
		Action:  "Contact support with the error code",
		Code:    "VAL002",
	}},
	{validate.ErrDuplicateField, UserMessage{
		Message: "This form is misconfigured",
		Action:  "Contact support with the error code",
		Code:    "VAL002",
	}},
	{errNoForm, UserMessage{
		Message: "This view has no edit form",
		Action:  "Open the table view instead",
		Code:    "VAL003",
	}},

	// Collaborators
	{render.ErrTemplateNotFound, UserMessage{
		Message: "A display template is missing",
		Action:  "Contact support with the error code",
		Code:    "TPL001",
	}},
	{schema.ErrTableNotFound, UserMessage{
		Message: "Table schema not found",
		Action:  "Verify the table exists in the database",
		Code:    "SCH001",
	}},

	// Sessions
	{errSessionNotFound, UserMessage{
		Message: "Your session has expired",
		Action:  "Reload the page to start a new session",
		Code:    "SES001",
	}},
	{errViewNotFound, UserMessage{
		Message: "Unknown view",
		Action:  "Pick a view from the dashboard",
		Code:    "SES002",
	}},
	{view.ErrNoHandler, UserMessage{
		Message: "Unsupported action",
		Action:  "Reload the page and try again",
		Code:    "SES003",
	}},
	{errRecordNotFound, UserMessage{
		Message: "No record matches that key",
		Action:  "Check the key or open the table view",
		Code:    "SES004",
	}},

	// Requests
	{errBadRequest, UserMessage{
		Message: "The request was malformed",
		Action:  "Reload the page and try again",
		Code:    "REQ003",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Please try again later",
		Code:    "REQ002",
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// The first matching pattern wins, so more specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again later",
			Code:    "REQ002",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, et := range errorTargets {
		if errors.Is(err, et.target) {
			return et.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
