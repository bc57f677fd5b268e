package core

// error_messages.go maps technical errors to user-facing messages with a
// code support staff can look up.
//
// Codes by category:
//
//	DB001-DB099     database constraints and connectivity
//	VAL001-VAL099   record validation (a single record fails)
//	FILE001-FILE099 the uploaded file itself
//	IMP001-IMP099   the import run (cancelled, busy, unknown id)
//	KIND001         unknown record kind
//	RATE001         request throttling
//	ERR000          anything else; check the logs for the original error
//
// Known sentinels are matched with errors.Is first. Otherwise patterns are
// matched case-insensitively with strings.Contains and the first match
// wins, so specific patterns come before general ones.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Database constraint errors
	{"duplicate key", UserMessage{
		Message: "A record with this BBO name already exists",
		Action:  "Remove the duplicate line from your CSV",
		Code:    "DB001",
	}},
	{"unique constraint", UserMessage{
		Message: "This value must be unique but already exists",
		Action:  "Check for duplicate entries in your CSV",
		Code:    "DB002",
	}},
	{"violates unique", UserMessage{
		Message: "A duplicate value was found",
		Action:  "Review your data for duplicate BBO names",
		Code:    "DB002",
	}},
	{"violates foreign key", UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Import members before TDs and the blacklist",
		Code:    "DB003",
	}},
	{"violates check constraint", UserMessage{
		Message: "A value is outside its allowed range",
		Action:  "Check dates and numbers on the reported line",
		Code:    "DB008",
	}},
	{"violates not-null", UserMessage{
		Message: "A required value is missing",
		Action:  "Fill in the empty column on the reported line",
		Code:    "DB009",
	}},

	// Database connectivity
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},

	// Import run errors. Deadline must precede the generic timeout.
	{"context deadline exceeded", UserMessage{
		Message: "The import took too long and was rolled back",
		Action:  "Split the file or raise IMPORT_TIMEOUT",
		Code:    "IMP005",
	}},
	{"context canceled", UserMessage{
		Message: "The import was cancelled and rolled back",
		Action:  "Start a new import when ready",
		Code:    "IMP001",
	}},
	{"too many imports", UserMessage{
		Message: "Too many imports in progress",
		Action:  "Please wait a moment and try again",
		Code:    "IMP002",
	}},
	{"import not found", UserMessage{
		Message: "Import not found",
		Action:  "The import may have finished a while ago; check the history",
		Code:    "IMP003",
	}},
	{"import already exists", UserMessage{
		Message: "An import with this ID is already running",
		Action:  "Use a new import ID",
		Code:    "IMP004",
	}},
	{"invalid import id", UserMessage{
		Message: "The import ID is not a UUID",
		Action:  "Omit the ID or pass a UUID",
		Code:    "IMP006",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Please try again later",
		Code:    "DB006",
	}},

	// Record validation
	{"invalid date range", UserMessage{
		Message: "The end date is before the start date",
		Action:  "Swap or correct the from and to columns",
		Code:    "VAL002",
	}},
	{"invalid date", UserMessage{
		Message: "Invalid date format detected",
		Action:  "Use YYYY-MM-DD or MM/DD/YYYY",
		Code:    "VAL001",
	}},
	{"required field", UserMessage{
		Message: "Required field is empty",
		Action:  "Ensure all required columns have values",
		Code:    "VAL003",
	}},
	{"invalid limit", UserMessage{
		Message: "The history limit is not valid",
		Action:  "Use a number between 1 and 500",
		Code:    "VAL005",
	}},
	{"password longer than", UserMessage{
		Message: "The configured password is too long",
		Action:  "Use at most 72 bytes in the lookup file",
		Code:    "VAL004",
	}},

	// File errors
	{"file too large", UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the file into smaller parts",
		Code:    "FILE001",
	}},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV file to import",
		Code:    "FILE002",
	}},
	{"read chunk", UserMessage{
		Message: "The file could not be read completely",
		Action:  "Check your connection and upload again",
		Code:    "FILE003",
	}},

	{"unknown kind", UserMessage{
		Message: "Unknown import type",
		Action:  "Use one of: members, tds, blacklist",
		Code:    "KIND001",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

// sentinelCodes maps the errors callers can test with errors.Is to the
// code of their pattern entry. Deadline precedes cancel as in the patterns.
var sentinelCodes = []struct {
	err  error
	code string
}{
	{context.DeadlineExceeded, "IMP005"},
	{context.Canceled, "IMP001"},
	{ErrTooManyImports, "IMP002"},
	{ErrImportNotFound, "IMP003"},
	{ErrUnknownKind, "KIND001"},
}

func messageForCode(code string) (UserMessage, bool) {
	for _, ep := range errorPatterns {
		if ep.msg.Code == code {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first matching pattern, or ERR000 if none match.
//
// Example:
//
//	msg := MapError(errors.New("required field \"mBBOLoginName\" is empty"))
//	// msg.Code == "VAL003"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sc := range sentinelCodes {
		if errors.Is(err, sc.err) {
			if msg, ok := messageForCode(sc.code); ok {
				return msg
			}
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

// IsUserFacing reports whether err matches a known pattern rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
