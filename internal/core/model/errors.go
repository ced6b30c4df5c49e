package model

import "errors"

// Error taxonomy for the query pipeline. Callers match with errors.Is;
// every failure surfaces as exactly one of these, wrapped with context.
var (
	// ErrRemoteUnavailable covers transport and service failures on the
	// remote endpoint. Never retried internally.
	ErrRemoteUnavailable = errors.New("remote service unavailable")

	// ErrUnknownTable means the table does not appear in the catalog.
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnknownColumn means a requested variable is not a column of the
	// table. Validated before send.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrInvalidRange means min > max on some axis, or a negative
	// tolerance. Rejected at build time.
	ErrInvalidRange = errors.New("invalid range")

	// ErrForbiddenStatement means the read-only guard found a mutating
	// keyword in manual query text. Rejected before send.
	ErrForbiddenStatement = errors.New("forbidden statement")

	// ErrMalformedResponse means the remote payload could not be parsed
	// consistently. The payload is discarded wholesale.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrTimeout means the context deadline expired between submission
	// and result materialization. Safe to retry caller-side: every
	// operation is read-only.
	ErrTimeout = errors.New("query deadline exceeded")
)
