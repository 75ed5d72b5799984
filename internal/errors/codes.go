// Package errors provides structured error handling for shelfsearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 3XX: Backend errors (retriever, encoder, metadata store)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryBackend indicates errors from external retrieval backends.
	CategoryBackend Category = "BACKEND"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Backend errors (300-399). Absorbed inside the engine via weight
	// redistribution; surfaced only as diagnostic flags.
	ErrCodeBackendTimeout     = "ERR_301_BACKEND_TIMEOUT"
	ErrCodeBackendUnavailable = "ERR_302_BACKEND_UNAVAILABLE"
	ErrCodeEncodingFailed     = "ERR_303_ENCODING_FAILED"
	ErrCodeMetadataLookup     = "ERR_304_METADATA_LOOKUP"

	// Validation errors (400-499). Rejected immediately and reported.
	ErrCodeInvalidInput     = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidWeights   = "ERR_402_INVALID_WEIGHTS"
	ErrCodeInvalidJudgments = "ERR_403_INVALID_JUDGMENTS"
	ErrCodeInvalidPage      = "ERR_404_INVALID_PAGE"
	ErrCodeQueryEmpty       = "ERR_405_QUERY_EMPTY"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
	ErrCodeNoResults    = "ERR_503_NO_RESULTS"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '3':
		return CategoryBackend
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Backend failures degrade the search but never abort it.
	if isRecoverableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRecoverableCode checks if an error code is absorbed by degradation.
func isRecoverableCode(code string) bool {
	switch code {
	case ErrCodeBackendTimeout, ErrCodeBackendUnavailable, ErrCodeEncodingFailed:
		return true
	default:
		return false
	}
}
