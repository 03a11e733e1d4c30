// Package errors provides the structured error type used across the engine.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Validation errors (malformed search/ingest parameters)
//   - 2XX: NotFound errors (missing text/search/unit/feature)
//   - 3XX: Conflict errors (duplicate ingest, duplicate feature, cached search)
//   - 4XX: Ingest errors (tokenization/segmentation failure)
//   - 5XX: Cancelled errors (cooperative interrupt)
//   - 6XX: Internal errors (invariant violations)
package errors

// Category classifies an error for reporting and dispatch.
type Category string

const (
	CategoryValidation Category = "VALIDATION"
	CategoryNotFound   Category = "NOT_FOUND"
	CategoryConflict   Category = "CONFLICT"
	CategoryIngest     Category = "INGEST"
	CategoryCancelled  Category = "CANCELLED"
	CategoryInternal   Category = "INTERNAL"
)

// Severity defines how urgently an error must be handled.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category, per the error kinds in spec.md §7.
const (
	// Validation errors (100-199)
	ErrCodeInvalidFeatureKind = "ERR_101_INVALID_FEATURE_KIND"
	ErrCodeIncompatibleLang   = "ERR_102_INCOMPATIBLE_LANGUAGE"
	ErrCodeInvalidMaxDistance = "ERR_103_INVALID_MAX_DISTANCE"
	ErrCodeNegativeCount      = "ERR_104_NEGATIVE_COUNT"
	ErrCodeInvalidInput       = "ERR_105_INVALID_INPUT"

	// NotFound errors (200-299)
	ErrCodeTextNotFound    = "ERR_201_TEXT_NOT_FOUND"
	ErrCodeSearchNotFound  = "ERR_202_SEARCH_NOT_FOUND"
	ErrCodeUnitNotFound    = "ERR_203_UNIT_NOT_FOUND"
	ErrCodeFeatureNotFound = "ERR_204_FEATURE_NOT_FOUND"

	// Conflict errors (300-399)
	ErrCodeTextAlreadyIngested = "ERR_301_TEXT_ALREADY_INGESTED"
	ErrCodeDuplicateFeature    = "ERR_302_DUPLICATE_FEATURE"
	ErrCodeSearchExists        = "ERR_303_SEARCH_EXISTS"

	// Ingest errors (400-499)
	ErrCodeTokenizeFailed = "ERR_401_TOKENIZE_FAILED"
	ErrCodeSegmentFailed  = "ERR_402_SEGMENT_FAILED"

	// Cancelled errors (500-599)
	ErrCodeCancelled = "ERR_501_CANCELLED"

	// Internal errors (600-699)
	ErrCodeInternal           = "ERR_601_INTERNAL"
	ErrCodeUndefinedFrequency = "ERR_602_UNDEFINED_FREQUENCY"
	ErrCodeEmptyUnit          = "ERR_603_EMPTY_UNIT"
	ErrCodeNotRegistered      = "ERR_604_NOT_REGISTERED"
)

// categoryFromCode extracts the category from an error code's numeric range.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryValidation
	case '2':
		return CategoryNotFound
	case '3':
		return CategoryConflict
	case '4':
		return CategoryIngest
	case '5':
		return CategoryCancelled
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on category.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryInternal:
		return SeverityFatal
	case CategoryCancelled:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether an error of this code may be retried.
// Only transport-level failures around the store connections are
// retryable; the core matching path has no notion of retry (spec.md §5,
// "Timeouts").
func isRetryableCode(code string) bool {
	return false
}
