// Package errors provides structured error handling for convorag.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Index and storage errors
//   - 3XX: Embedding provider errors
//   - 4XX: Ingestion and validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryStorage    Category = "STORAGE"
	CategoryEmbedding  Category = "EMBEDDING"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal means the operation cannot continue.
	SeverityFatal Severity = "FATAL"
	// SeverityError means the operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning means the operation continued with less context.
	SeverityWarning Severity = "WARNING"
)

const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Index and storage errors (200-299)
	ErrCodeCorruptIndex    = "ERR_201_CORRUPT_INDEX"
	ErrCodeParityViolation = "ERR_202_PARITY_VIOLATION"
	ErrCodePersistFailed   = "ERR_203_PERSIST_FAILED"
	ErrCodeLockFailed      = "ERR_204_LOCK_FAILED"
	ErrCodeMessageStore    = "ERR_205_MESSAGE_STORE"

	// Embedding errors (300-399)
	ErrCodeEmbeddingFailed     = "ERR_301_EMBEDDING_FAILED"
	ErrCodeProviderUnavailable = "ERR_302_PROVIDER_UNAVAILABLE"
	ErrCodeProviderTimeout     = "ERR_303_PROVIDER_TIMEOUT"
	ErrCodeDimensionMismatch   = "ERR_304_DIMENSION_MISMATCH"

	// Ingestion and validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidID         = "ERR_402_INVALID_ID"
	ErrCodeUnsupportedFormat = "ERR_403_UNSUPPORTED_FORMAT"
	ErrCodeNoTextExtracted   = "ERR_404_NO_TEXT_EXTRACTED"
	ErrCodeFileNotFound      = "ERR_405_FILE_NOT_FOUND"
	ErrCodeLengthMismatch    = "ERR_406_LENGTH_MISMATCH"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from the numeric part of the code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryEmbedding
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

func severityFromCode(code string) Severity {
	switch code {
	case ErrCodePersistFailed:
		return SeverityFatal
	case ErrCodeCorruptIndex, ErrCodeParityViolation, ErrCodeEmbeddingFailed, ErrCodeNoTextExtracted:
		return SeverityWarning
	}
	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeProviderUnavailable, ErrCodeProviderTimeout, ErrCodeLockFailed:
		return true
	default:
		return false
	}
}
