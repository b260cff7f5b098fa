package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are grouped by module prefix: COMMON for cross-cutting failures,
// CIT for the citation-extraction pipeline, AI for LLM analysis, CLM for
// claim parsing and staleness.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTimeout            ErrorCode = "COMMON_005"
	ErrCodeSerialization      ErrorCode = "COMMON_006"
	ErrCodeDatabaseError      ErrorCode = "COMMON_007"
	ErrCodeCacheError         ErrorCode = "COMMON_008"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_009"
	ErrCodeConfig             ErrorCode = "COMMON_010"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_011"
)

// Citation-extraction module error codes.
const (
	// ErrCodeExternalAPI is raised when the semantic-search service rejects a
	// submission or returns a transport-level failure; spec name
	// CITATION_EXTERNAL_API_ERROR.
	ErrCodeExternalAPI ErrorCode = "CIT_001"

	// ErrCodeExternalJobNotFound maps a poll-time HTTP 404: the service does
	// not know the job.  Non-retryable.
	ErrCodeExternalJobNotFound ErrorCode = "CIT_002"

	// ErrCodePollingTimeout is raised when the bounded polling loop exhausts
	// its attempt budget without a terminal status.
	ErrCodePollingTimeout ErrorCode = "CIT_003"

	// ErrCodeExternalFailed carries a negative status code reported by the
	// search service together with its error payload.
	ErrCodeExternalFailed ErrorCode = "CIT_004"

	// ErrCodeUnknownStatus is raised for numeric status values outside the
	// observed {negative, 0, 1} contract.  Treated as an error state rather
	// than guessed semantics.
	ErrCodeUnknownStatus ErrorCode = "CIT_005"

	ErrCodeJobNotFound      ErrorCode = "CIT_006"
	ErrCodeJobStateConflict ErrorCode = "CIT_007"
	ErrCodeProcessing       ErrorCode = "CIT_008"
)

// AI / deep-analysis module error codes.
const (
	ErrCodeLLMRequestFailed   ErrorCode = "AI_001"
	ErrCodeLLMInvalidResponse ErrorCode = "AI_002"
	ErrCodeLLMTruncated       ErrorCode = "AI_003"
	ErrCodeAnalysisFailed     ErrorCode = "AI_004"
	ErrCodeValidationFailed   ErrorCode = "AI_005"
)

// Claim module error codes.
const (
	ErrCodeClaimNotFound    ErrorCode = "CLM_001"
	ErrCodeClaimParseFailed ErrorCode = "CLM_002"
	ErrCodeClaimEmpty       ErrorCode = "CLM_003"
)

// Short aliases used at call sites throughout the codebase.
const (
	CodeOK      = ErrorCode("OK")
	CodeUnknown = ErrorCode("UNKNOWN")

	CodeInternal           = ErrCodeInternal
	CodeInvalidParam       = ErrCodeBadRequest
	CodeNotFound           = ErrCodeNotFound
	CodeConflict           = ErrCodeConflict
	CodeTimeout            = ErrCodeTimeout
	CodeSerialization      = ErrCodeSerialization
	CodeDatabaseError      = ErrCodeDatabaseError
	CodeCacheError         = ErrCodeCacheError
	CodeServiceUnavailable = ErrCodeServiceUnavailable
	CodeConfig             = ErrCodeConfig
	CodeFeatureDisabled    = ErrCodeFeatureDisabled

	CodeExternalAPI         = ErrCodeExternalAPI
	CodeExternalJobNotFound = ErrCodeExternalJobNotFound
	CodePollingTimeout      = ErrCodePollingTimeout
	CodeExternalFailed      = ErrCodeExternalFailed
	CodeUnknownStatus       = ErrCodeUnknownStatus
	CodeJobNotFound         = ErrCodeJobNotFound
	CodeJobStateConflict    = ErrCodeJobStateConflict

	CodeLLMRequestFailed   = ErrCodeLLMRequestFailed
	CodeLLMInvalidResponse = ErrCodeLLMInvalidResponse
	CodeLLMTruncated       = ErrCodeLLMTruncated
	CodeAnalysisFailed     = ErrCodeAnalysisFailed
	CodeValidationFailed   = ErrCodeValidationFailed

	CodeClaimNotFound    = ErrCodeClaimNotFound
	CodeClaimParseFailed = ErrCodeClaimParseFailed
	CodeClaimEmpty       = ErrCodeClaimEmpty
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes for the API layer.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeConfig:             http.StatusInternalServerError,
	ErrCodeFeatureDisabled:    http.StatusForbidden,

	ErrCodeExternalAPI:         http.StatusBadGateway,
	ErrCodeExternalJobNotFound: http.StatusNotFound,
	ErrCodePollingTimeout:      http.StatusGatewayTimeout,
	ErrCodeExternalFailed:      http.StatusBadGateway,
	ErrCodeUnknownStatus:       http.StatusBadGateway,
	ErrCodeJobNotFound:         http.StatusNotFound,
	ErrCodeJobStateConflict:    http.StatusConflict,
	ErrCodeProcessing:          http.StatusAccepted,

	ErrCodeLLMRequestFailed:   http.StatusBadGateway,
	ErrCodeLLMInvalidResponse: http.StatusBadGateway,
	ErrCodeLLMTruncated:       http.StatusBadGateway,
	ErrCodeAnalysisFailed:     http.StatusInternalServerError,
	ErrCodeValidationFailed:   http.StatusInternalServerError,

	ErrCodeClaimNotFound:    http.StatusNotFound,
	ErrCodeClaimParseFailed: http.StatusUnprocessableEntity,
	ErrCodeClaimEmpty:       http.StatusUnprocessableEntity,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTimeout:            "operation timed out",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeConfig:             "invalid or missing configuration",
	ErrCodeFeatureDisabled:    "feature disabled",

	ErrCodeExternalAPI:         "citation search service error",
	ErrCodeExternalJobNotFound: "external citation job not found",
	ErrCodePollingTimeout:      "citation polling budget exhausted",
	ErrCodeExternalFailed:      "citation search service reported failure",
	ErrCodeUnknownStatus:       "citation search service returned unknown status",
	ErrCodeJobNotFound:         "citation job not found",
	ErrCodeJobStateConflict:    "citation job state conflict",
	ErrCodeProcessing:          "citation job still processing",

	ErrCodeLLMRequestFailed:   "language model request failed",
	ErrCodeLLMInvalidResponse: "language model returned unparsable output",
	ErrCodeLLMTruncated:       "language model output appears truncated",
	ErrCodeAnalysisFailed:     "deep analysis failed",
	ErrCodeValidationFailed:   "suggestion validation failed",

	ErrCodeClaimNotFound:    "claim not found",
	ErrCodeClaimParseFailed: "failed to parse claim elements",
	ErrCodeClaimEmpty:       "claim text is empty",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError reports whether the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError reports whether the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
