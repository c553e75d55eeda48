// Package errs defines the stable error codes and typed error values
// spec.md §7 requires ToolSurface to translate into the JSON envelope.
// Internal layers return and wrap these like the teacher's store/embedding
// code wraps causes with fmt.Errorf("...: %w", ...). ToolSurface reads
// Code() to build the envelope; internal layers may also branch on it
// (internal/docstore does).
package errs

import "fmt"

// Code is one of the stable error_code values from spec.md §7.
type Code string

const (
	CodeAuthRequired        Code = "AUTH_REQUIRED"
	CodeAdminRequired       Code = "ADMIN_REQUIRED"
	CodeInvalidSource       Code = "INVALID_SOURCE"
	CodeSourceNotFound      Code = "SOURCE_NOT_FOUND"
	CodeWordCountExceeded   Code = "WORD_COUNT_EXCEEDED"
	CodeValidationError     Code = "VALIDATION_ERROR"
	CodeDocumentNotFound    Code = "DOCUMENT_NOT_FOUND"
	CodeAccessDenied        Code = "ACCESS_DENIED"
	CodeDuplicate           Code = "DUPLICATE"
	CodeExtractionParse     Code = "EXTRACTION_PARSE_ERROR"
	CodeIngestError         Code = "INGEST_ERROR"
	CodeGraphError        Code = "GRAPH_ERROR"
	CodeVectorError       Code = "VECTOR_ERROR"
	CodeLLMError          Code = "LLM_ERROR"
	CodeConfigError       Code = "CONFIG_ERROR"
	CodeInternalError     Code = "INTERNAL_ERROR"
)

// Error is a typed service error carrying a stable Code and a
// recovery-strategy hint ToolSurface surfaces verbatim.
type Error struct {
	code     Code
	message  string
	recovery string
	cause    error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the stable error code for the tool-surface envelope.
func (e *Error) Code() string { return string(e.code) }

// RecoveryStrategy returns a human-readable hint for the caller.
func (e *Error) RecoveryStrategy() string { return e.recovery }

// New constructs a typed Error with no wrapped cause.
func New(code Code, recovery, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...), recovery: recovery}
}

// Wrap constructs a typed Error wrapping cause.
func Wrap(code Code, recovery string, cause error, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...), recovery: recovery, cause: cause}
}

// AuthRequired is returned by ToolSurface for tools needing a token.
func AuthRequired(msg string) *Error {
	return New(CodeAuthRequired, "supply a valid auth_tokens entry", "%s", msg)
}

// AdminRequired is raised by GroupService.require_admin.
func AdminRequired(msg string) *Error {
	return New(CodeAdminRequired, "retry with an admin-group token", "%s", msg)
}

// InvalidSource is raised when a source fails IngestService's validation.
func InvalidSource(msg string) *Error {
	return New(CodeInvalidSource, "use an active source in the target group", "%s", msg)
}

// SourceNotFound is raised by SourceRegistry.get for a missing id.
func SourceNotFound(id string) *Error {
	return New(CodeSourceNotFound, "check source_id and retry", "source not found: %s", id)
}

// WordCountExceeded is raised when content exceeds the max word count.
func WordCountExceeded(got, max int) *Error {
	return New(CodeWordCountExceeded, "shorten content below the word limit", "word count %d exceeds max %d", got, max)
}

// ValidationError wraps a shape error in caller input.
func ValidationError(cause error) *Error {
	return Wrap(CodeValidationError, "fix the reported field and retry", cause, "validation failed")
}

// DocumentNotFound is raised by DocumentStore.load for a missing id.
func DocumentNotFound(id string) *Error {
	return New(CodeDocumentNotFound, "check doc_id and date_hint", "document not found: %s", id)
}

// AccessDenied is raised when a document exists but the caller's groups
// don't include it (spec.md §4.1: preferred over a silent NotFound).
func AccessDenied(id string) *Error {
	return New(CodeAccessDenied, "request a token scoped to the owning group", "access denied for document: %s", id)
}

// ExtractionParseFailed is raised when the LLM's JSON doesn't conform;
// the caller degrades rather than failing the ingest (spec.md §4.9 step 6).
func ExtractionParseFailed(cause error) *Error {
	return Wrap(CodeExtractionParse, "document kept without extraction-derived edges", cause, "extraction parse failed")
}

// IngestFailed is raised after a completed rollback; the caller may retry.
func IngestFailed(cause error) *Error {
	return Wrap(CodeIngestError, "retry the ingest; rollback has completed", cause, "ingest failed")
}

// GraphFailed wraps a GraphIndex infrastructure failure.
func GraphFailed(cause error) *Error {
	return Wrap(CodeGraphError, "retry; if persistent, check graph backend health", cause, "graph operation failed")
}

// VectorFailed wraps a VectorIndex infrastructure failure.
func VectorFailed(cause error) *Error {
	return Wrap(CodeVectorError, "retry; if persistent, check vector backend health", cause, "vector operation failed")
}

// LLMFailed wraps an LLM provider infrastructure failure.
func LLMFailed(cause error) *Error {
	return Wrap(CodeLLMError, "retry later; provider may be rate-limiting or down", cause, "llm call failed")
}

// ConfigError is raised when a required configuration key is missing.
func ConfigError(msg string) *Error {
	return New(CodeConfigError, "set the missing configuration key and restart", "%s", msg)
}

// Internal wraps an unclassified failure.
func Internal(cause error) *Error {
	return Wrap(CodeInternalError, "contact support if this persists", cause, "internal error")
}
