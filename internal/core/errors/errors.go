package errors

const (
	HttpInternalError     = "internal_error"
	HttpInvalidJsonError  = "invalid_json"
	HttpEventNotFound     = "event_not_found"
	HttpBatchTooLarge     = "batch_too_large"
	HttpMissingOwnerError = "missing_owner"
)

// ErrorResponse is the error response body for submission errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
