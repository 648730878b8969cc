package errx

// RetryAfterSeconds is advertised on UNAVAILABLE responses
const RetryAfterSeconds = 1

// HTTPErrorResponse is the JSON body of every error response
type HTTPErrorResponse struct {
	Error      string                 `json:"error"`
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Details    map[string]interface{} `json:"details,omitempty"`
	StatusCode int                    `json:"status"`
	RequestID  string                 `json:"request_id,omitempty"`
}

// ToHTTPResponse drops the cause; only the message and details reach clients
func (e *Error) ToHTTPResponse() HTTPErrorResponse {
	return HTTPErrorResponse{
		Error:      e.Message,
		Code:       e.Code,
		Type:       string(e.Type),
		Details:    e.Details,
		StatusCode: e.HTTPStatus,
	}
}

// Normalize turns any error into an *Error; unknown errors become opaque internal errors.
func Normalize(err error) *Error {
	var e *Error
	if As(err, &e) {
		return e
	}
	return Wrap(err, "internal server error", TypeInternal)
}
