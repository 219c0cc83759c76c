package camera

import "fmt"

// Error codes.
const (
	CodeConnect        = "CONNECT_FAILED"
	CodeRead           = "READ_FAILED"
	CodeStaleSource    = "STALE_SOURCE"
	CodeRetryExhausted = "RETRY_EXHAUSTED"
	CodeUnknownCamera  = "UNKNOWN_CAMERA"
	CodeInvalidConfig  = "INVALID_CONFIG"
)

// Sentinels for errors.Is; any *Error with the same code matches.
var (
	ErrConnect        = &Error{Code: CodeConnect}
	ErrRead           = &Error{Code: CodeRead}
	ErrStaleSource    = &Error{Code: CodeStaleSource}
	ErrRetryExhausted = &Error{Code: CodeRetryExhausted}
	ErrUnknownCamera  = &Error{Code: CodeUnknownCamera}
	ErrInvalidConfig  = &Error{Code: CodeInvalidConfig}
)

// Error is a camera-related failure.
type Error struct {
	Code     string
	CameraID string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if e.CameraID != "" {
		msg = fmt.Sprintf("camera %s: %s", e.CameraID, msg)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Code so callers can test against the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewConnectError wraps a failure to open a source connection.
func NewConnectError(id string, cause error) *Error {
	return &Error{Code: CodeConnect, CameraID: id, Message: "connect failed", Cause: cause}
}

// NewReadError wraps a failure to read a frame from an open connection.
func NewReadError(id string, cause error) *Error {
	return &Error{Code: CodeRead, CameraID: id, Message: "read failed", Cause: cause}
}

// NewUnknownCameraError reports an id that is not configured.
func NewUnknownCameraError(id string) *Error {
	return &Error{Code: CodeUnknownCamera, CameraID: id, Message: "camera is not configured"}
}
