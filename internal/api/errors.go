package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrUnauthorized is returned for any 401 from a protected endpoint.
var ErrUnauthorized = errors.New("Unauthorized - Please login again")

// OperationError is a failed request: a non-2xx status other than 401, or a
// transport failure (StatusCode 0).
type OperationError struct {
	Op         string
	Message    string
	StatusCode int
	Err        error
}

func (e *OperationError) Error() string {
	if e.Err != nil && e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// ValidationError is raised on the client before any request is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

type errorBody struct {
	Detail any `json:"detail"`
}

// readDetail extracts the backend's {"detail": "..."} message, if any.
// Validation failures carry a list there; only plain strings are used.
func readDetail(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(body) == 0 {
		return ""
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if s, ok := eb.Detail.(string); ok {
		return s
	}
	return ""
}
