package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrNotFound = stderrors.New("resource does not exist")

const (
	CodeResourceDoesNotExist  = "RESOURCE_DOES_NOT_EXIST"
	CodeInvalidParameterValue = "INVALID_PARAMETER_VALUE"
	CodeResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
)

// Error is a non-2xx answer from the workspace API.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	ErrorCode  string
	Message    string
	Body       string
}

func (e *Error) Error() string {
	code := e.ErrorCode
	if code == "" {
		code = http.StatusText(e.StatusCode)
	}
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, code)
	}
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, code, e.Message)
}

// Is matches ErrNotFound for every shape the API uses to say a job, run or
// pipeline is gone: a 404, RESOURCE_DOES_NOT_EXIST, or a 400 whose message
// says "does not exist".
func (e *Error) Is(target error) bool {
	if target != ErrNotFound {
		return false
	}
	if e.StatusCode == http.StatusNotFound || e.ErrorCode == CodeResourceDoesNotExist {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "does not exist")
}

func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}

func parseError(method, path string, status int, body []byte) error {
	e := &Error{Method: method, Path: path, StatusCode: status, Body: string(body)}
	var wire struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(body, &wire); err == nil {
		e.ErrorCode = wire.ErrorCode
		e.Message = wire.Message
		if e.Message == "" {
			e.Message = wire.Error
		}
	} else {
		e.Message = strings.TrimSpace(string(body))
	}
	return e
}
