package network

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind tags the failure class of an Error.
type Kind int

const (
	// KindAPIError is an error object returned by the remote API.
	KindAPIError Kind = iota + 1
	// KindInvalidParameters is a request rejected before it was sent.
	KindInvalidParameters
)

var (
	ErrAPI               = errors.New("api error")
	ErrInvalidParameters = errors.New("invalid parameters")
)

// Error is a typed network layer failure. Code and Info are set for
// KindAPIError, Reason for KindInvalidParameters.
type Error struct {
	Kind   Kind
	Code   string
	Info   string
	Reason string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAPIError:
		return fmt.Sprintf("api error %s: %s", e.Code, e.Info)
	case KindInvalidParameters:
		return fmt.Sprintf("invalid parameters: %s", e.Reason)
	default:
		return "network error"
	}
}

// Is lets errors.Is match the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrAPI:
		return e.Kind == KindAPIError
	case ErrInvalidParameters:
		return e.Kind == KindInvalidParameters
	}
	return false
}

// ErrorForAPIErrorObject converts an API error object into an *Error.
// It returns nil unless the object carries string code and info fields.
func ErrorForAPIErrorObject(obj map[string]any) error {
	if obj == nil {
		return nil
	}
	code, ok := obj["code"].(string)
	if !ok {
		return nil
	}
	info, ok := obj["info"].(string)
	if !ok {
		return nil
	}
	return &Error{Kind: KindAPIError, Code: code, Info: info}
}

// ErrorForAPIErrorJSON decodes body as an API error object. Bodies that are
// not a JSON object yield nil.
func ErrorForAPIErrorJSON(body []byte) error {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil
	}
	return ErrorForAPIErrorObject(obj)
}

func InvalidParametersError(reason string) error {
	return &Error{Kind: KindInvalidParameters, Reason: reason}
}
