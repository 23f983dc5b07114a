package types

import (
	"errors"
	"fmt"
	"strings"
)

// Fatal parse errors. A parse that returns one of these returns no Device.
var (
	ErrMalformedDocument   = errors.New("malformed device description")
	ErrMissingIdentity     = errors.New("device identity section missing")
	ErrUnsupportedFormat   = errors.New("unsupported device description format")
	ErrCyclicTypeReference = errors.New("cyclic datatype reference")
)

// CyclicTypeReferenceError carries the reference chain that closed the cycle,
// starting and ending with the same datatype id.
type CyclicTypeReferenceError struct {
	Cycle []string
}

func (e *CyclicTypeReferenceError) Error() string {
	return fmt.Sprintf("cyclic datatype reference: %s", strings.Join(e.Cycle, " -> "))
}

func (e *CyclicTypeReferenceError) Is(target error) bool {
	return target == ErrCyclicTypeReference
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
// details can be string, map, struct, etc.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}
