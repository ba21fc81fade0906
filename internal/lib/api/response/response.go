package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Response struct {
	Status int    `json:"status"`
	Error  string `json:"error,omitempty"`
}

const (
	StatusOK = 200
)

// Error taxonomy for the round engine. Services wrap these sentinels and the
// handlers map them to HTTP statuses; store details never reach players.
var (
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInternal          = errors.New("internal error")
)

func OK() Response {
	return Response{
		Status: StatusOK,
	}
}

func Error(msg string, status int) Response {
	if status == 0 {
		status = http.StatusInternalServerError
	}

	return Response{
		Status: status,
		Error:  msg,
	}
}

// FromError maps a taxonomy error to the JSON envelope. Anything outside the
// taxonomy is reported as a bare internal error.
func FromError(err error) Response {
	switch {
	case errors.Is(err, ErrValidation):
		return Error(err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		return Error(err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrConflict):
		return Error(err.Error(), http.StatusConflict)
	case errors.Is(err, ErrInsufficientFunds):
		return Error(ErrInsufficientFunds.Error(), http.StatusPaymentRequired)
	default:
		return Error(ErrInternal.Error(), http.StatusInternalServerError)
	}
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is required", err.Field()))
		case "min":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is below the minimum", err.Field()))
		case "max":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is above the maximum", err.Field()))
		default:
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is invalid", err.Field()))
		}
	}

	return Response{
		Status: http.StatusBadRequest,
		Error:  strings.Join(errMsgs, ", "),
	}
}
