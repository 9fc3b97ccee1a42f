package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	customError "github.com/segyhp/loan-tracker/pkg/errors"
)

type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type ErrorResponse struct {
	Success   bool      `json:"success"`
	Code      string    `json:"code,omitempty"`
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// JSON sends a JSON response
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	response := Response{
		Success:   statusCode >= 200 && statusCode < 300,
		Data:      data,
		Timestamp: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("error encoding JSON response")
	}
}

// Success sends a successful JSON response
func Success(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}

// Created sends a created JSON response
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

// Error sends an error JSON response
func Error(w http.ResponseWriter, statusCode int, message string, err error) {
	response := ErrorResponse{
		Success:   false,
		Code:      customError.CodeOf(err),
		Message:   message,
		Timestamp: time.Now(),
	}

	if err != nil {
		response.Error = publicError(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		log.Error().Err(encodeErr).Msg("error encoding error response")
	}
}

// BadRequest sends a 400 bad request response
func BadRequest(w http.ResponseWriter, message string, err error) {
	Error(w, http.StatusBadRequest, message, err)
}

// NotFound sends a 404 not found response
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message, nil)
}

// InternalServerError sends a 500 internal server error response
func InternalServerError(w http.ResponseWriter, message string, err error) {
	Error(w, http.StatusInternalServerError, message, err)
}

// Unauthorized sends a 401 unauthorized response
func Unauthorized(w http.ResponseWriter, message string, err error) {
	Error(w, http.StatusUnauthorized, message, err)
}

// StatusFor maps an error returned by the service layer to an HTTP status.
func StatusFor(err error) int {
	var pce *customError.PartialCascadeError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &pce):
		return http.StatusInternalServerError
	case errors.Is(err, customError.ErrUserNotIdentified):
		return http.StatusUnauthorized
	case errors.Is(err, customError.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, customError.ErrLoanNotFound):
		return http.StatusNotFound
	case errors.Is(err, customError.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, customError.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromError writes err with the status and message its kind calls for.
func FromError(w http.ResponseWriter, err error) {
	status := StatusFor(err)

	message := http.StatusText(status)
	var be *customError.BusinessError
	if errors.As(err, &be) {
		message = be.Message
	}
	var pce *customError.PartialCascadeError
	if errors.As(err, &pce) {
		message = "Loan could not be fully deleted"
	}

	Error(w, status, message, err)
}

// publicError is the error text safe to return to clients. Store failures are
// reduced to their kind; the cause stays in the server log.
func publicError(err error) string {
	var pce *customError.PartialCascadeError
	if errors.As(err, &pce) {
		scrubbed := *pce
		scrubbed.Err = nil
		return scrubbed.Error()
	}
	if errors.Is(err, customError.ErrTransport) {
		return customError.ErrTransport.Error()
	}
	return err.Error()
}
