package apperr

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// Envelope is the stable non-2xx JSON body shape from the external
// interfaces section: {error:{code,message,details}, request_id}.
type Envelope struct {
	Error struct {
		Code    string   `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

// Write renders err as the error envelope with the appropriate status
// code, generating a request ID if the caller doesn't already have one
// in scope (e.g. from the request-ID middleware).
func Write(w http.ResponseWriter, requestID string, err error) {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	var ae *Error
	status := KindInternal.HTTPStatus()
	code := KindInternal.String()
	message := "internal error"
	var details []string

	if asErr, ok := err.(*Error); ok {
		ae = asErr
	}
	if ae != nil {
		status = ae.Kind.HTTPStatus()
		code = ae.Kind.String()
		message = ae.Message
		details = ae.Details
	} else if err != nil {
		message = err.Error()
	}

	env := Envelope{RequestID: requestID}
	env.Error.Code = code
	env.Error.Message = message
	env.Error.Details = details
	if env.Error.Details == nil {
		env.Error.Details = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
