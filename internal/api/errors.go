package api

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/learnsense/internal/models"
	"github.com/miradorstack/learnsense/internal/utils"
)

// APIError is the body of every failed HTTP response.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ErrorEnvelope wraps APIError the way clients expect it.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type errorClass struct {
	http int
	grpc codes.Code
	code string
}

var internalClass = errorClass{http: http.StatusInternalServerError, grpc: codes.Internal, code: "internal"}

func classify(err error) errorClass {
	switch {
	case errors.Is(err, utils.ErrConsentRequired):
		return errorClass{http: http.StatusForbidden, grpc: codes.PermissionDenied, code: "consent_required"}
	case errors.Is(err, utils.ErrInvalidInput):
		return errorClass{http: http.StatusBadRequest, grpc: codes.InvalidArgument, code: "invalid_input"}
	case errors.Is(err, utils.ErrNotFound):
		return errorClass{http: http.StatusNotFound, grpc: codes.NotFound, code: "not_found"}
	case errors.Is(err, models.ErrInvalidTransition):
		return errorClass{http: http.StatusConflict, grpc: codes.FailedPrecondition, code: "invalid_transition"}
	default:
		return internalClass
	}
}

// envelopeFor maps err onto an HTTP status and body. Internal failures never
// leak their cause; fallback is shown instead.
func envelopeFor(err error, fallback string) (int, ErrorEnvelope) {
	class := classify(err)
	msg := fallback
	if class != internalClass {
		msg = utils.Message(err, err.Error())
	}
	return class.http, ErrorEnvelope{Error: APIError{Message: msg, Code: class.code}}
}

// grpcError converts err into a status error with the same classification as HTTP.
func grpcError(err error, fallback string) error {
	if err == nil {
		return nil
	}
	class := classify(err)
	msg := fallback
	if class != internalClass {
		msg = utils.Message(err, err.Error())
	}
	return status.Error(class.grpc, msg)
}
