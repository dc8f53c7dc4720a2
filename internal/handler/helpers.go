package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/foodhub/internal/access"
	"github.com/vasiliy-maslov/foodhub/internal/employee"
	"github.com/vasiliy-maslov/foodhub/internal/order"
	"github.com/vasiliy-maslov/foodhub/internal/restaurant"
	"github.com/vasiliy-maslov/foodhub/internal/review"
	"github.com/vasiliy-maslov/foodhub/internal/stats"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeBadRequest        = "bad_request"
	CodeValidation        = "validation_failed"
	CodeRestaurantClosed  = "restaurant_closed"
	CodeStaleCart         = "stale_cart"
	CodeInvalidTransition = "invalid_transition"
	CodeForbidden         = "forbidden"
	CodeNotApproved       = "not_approved"
	CodeUnauthorized      = "unauthorized"
	CodeConflict          = "conflict"
	CodeNotFound          = "not_found"
	CodeReviewExists      = "review_exists"
	CodeInternal          = "internal_error"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details"`
}

type StaleCartResponse struct {
	Error string            `json:"error"`
	Code  string            `json:"code"`
	Items []order.StaleItem `json:"items"`
}

func respondWithError(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response","code":"internal_error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// mapErrorToStatusCode translates a domain error into a status code and error code.
func mapErrorToStatusCode(err error) (int, string) {
	switch {
	case errors.Is(err, order.ErrRestaurantClosed):
		return http.StatusUnprocessableEntity, CodeRestaurantClosed
	case errors.Is(err, order.ErrValidation),
		errors.Is(err, stats.ErrInvalidWindow),
		errors.Is(err, review.ErrInvalidReview):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, order.ErrStaleCart):
		return http.StatusConflict, CodeStaleCart
	case errors.Is(err, order.ErrConflict), errors.Is(err, employee.ErrStatusUnchanged):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, review.ErrReviewExists):
		return http.StatusConflict, CodeReviewExists
	case errors.Is(err, order.ErrInvalidTransition), errors.Is(err, review.ErrOrderNotServed):
		return http.StatusConflict, CodeInvalidTransition
	case errors.Is(err, access.ErrNotApproved):
		return http.StatusForbidden, CodeNotApproved
	case errors.Is(err, access.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrRestaurantNotFound),
		errors.Is(err, restaurant.ErrNotFound),
		errors.Is(err, employee.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// respondWithDomainError writes the error body for err. Internal errors are
// logged and replaced by clientMessage.
func respondWithDomainError(w http.ResponseWriter, r *http.Request, err error, clientMessage string) {
	status, code := mapErrorToStatusCode(err)

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg(clientMessage)
		respondWithError(w, status, code, clientMessage)
		return
	}
	log.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request rejected")

	var stale *order.StaleCartError
	if errors.As(err, &stale) {
		respondWithJSON(w, status, StaleCartResponse{Error: order.ErrStaleCart.Error(), Code: code, Items: stale.Items})
		return
	}
	var invalid *order.ValidationError
	if errors.As(err, &invalid) && code == CodeValidation {
		respondWithJSON(w, status, ValidationErrorResponse{
			Error:   "Validation failed",
			Code:    code,
			Details: map[string]string{invalid.Field: invalid.Message},
		})
		return
	}
	respondWithError(w, status, code, publicMessage(err))
}

// publicMessage strips the "service: " style prefixes added while wrapping.
func publicMessage(err error) string {
	msg := err.Error()
	for _, prefix := range []string{"service: ", "stats: ", "repository: "} {
		msg = strings.TrimPrefix(msg, prefix)
	}
	return msg
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			details[field] = "is required"
		case "min":
			details[field] = fmt.Sprintf("must be at least %s", fe.Param())
		case "max":
			details[field] = fmt.Sprintf("must be at most %s", fe.Param())
		case "oneof":
			details[field] = fmt.Sprintf("must be one of: %s", fe.Param())
		default:
			details[field] = fmt.Sprintf("failed on %s", fe.Tag())
		}
	}
	return details
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the error response itself and reports whether to continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		log.Debug().Err(err).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return false
	}

	if err := v.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Code:    CodeValidation,
				Details: formatValidationErrors(validationErrors),
			})
			return false
		}
		log.Error().Err(err).Type("validation_error_type", err).Msg("Unexpected error type during validation")
		respondWithError(w, http.StatusInternalServerError, CodeInternal, "Internal validation error")
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.FromString(raw)
	if err != nil {
		log.Debug().Err(err).Str(name, raw).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("Invalid %s parameter", name))
		return uuid.Nil, false
	}
	return id, true
}

// newValidator returns a validator that reports JSON field names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
