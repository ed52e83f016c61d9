package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/cleared-dev/fpa/internal/export"
	"github.com/cleared-dev/fpa/internal/ingest"
	"github.com/cleared-dev/fpa/internal/insights"
	"github.com/cleared-dev/fpa/internal/variance"
)

// APIError is the error payload of the JSON endpoints.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

func (e *APIError) Error() string { return e.Message }

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ErrorResponse wraps an APIError in the standard envelope.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// Render implements render.Renderer.
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}

func newAPIError(status int, code, msg string, details any) *APIError {
	return &APIError{StatusCode: status, ErrorCode: code, Message: msg, Details: details}
}

var (
	errNoData      = newAPIError(http.StatusNotFound, "NO_DATA", "Upload a CSV or load the sample data first.", nil)
	errAIDisabled  = newAPIError(http.StatusServiceUnavailable, "AI_DISABLED", "AI analysis is not configured.", nil)
	errBadFormat   = newAPIError(http.StatusNotFound, "UNSUPPORTED_FORMAT", "Unsupported format.", nil)
	errInternal    = newAPIError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error", nil)
	errMissingFile = newAPIError(http.StatusBadRequest, "MISSING_FILE", "Choose a CSV file to upload.", nil)

	errDatasetChanged = newAPIError(http.StatusConflict, "DATASET_CHANGED",
		"The dataset changed while the analysis was running. Generate it again.", nil)
)

// apiErrorFor maps domain errors onto HTTP statuses and stable codes.
func apiErrorFor(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var maxErr *http.MaxBytesError
	var missing *variance.MissingColumnsError
	var rowErr *variance.RowError
	switch {
	case errors.Is(err, ingest.ErrFileTooLarge), errors.As(err, &maxErr):
		return newAPIError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", err.Error(), nil)
	case errors.Is(err, ingest.ErrEmptyFile), errors.Is(err, variance.ErrEmptyInput):
		return newAPIError(http.StatusBadRequest, "EMPTY_FILE", err.Error(), nil)
	case errors.Is(err, ingest.ErrMalformedCSV):
		return newAPIError(http.StatusBadRequest, "MALFORMED_CSV", err.Error(), nil)
	case errors.As(err, &missing):
		return newAPIError(http.StatusUnprocessableEntity, "MISSING_COLUMNS", err.Error(), missing.Missing)
	case errors.Is(err, variance.ErrAlreadyAugmented):
		return newAPIError(http.StatusUnprocessableEntity, "ALREADY_AUGMENTED", err.Error(), nil)
	case errors.Is(err, variance.ErrDivisionByZero):
		return newAPIError(http.StatusUnprocessableEntity, "DIVISION_BY_ZERO", err.Error(), nil)
	case errors.As(err, &rowErr):
		return newAPIError(http.StatusUnprocessableEntity, "INVALID_VALUE", err.Error(),
			map[string]any{"line": rowErr.Line, "column": rowErr.Column})
	case errors.Is(err, variance.ErrInvalidValue):
		return newAPIError(http.StatusUnprocessableEntity, "INVALID_VALUE", err.Error(), nil)
	case errors.Is(err, export.ErrNoData):
		return errNoData
	case errors.Is(err, insights.ErrUnauthorized):
		return newAPIError(http.StatusBadGateway, "AI_UNAUTHORIZED", err.Error(), nil)
	case errors.Is(err, insights.ErrRateLimited):
		return newAPIError(http.StatusServiceUnavailable, "AI_RATE_LIMITED", err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		return newAPIError(http.StatusGatewayTimeout, "AI_TIMEOUT", err.Error(), nil)
	case errors.Is(err, insights.ErrEmptyResponse), errors.Is(err, insights.ErrTransport):
		return newAPIError(http.StatusBadGateway, "AI_FAILED", err.Error(), nil)
	}
	var se *insights.StatusError
	if errors.As(err, &se) {
		return newAPIError(http.StatusBadGateway, "AI_FAILED", err.Error(), nil)
	}
	return errInternal
}

func renderError(w http.ResponseWriter, r *http.Request, apiErr *APIError) {
	_ = render.Render(w, r, &ErrorResponse{Success: false, Error: apiErr})
}

// flashMessage is the page text shown for a failed ingestion event.
func flashMessage(err error) string {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, ingest.ErrFileTooLarge), errors.As(err, &maxErr):
		return "File too large! " + err.Error()
	case errors.Is(err, ingest.ErrEmptyFile):
		return "The uploaded CSV is empty."
	}
	return err.Error()
}
