package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
)

const maxBodyBytes = 1 << 16

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *logrus.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Warn("failed to write response")
	}
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotEntryOwner):
		return http.StatusForbidden
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateJoin), errors.Is(err, domain.ErrTeacherInactive):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTxConflict):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError answers with the mapped status. Messages of internal errors are
// never shown to the caller.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger *logrus.Logger) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		msg = "internal error"
	case http.StatusServiceUnavailable:
		logger.WithError(err).WithField("path", r.URL.Path).Warn("request gave up after conflicts")
		msg = "queue is busy, try again"
	}
	writeJSON(w, status, ErrorResponse{Error: msg}, logger)
}

// decode reads a JSON body into dst and runs its validate tags.
func decode(r *http.Request, v *validator.Validate, dst any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return errors.WithMessage(domain.ErrInvalidInput, "request body is not valid JSON")
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" failed "+fe.Tag())
			}
			return errors.WithMessage(domain.ErrInvalidInput, strings.Join(fields, ", "))
		}
		return errors.WithMessage(domain.ErrInvalidInput, err.Error())
	}
	return nil
}

// NewValidator reports JSON field names in validation errors.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
