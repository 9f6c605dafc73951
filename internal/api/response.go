package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"rentalstation/internal/auth"
	"rentalstation/internal/entities"
	apperrors "rentalstation/internal/errors"
	"rentalstation/internal/validation"
)

const maxBodyBytes = 1 << 20

var validate = validation.New()

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("Failed to encode response")
	}
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, entities.Response{Success: true, Data: data})
}

// writeError maps err to its status and writes the error envelope. Unclassified errors are logged
// and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	status := apperrors.StatusCode(kind)

	log := logrus.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path, "status": status})
	if kind == apperrors.KindInternal {
		log.WithError(err).Error("Request failed")
	} else {
		log.WithError(err).Debug("Request rejected")
	}

	writeJSON(w, status, entities.Response{Success: false, Message: apperrors.Message(err)})
}

// decodeAndValidate is the single parse step for JSON bodies: syntax, type and rule violations
// all come back as validation errors.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.ErrValidation("Request body is required")
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return apperrors.Wrap(apperrors.KindValidation, fmt.Sprintf("Invalid type for %s", typeErr.Field), err)
		}
		return apperrors.Wrap(apperrors.KindValidation, "Invalid request body", err)
	}
	return validateStruct(dst)
}

func validateStruct(v interface{}) error {
	err := validate.Validate(v)
	if err == nil {
		return nil
	}
	if missing := validation.MissingFields(err); len(missing) > 0 {
		return apperrors.Wrap(apperrors.KindValidation, "Missing required parameters: "+strings.Join(missing, ", "), err)
	}
	return apperrors.Wrap(apperrors.KindValidation, validation.Describe(err), err)
}

// requireCaller writes a 401 when the auth middleware did not run for this route.
func requireCaller(w http.ResponseWriter, r *http.Request) (*entities.Caller, bool) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.ErrUnauthorized("Missing bearer token"))
		return nil, false
	}
	return caller, true
}
