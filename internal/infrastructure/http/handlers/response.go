package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
)

// writeErr sends JSON { "error": message, "code": errCode }. If errCode is empty, a default is used from code.
func writeErr(w http.ResponseWriter, code int, errCode string, message string) {
	if errCode == "" {
		errCode = defaultErrCode(code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": errCode})
}

func defaultErrCode(httpCode int) string {
	switch httpCode {
	case http.StatusBadRequest:
		return ErrCodeInvalidRequest
	case http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case http.StatusNotFound:
		return ErrCodeNotFound
	case http.StatusTooManyRequests:
		return ErrCodeRateLimited
	case http.StatusBadGateway:
		return ErrCodeUpstream
	default:
		return ErrCodeInternal
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainErr maps the error taxonomy onto HTTP status and code.
func writeDomainErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domerrors.ErrInvalidPhone):
		writeErr(w, http.StatusBadRequest, ErrCodeInvalidPhone, err.Error())
	case errors.Is(err, domerrors.ErrInvalidCode):
		writeErr(w, http.StatusBadRequest, ErrCodeInvalidCode, err.Error())
	case errors.Is(err, domerrors.ErrCodeExpired):
		writeErr(w, http.StatusBadRequest, ErrCodeCodeExpired, err.Error())
	case errors.Is(err, domerrors.ErrChallengeNotFound):
		writeErr(w, http.StatusNotFound, ErrCodeChallengeExpired, err.Error())
	case errors.Is(err, domerrors.ErrRateLimited):
		writeErr(w, http.StatusTooManyRequests, ErrCodeRateLimited, err.Error())
	case errors.Is(err, domerrors.ErrUnauthenticated), errors.Is(err, domerrors.ErrNoSession):
		writeErr(w, http.StatusUnauthorized, ErrCodeNeedsLogin, err.Error())
	case errors.Is(err, domerrors.ErrUnauthorized), errors.Is(err, domerrors.ErrRefreshFailed):
		writeErr(w, http.StatusUnauthorized, ErrCodeNeedsLogin, err.Error())
	case errors.Is(err, domerrors.ErrNetwork), errors.Is(err, domerrors.ErrMalformedResponse):
		writeErr(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}
