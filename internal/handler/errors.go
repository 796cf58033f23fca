package handler

import (
	"errors"
	"net/http"

	"insightboard/internal/domain"
	"insightboard/internal/httputil"
)

// handleError converts domain errors to problem responses. Quota, field and
// order details are carried as extension members so clients can render them.
func handleError(w http.ResponseWriter, err error) {
	var (
		quotaErr      *domain.QuotaExceededError
		orderErr      *domain.InvalidOrderError
		validationErr *domain.ValidationError
		duplicateErr  *domain.DuplicateIDError
	)

	switch {
	case errors.As(err, &quotaErr):
		httputil.RespondErrorWithExtras(w, http.StatusTooManyRequests, quotaErr.Error(), map[string]interface{}{
			"action": quotaErr.Action,
			"used":   quotaErr.Used,
			"limit":  quotaErr.Limit,
		})
	case errors.As(err, &orderErr):
		httputil.RespondErrorWithExtras(w, http.StatusBadRequest, orderErr.Error(), map[string]interface{}{
			"missing": nonNil(orderErr.Missing),
			"extra":   nonNil(orderErr.Extra),
		})
	case errors.As(err, &validationErr):
		var extras map[string]interface{}
		if validationErr.Field != "" {
			extras = map[string]interface{}{"field": validationErr.Field}
		}
		httputil.RespondErrorWithExtras(w, http.StatusBadRequest, validationErr.Error(), extras)
	case errors.As(err, &duplicateErr):
		httputil.RespondError(w, http.StatusConflict, duplicateErr.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrBackendUnavailable):
		// Connection details stay in the logs.
		httputil.RespondError(w, http.StatusServiceUnavailable, "storage temporarily unavailable")
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
