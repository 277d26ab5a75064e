package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusOf maps domain errors to HTTP statuses
func statusOf(err error) int {
	var validation *shared.ValidationError
	var badCoordinate *shared.BadCoordinateError
	var notFound *shared.NotFoundError
	var wrongState *shared.WrongStateError
	var contended *shared.ContendedError
	var noCandidate *shared.NoCandidateError
	var mlDown *shared.MLUnavailableError
	var routingDown *shared.RoutingUnavailableError

	switch {
	case errors.As(err, &validation), errors.As(err, &badCoordinate):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &wrongState), errors.As(err, &contended):
		return http.StatusConflict
	case errors.As(err, &noCandidate):
		return http.StatusUnprocessableEntity
	case errors.As(err, &mlDown), errors.As(err, &routingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
