package api

import (
	"encoding/json"
	"net/http"

	"github.com/worklens/worklens/internal/faults"
)

// faultResponse is the body returned for any escaped fault: a user-facing
// message plus ranked recovery suggestions. This is presentation only; control
// flow decisions were already made by the resilience core.
type faultResponse struct {
	Error       string   `json:"error"`
	Kind        string   `json:"kind"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func writeFault(w http.ResponseWriter, err error) {
	fault := faults.Classify(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(fault.Kind))
	json.NewEncoder(w).Encode(faultResponse{
		Error:       faults.UserMessage(fault),
		Kind:        string(fault.Kind),
		Suggestions: faults.RecoverySuggestions(fault.Kind),
	})
}

func statusFor(kind faults.Kind) int {
	switch kind {
	case faults.KindValidation:
		return http.StatusBadRequest
	case faults.KindAuth:
		return http.StatusUnauthorized
	case faults.KindRateLimit:
		return http.StatusTooManyRequests
	case faults.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
