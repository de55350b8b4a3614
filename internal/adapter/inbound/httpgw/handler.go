package httpgw

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Ledger-Gate/ledgergate/internal/adapter/outbound/scoring"
)

const maxAnalyzeBody = 64 * 1024

// AnalyzeHandler accepts the financial-health form submission and forwards
// it to the external scoring service. The admission pipeline has already
// run by the time this handler sees a request.
type AnalyzeHandler struct {
	client *scoring.Client
}

// NewAnalyzeHandler creates the analyze endpoint handler.
func NewAnalyzeHandler(client *scoring.Client) *AnalyzeHandler {
	return &AnalyzeHandler{client: client}
}

// ServeHTTP implements http.Handler for POST /api/analyze.
func (h *AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req scoring.AnalyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnalyzeBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	logger := LoggerFromContext(r.Context())
	report, err := h.client.Analyze(r.Context(), RequestIDFromContext(r.Context()), req)
	if err != nil {
		var verr *scoring.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		var serr *scoring.ServiceError
		if errors.As(err, &serr) {
			logger.Warn("scoring service rejected analysis", "status", serr.StatusCode)
			status := http.StatusBadGateway
			if serr.StatusCode >= 400 && serr.StatusCode < 500 {
				status = serr.StatusCode
			}
			writeError(w, status, "analysis failed")
			return
		}
		logger.Error("analysis call failed", "error", err)
		writeError(w, http.StatusBadGateway, "analysis unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": report})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes the service's error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
