package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Ledger-Gate/ledgergate/internal/domain/admission"
)

// AdmissionService evaluates the guard chain for every inbound request and
// logs the terminal decision. It is the single entry point the HTTP
// adapter calls; the chain's ordering and fail-open semantics live in the
// domain.
type AdmissionService struct {
	chain  *admission.Chain
	logger *slog.Logger
	now    func() time.Time
}

// NewAdmissionService creates the admission service.
func NewAdmissionService(chain *admission.Chain, logger *slog.Logger) *AdmissionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdmissionService{
		chain:  chain,
		logger: logger,
		now:    time.Now,
	}
}

// Evaluate runs the pipeline and returns its terminal decision.
// Exactly one decision is produced per request.
func (s *AdmissionService) Evaluate(ctx context.Context, req *admission.Request) admission.Decision {
	start := s.now()
	decision := s.chain.Evaluate(ctx, req)
	elapsed := s.now().Sub(start)

	switch decision.Outcome {
	case admission.OutcomeForward:
		s.logger.Debug("request admitted",
			"request_id", req.RequestID,
			"method", req.Method,
			"path", req.Path,
			"duration_ms", elapsed.Milliseconds(),
		)
	case admission.OutcomeRedirect:
		s.logger.Info("request redirected",
			"request_id", req.RequestID,
			"method", req.Method,
			"path", req.Path,
			"stage", decision.Stage,
			"location", decision.Location,
		)
	case admission.OutcomeReject:
		s.logger.Info("request rejected",
			"request_id", req.RequestID,
			"method", req.Method,
			"path", req.Path,
			"stage", decision.Stage,
			"status", decision.Status,
			"reason", decision.Reason,
		)
	}
	return decision
}
