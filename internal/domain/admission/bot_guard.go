package admission

import (
	"context"
	"net/http"

	"github.com/Ledger-Gate/ledgergate/internal/domain/audit"
	"github.com/Ledger-Gate/ledgergate/internal/domain/bot"
)

// BotGuard classifies the client from its User-Agent and denies categories
// outside the allow list. Classification is pure; only the allow list and
// mode are configuration.
type BotGuard struct {
	allowed  bot.AllowList
	mode     Mode
	recorder Recorder
}

// NewBotGuard creates the bot-filter stage.
func NewBotGuard(allowed bot.AllowList, mode Mode, recorder Recorder) *BotGuard {
	if allowed == nil {
		allowed = bot.NewAllowList(bot.DefaultAllowed)
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &BotGuard{allowed: allowed, mode: mode, recorder: recorder}
}

// Name implements Guard.
func (g *BotGuard) Name() string { return audit.StageBotFilter }

// Check implements Guard.
func (g *BotGuard) Check(ctx context.Context, req *Request) (Decision, error) {
	category := bot.Classify(req.UserAgent)
	if g.allowed.Allowed(category) {
		return Forward(), nil
	}

	observed := g.mode == ModeObserve
	g.recorder.Record(ctx, audit.Record{
		Timestamp:   req.ReceivedAt,
		RequestID:   req.RequestID,
		Stage:       audit.StageBotFilter,
		Decision:    audit.DecisionDeny,
		Reason:      "client category not allowed",
		Observed:    observed,
		Method:      req.Method,
		Path:        req.Path,
		SourceIP:    req.SourceIP,
		UserAgent:   req.UserAgent,
		IdentityKey: req.IdentityKey,
		BotCategory: string(category),
	})

	if observed {
		return Forward(), nil
	}
	return Reject(audit.StageBotFilter, http.StatusForbidden, "automated clients not allowed"), nil
}

// Compile-time interface verification.
var _ Guard = (*BotGuard)(nil)
