package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ledger-Gate/ledgergate/internal/adapter/inbound/httpgw"
	auditstore "github.com/Ledger-Gate/ledgergate/internal/adapter/outbound/audit"
	"github.com/Ledger-Gate/ledgergate/internal/adapter/outbound/cel"
	identityadapter "github.com/Ledger-Gate/ledgergate/internal/adapter/outbound/identity"
	"github.com/Ledger-Gate/ledgergate/internal/adapter/outbound/memory"
	"github.com/Ledger-Gate/ledgergate/internal/adapter/outbound/scoring"
	"github.com/Ledger-Gate/ledgergate/internal/config"
	"github.com/Ledger-Gate/ledgergate/internal/domain/admission"
	"github.com/Ledger-Gate/ledgergate/internal/domain/audit"
	"github.com/Ledger-Gate/ledgergate/internal/domain/bot"
	"github.com/Ledger-Gate/ledgergate/internal/domain/identity"
	"github.com/Ledger-Gate/ledgergate/internal/domain/ratelimit"
	"github.com/Ledger-Gate/ledgergate/internal/domain/route"
	"github.com/Ledger-Gate/ledgergate/internal/domain/shield"
	"github.com/Ledger-Gate/ledgergate/internal/service"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway server",
	Long: `Start the LedgerGate admission gateway.

The gateway fronts the financial-health application: every inbound
request passes the abuse shield, bot filter, rate limiter, and auth
gate before reaching the app or the /api/analyze endpoint.

Examples:
  # Start with config file settings
  ledgergate start

  # Start with a specific config file
  ledgergate --config /path/to/config.yaml start

  # Development mode: observe-only guards, seeded dev session
  ledgergate start --dev`,
	RunE: runStart,
}

var devMode bool

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (verbose logging, seeded session)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	// Load without validation so the --dev flag can override first.
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// stop() restores default signal handling so a second Ctrl+C does a
	// hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	// Audit store and async recorder.
	store, err := buildAuditStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create audit store: %w", err)
	}
	defer func() { _ = store.Close() }()

	auditSvc := service.NewAuditService(store, logger,
		service.WithChannelSize(cfg.Audit.ChannelSize),
		service.WithBatchSize(cfg.Audit.BatchSize),
		service.WithFlushInterval(parseDuration(cfg.Audit.FlushInterval, time.Second)),
		service.WithSendTimeout(parseDuration(cfg.Audit.SendTimeout, 100*time.Millisecond)),
		service.WithWarningThreshold(cfg.Audit.WarningThreshold),
	)
	auditSvc.Start(ctx)
	defer auditSvc.Stop()

	// Abuse shield: built-in signatures plus any configured CEL rules.
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create expression evaluator: %w", err)
	}
	rules := make([]shield.Rule, 0, len(cfg.Shield.Rules))
	for _, r := range cfg.Shield.Rules {
		rules = append(rules, shield.Rule{ID: r.ID, Name: r.Name, Expression: r.Expression})
	}
	abuseShield, err := shield.New(evaluator, rules)
	if err != nil {
		return fmt.Errorf("failed to compile shield rules: %w", err)
	}

	// Bot filter allow list.
	allowed := botAllowList(cfg.BotFilter.Allow)

	// Rate limiter with bounded key space and idle sweep.
	limiter := memory.NewTokenBucketLimiterWithConfig(
		cfg.RateLimit.MaxKeys,
		parseDuration(cfg.RateLimit.SweepInterval, 5*time.Minute),
		parseDuration(cfg.RateLimit.MaxIdle, time.Hour),
	)
	limiter.StartSweep(ctx)
	defer limiter.Stop()

	limitConfig := ratelimit.Config{
		Capacity:   cfg.RateLimit.Capacity,
		RefillRate: cfg.RateLimit.RefillRate,
		Interval:   parseDuration(cfg.RateLimit.Interval, time.Minute),
	}

	// Route classification and identity resolution for the auth gate.
	routes := route.NewClassifier(route.Config{
		ProtectedPrefixes: cfg.Routes.ProtectedPrefixes,
		BypassPrefixes:    cfg.Routes.BypassPrefixes,
		BypassExtensions:  cfg.Routes.BypassExtensions,
		EnforcePrefixes:   cfg.Routes.EnforcePrefixes,
	})

	resolver, err := buildResolver(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create identity resolver: %w", err)
	}

	// The pipeline, in its fixed order.
	chain := admission.NewChain(logger,
		admission.NewShieldGuard(abuseShield, admission.Mode(cfg.Shield.Mode), auditSvc),
		admission.NewBotGuard(allowed, admission.Mode(cfg.BotFilter.Mode), auditSvc),
		admission.NewRateLimitGuard(limiter, limitConfig, admission.Mode(cfg.RateLimit.Mode), auditSvc),
		admission.NewAuthGuard(routes, resolver, cfg.Routes.SignInURL, admission.FailMode(cfg.Auth.FailMode), auditSvc),
	)
	admissionSvc := service.NewAdmissionService(chain, logger)

	// Gateway server.
	opts := []httpgw.Option{
		httpgw.WithAddr(cfg.Server.HTTPAddr),
		httpgw.WithSessionCookie(cfg.Server.SessionCookie),
		httpgw.WithLogger(logger),
		httpgw.WithRateLimiter(limiter),
		httpgw.WithAuditService(auditSvc),
		httpgw.WithHealthChecker(httpgw.NewHealthChecker(limiter, auditSvc, Version)),
	}
	if cfg.Scoring.BaseURL != "" {
		client := scoring.NewClient(scoring.Config{
			BaseURL: cfg.Scoring.BaseURL,
			Timeout: parseDuration(cfg.Scoring.Timeout, 15*time.Second),
		}, logger)
		opts = append(opts, httpgw.WithAnalyzeHandler(httpgw.NewAnalyzeHandler(client)))
	}
	if cfg.Upstream.URL != "" {
		opts = append(opts, httpgw.WithUpstream(cfg.Upstream.URL))
	}

	server := httpgw.NewServer(admissionSvc, routes, opts...)

	logger.Info("gateway starting",
		"addr", cfg.Server.HTTPAddr,
		"shield_mode", cfg.Shield.Mode,
		"bot_filter_mode", cfg.BotFilter.Mode,
		"rate_limit", fmt.Sprintf("%d/%s", cfg.RateLimit.Capacity, cfg.RateLimit.Interval),
		"auth_fail_mode", cfg.Auth.FailMode,
		"dev_mode", cfg.DevMode,
	)

	return server.Start(ctx)
}

// buildAuditStore creates the audit store for the configured output.
func buildAuditStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (audit.Store, error) {
	switch {
	case cfg.Audit.Output == "stdout":
		return memory.NewAuditStore(), nil

	case strings.HasPrefix(cfg.Audit.Output, "file://"):
		dir := strings.TrimPrefix(cfg.Audit.Output, "file://")
		return auditstore.NewFileStore(auditstore.FileConfig{
			Dir:           dir,
			RetentionDays: cfg.Audit.RetentionDays,
			MaxFileSizeMB: cfg.Audit.MaxFileSizeMB,
		}, logger)

	case strings.HasPrefix(cfg.Audit.Output, "sqlite://"):
		path := strings.TrimPrefix(cfg.Audit.Output, "sqlite://")
		return auditstore.NewSQLiteStore(ctx, path)

	default:
		return nil, fmt.Errorf("invalid audit output: %s", cfg.Audit.Output)
	}
}

// buildResolver creates the identity resolver for the configured backend.
func buildResolver(cfg *config.Config, logger *slog.Logger) (identity.Resolver, error) {
	switch cfg.Auth.Resolver {
	case "static":
		sessions := make([]identityadapter.StaticSession, 0, len(cfg.Auth.Sessions))
		for _, s := range cfg.Auth.Sessions {
			sessions = append(sessions, identityadapter.StaticSession{
				TokenHash: s.TokenHash,
				Principal: identity.Principal{
					ID:    s.PrincipalID,
					Name:  s.Name,
					Roles: s.Roles,
				},
			})
		}
		return identityadapter.NewStaticResolver(sessions)

	default:
		return identityadapter.NewHTTPResolver(identityadapter.HTTPResolverConfig{
			VerifyURL: cfg.Auth.VerifyURL,
			Timeout:   parseDuration(cfg.Auth.VerifyTimeout, 3*time.Second),
		}, logger), nil
	}
}

// botAllowList converts configured category names into an allow list.
// Nil config yields the defaults.
func botAllowList(names []string) bot.AllowList {
	if len(names) == 0 {
		return bot.NewAllowList(bot.DefaultAllowed)
	}
	categories := make([]bot.Category, 0, len(names))
	for _, n := range names {
		categories = append(categories, bot.Category(n))
	}
	return bot.NewAllowList(categories)
}

// parseDuration parses a duration string, falling back to def when empty
// or malformed.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
