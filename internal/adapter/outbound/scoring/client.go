// Package scoring provides a client for the external financial-health
// analysis service. The gateway never computes scores itself; it validates
// the payload and forwards it to the service's /analyze endpoint.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	defaultTimeout     = 15 * time.Second
	maxResponseBytes   = 1 * 1024 * 1024
	analyzePathSuffix  = "/analyze"
	contentTypeJSON    = "application/json"
	headerContentType  = "Content-Type"
	headerAccept       = "Accept"
	headerXRequestID   = "X-Request-ID"
	defaultServiceName = "financial-health"
)

// AnalyzeRequest carries the financial inputs for one analysis.
// Optional fields are pointers so absent values are omitted from the
// payload rather than sent as zeroes.
type AnalyzeRequest struct {
	MonthlyIncome   float64 `json:"monthly_income" validate:"gte=0"`
	MonthlyExpenses float64 `json:"monthly_expenses" validate:"gte=0"`
	SavingsAmount   float64 `json:"savings_amount" validate:"gte=0"`
	DebtAmount      float64 `json:"debt_amount" validate:"gte=0"`
	CreditScore     int     `json:"credit_score" validate:"gte=300,lte=850"`
	Age             int     `json:"age" validate:"gte=18,lte=100"`

	EmergencyFundMonths      *float64 `json:"emergency_fund_months,omitempty" validate:"omitempty,gte=0"`
	InvestmentAmount         *float64 `json:"investment_amount,omitempty" validate:"omitempty,gte=0"`
	EmploymentStabilityYears *float64 `json:"employment_stability_years,omitempty" validate:"omitempty,gte=0"`
	NumberOfDependents       *int     `json:"number_of_dependents,omitempty" validate:"omitempty,gte=0"`
	CreditUtilization        *float64 `json:"credit_utilization,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// ScoreCategory labels the overall score band.
type ScoreCategory struct {
	Category    string `json:"category"`
	Description string `json:"description"`
}

// Analysis holds the qualitative findings for a report.
type Analysis struct {
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	RiskFactors []string `json:"risk_factors"`
}

// Metric is one key financial metric with its benchmark.
type Metric struct {
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
	Benchmark float64 `json:"benchmark"`
}

// Recommendation is one prioritized suggestion from the service.
type Recommendation struct {
	Title       string `json:"title"`
	Priority    string `json:"priority"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// Report is the full analysis result returned by the service.
type Report struct {
	FinancialHealthScore float64           `json:"financial_health_score"`
	ScoreCategory        ScoreCategory     `json:"score_category"`
	Analysis             Analysis          `json:"analysis"`
	KeyMetrics           map[string]Metric `json:"key_metrics"`
	Recommendations      []Recommendation  `json:"recommendations"`
}

// analyzeResponse is the service's wire envelope.
type analyzeResponse struct {
	Data  *Report `json:"data"`
	Error string  `json:"error"`
}

// ServiceError is a non-2xx answer from the scoring service.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("scoring service: status %d", e.StatusCode)
	}
	return fmt.Sprintf("scoring service: status %d: %s", e.StatusCode, e.Message)
}

// ValidationError reports which request fields failed validation before
// any network call was made.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid analysis request: %s", strings.Join(e.Fields, ", "))
}

// Config holds configuration for the scoring client.
type Config struct {
	// BaseURL is the scoring service root, without the /analyze suffix.
	BaseURL string
	// Timeout bounds each analysis call (default 15s).
	Timeout time.Duration
}

// Client calls the external scoring service.
type Client struct {
	baseURL  string
	client   *http.Client
	validate *validator.Validate
	logger   *slog.Logger
}

// NewClient creates a scoring client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		validate: validator.New(),
		logger:   logger,
	}
}

// Analyze validates the request and posts it to the scoring service.
// Returns ValidationError before any network call when fields are out of
// range, and ServiceError when the service answers with a non-2xx status.
func (c *Client) Analyze(ctx context.Context, requestID string, req AnalyzeRequest) (*Report, error) {
	if err := c.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fieldJSONName(fe.Field()), fe.Tag()))
			}
			return nil, &ValidationError{Fields: fields}
		}
		return nil, fmt.Errorf("validate analysis request: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePathSuffix, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build analysis request: %w", err)
	}
	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeJSON)
	if requestID != "" {
		httpReq.Header.Set(headerXRequestID, requestID)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call scoring service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope analyzeResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := envelope.Error
		if decodeErr != nil {
			msg = ""
		}
		c.logger.Warn("scoring service error",
			"service", defaultServiceName,
			"status", resp.StatusCode,
			"duration_ms", time.Since(start).Milliseconds())
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("decode analysis response: %w", decodeErr)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("scoring service: empty data in response")
	}

	c.logger.Debug("analysis completed",
		"service", defaultServiceName,
		"score", envelope.Data.FinancialHealthScore,
		"duration_ms", time.Since(start).Milliseconds())

	return envelope.Data, nil
}

// fieldJSONName converts a Go field name to its snake_case JSON name.
func fieldJSONName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
