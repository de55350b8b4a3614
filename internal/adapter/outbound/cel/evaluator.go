// Package cel provides a CEL-based shield rule expression evaluator.
package cel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/Ledger-Gate/ledgergate/internal/domain/shield"
)

// maxExpressionLength is the maximum allowed length for rule expressions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit to prevent cost-exhaustion DoS.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum allowed parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout is the maximum time allowed for a single rule evaluation.
const evalTimeout = 5 * time.Second

// interruptCheckFreq is how often (in comprehension iterations) context cancellation is checked.
const interruptCheckFreq = 100

// Evaluator compiles shield rule expressions against the request environment.
type Evaluator struct {
	env *cel.Env
}

// NewRequestEnvironment creates a CEL environment exposing the admission
// request surface to rule expressions:
//
//	method          string  HTTP method
//	path            string  URL path
//	query           string  raw query string
//	user_agent      string  User-Agent header
//	content_type    string  Content-Type header
//	content_length  int     declared body size (-1 if unknown)
//	header          map     canonical header name -> first value
func NewRequestEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("method", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("query", cel.StringType),
		cel.Variable("user_agent", cel.StringType),
		cel.Variable("content_type", cel.StringType),
		cel.Variable("content_length", cel.IntType),
		cel.Variable("header", cel.MapType(cel.StringType, cel.StringType)),
	)
}

// NewEvaluator creates a new CEL evaluator with the request environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := NewRequestEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create request environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// Compile validates, parses, and type-checks a rule expression, returning a
// program ready for per-request evaluation. Implements shield.Compiler.
func (e *Evaluator) Compile(expression string) (shield.Program, error) {
	if err := validateExpression(expression); err != nil {
		return nil, err
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}

	return &program{prg: prg}, nil
}

// validateExpression enforces safety limits before compilation: length and
// nesting depth, so operator-supplied rules cannot blow up the compiler.
func validateExpression(expr string) error {
	if expr == "" {
		return errors.New("expression is empty")
	}
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	return validateNesting(expr)
}

// validateNesting checks that the expression does not exceed the maximum
// allowed nesting depth for parentheses, brackets, and braces.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// program wraps a compiled CEL program as a shield.Program.
type program struct {
	prg cel.Program
}

// Eval runs the compiled rule against the given request context.
// Evaluation is bounded by a timeout to prevent indefinite hangs.
func (p *program) Eval(ctx context.Context, rc shield.RequestContext) (bool, error) {
	evalCtx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	result, _, err := p.prg.ContextEval(evalCtx, buildActivation(rc))
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return a boolean, got %T", result.Value())
	}

	return boolResult, nil
}

// buildActivation maps the request context into CEL variables.
func buildActivation(rc shield.RequestContext) map[string]any {
	header := rc.Header
	if header == nil {
		header = map[string]string{}
	}
	return map[string]any{
		"method":         rc.Method,
		"path":           rc.Path,
		"query":          rc.RawQuery,
		"user_agent":     rc.UserAgent,
		"content_type":   rc.ContentType,
		"content_length": rc.ContentLength,
		"header":         header,
	}
}

// Compile-time check that Evaluator implements shield.Compiler.
var _ shield.Compiler = (*Evaluator)(nil)
