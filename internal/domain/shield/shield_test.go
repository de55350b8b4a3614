package shield

import (
	"context"
	"errors"
	"testing"
)

// stubProgram is a canned shield.Program for custom-rule tests.
type stubProgram struct {
	matched bool
	err     error
}

func (p *stubProgram) Eval(_ context.Context, _ RequestContext) (bool, error) {
	return p.matched, p.err
}

// stubCompiler hands out the same program for every expression.
type stubCompiler struct {
	program Program
	err     error
}

func (c *stubCompiler) Compile(_ string) (Program, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.program, nil
}

func TestInspect_CleanRequest(t *testing.T) {
	t.Parallel()

	s, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	match, err := s.Inspect(context.Background(), RequestContext{
		Method:   "GET",
		Path:     "/dashboard/overview",
		RawQuery: "tab=spending&period=30d",
	})
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if match != nil {
		t.Errorf("Inspect() = %+v, want nil for clean request", match)
	}
}

func TestInspect_BuiltinSignatures(t *testing.T) {
	t.Parallel()

	s, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	tests := []struct {
		name   string
		rc     RequestContext
		wantID string
	}{
		{
			name:   "union select in query",
			rc:     RequestContext{Path: "/search", RawQuery: "q=1+UNION+SELECT+*+FROM+users"},
			wantID: SignatureSQLInjection,
		},
		{
			name:   "or 1=1",
			rc:     RequestContext{Path: "/login", RawQuery: "user=admin' OR 1=1 --"},
			wantID: SignatureSQLInjection,
		},
		{
			name:   "path traversal",
			rc:     RequestContext{Path: "/files/../../etc/passwd"},
			wantID: SignaturePathTraversal,
		},
		{
			name:   "encoded path traversal",
			rc:     RequestContext{Path: "/files/%2e%2e%2fetc/passwd"},
			wantID: SignaturePathTraversal,
		},
		{
			name:   "null byte",
			rc:     RequestContext{Path: "/download", RawQuery: "file=report.pdf%00.exe"},
			wantID: SignatureNullByte,
		},
		{
			name:   "script tag in query",
			rc:     RequestContext{Path: "/", RawQuery: "name=%3Cscript%3Ealert(1)%3C/script%3E"},
			wantID: SignatureScriptInjection,
		},
		{
			name:   "javascript scheme in header",
			rc:     RequestContext{Path: "/", Header: map[string]string{"Referer": "javascript:void(0)"}},
			wantID: SignatureScriptInjection,
		},
		{
			name:   "template injection",
			rc:     RequestContext{Path: "/", RawQuery: "name={{7*7}}"},
			wantID: SignatureTemplateInject,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			match, err := s.Inspect(context.Background(), tt.rc)
			if err != nil {
				t.Fatalf("Inspect() error: %v", err)
			}
			if match == nil {
				t.Fatal("Inspect() = nil, want a match")
			}
			if match.RuleID != tt.wantID {
				t.Errorf("RuleID = %q, want %q", match.RuleID, tt.wantID)
			}
		})
	}
}

func TestInspect_CookieAndAuthorizationExcluded(t *testing.T) {
	t.Parallel()

	s, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	match, err := s.Inspect(context.Background(), RequestContext{
		Path: "/",
		Header: map[string]string{
			"Cookie":        "__session=abc' or 'x'='x",
			"Authorization": "Bearer ../../secret",
		},
	})
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if match != nil {
		t.Errorf("Inspect() = %+v, want nil (credential headers excluded)", match)
	}
}

func TestInspect_CustomRuleMatch(t *testing.T) {
	t.Parallel()

	compiler := &stubCompiler{program: &stubProgram{matched: true}}
	s, err := New(compiler, []Rule{{ID: "r-1", Name: "block everything", Expression: "true"}})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	match, err := s.Inspect(context.Background(), RequestContext{Path: "/"})
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if match == nil {
		t.Fatal("Inspect() = nil, want custom rule match")
	}
	if match.RuleID != "r-1" {
		t.Errorf("RuleID = %q, want %q", match.RuleID, "r-1")
	}
}

func TestInspect_CustomRuleEvalError(t *testing.T) {
	t.Parallel()

	compiler := &stubCompiler{program: &stubProgram{err: errors.New("boom")}}
	s, err := New(compiler, []Rule{{ID: "r-1", Name: "broken", Expression: "true"}})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	_, err = s.Inspect(context.Background(), RequestContext{Path: "/"})
	if err == nil {
		t.Fatal("Inspect() expected error from failing rule, got nil")
	}
}

func TestNew_CompileErrorIsStartupError(t *testing.T) {
	t.Parallel()

	compiler := &stubCompiler{err: errors.New("syntax error")}
	_, err := New(compiler, []Rule{{ID: "r-1", Name: "bad", Expression: "not valid"}})
	if err == nil {
		t.Fatal("New() expected error for uncompilable rule, got nil")
	}
}

func TestInspect_BuiltinsRunBeforeCustomRules(t *testing.T) {
	t.Parallel()

	// A broken custom rule must not mask a builtin signature hit.
	compiler := &stubCompiler{program: &stubProgram{err: errors.New("boom")}}
	s, err := New(compiler, []Rule{{ID: "r-1", Name: "broken", Expression: "true"}})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	match, err := s.Inspect(context.Background(), RequestContext{Path: "/a/../../etc/passwd"})
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if match == nil || match.RuleID != SignaturePathTraversal {
		t.Errorf("match = %+v, want builtin path traversal", match)
	}
}
