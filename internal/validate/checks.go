package validate

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// CheckEngine evaluates operator-defined CEL expressions against a profile.
// Checks return bool; a false result attaches the check's message as a
// validation warning. Checks never block a save.
type CheckEngine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*compiledCheck
}

type compiledCheck struct {
	cfg     domain.CheckConfig
	program cel.Program
}

// NewCheckEngine creates a check engine with the profile variables bound.
func NewCheckEngine() (*CheckEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("median_amount", cel.DoubleType),
		cel.Variable("mean_amount", cel.DoubleType),
		cel.Variable("std_amount", cel.DoubleType),
		cel.Variable("p95_amount", cel.DoubleType),
		cel.Variable("p99_amount", cel.DoubleType),
		cel.Variable("min_amount", cel.DoubleType),
		cel.Variable("max_amount", cel.DoubleType),
		cel.Variable("median_velocity_24h", cel.DoubleType),
		cel.Variable("p95_velocity_24h", cel.DoubleType),
		cel.Variable("baseline_fraud_rate", cel.DoubleType),
		cel.Variable("transaction_count", cel.IntType),
		cel.Variable("unique_senders", cel.IntType),
		cel.Variable("unique_beneficiaries", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &CheckEngine{
		env:      env,
		compiled: make(map[string]*compiledCheck),
	}, nil
}

// LoadChecks compiles and installs a set of checks, replacing any previously
// loaded set. A compile failure leaves the current set untouched.
func (e *CheckEngine) LoadChecks(configs []domain.CheckConfig) error {
	fresh := make(map[string]*compiledCheck, len(configs))
	for _, cfg := range configs {
		compiled, err := e.compileCheck(cfg)
		if err != nil {
			return err
		}
		fresh[cfg.ID] = compiled
	}

	e.mu.Lock()
	e.compiled = fresh
	e.mu.Unlock()
	return nil
}

// ChecksCount returns the number of loaded checks.
func (e *CheckEngine) ChecksCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Evaluate runs all loaded checks against a profile and returns a warning for
// each check that fails. An evaluation error also surfaces as a warning.
func (e *CheckEngine) Evaluate(profile *domain.CorridorProfile) []string {
	e.mu.RLock()
	checks := make([]*compiledCheck, 0, len(e.compiled))
	for _, c := range e.compiled {
		checks = append(checks, c)
	}
	e.mu.RUnlock()

	if len(checks) == 0 {
		return nil
	}

	activation := map[string]any{
		"median_amount":        profile.MedianAmount,
		"mean_amount":          profile.MeanAmount,
		"std_amount":           profile.StdAmount,
		"p95_amount":           profile.P95Amount,
		"p99_amount":           profile.P99Amount,
		"min_amount":           profile.MinAmount,
		"max_amount":           profile.MaxAmount,
		"median_velocity_24h":  profile.MedianVelocity24h,
		"p95_velocity_24h":     profile.P95Velocity24h,
		"baseline_fraud_rate":  profile.BaselineFraudRate,
		"transaction_count":    profile.TransactionCount,
		"unique_senders":       profile.UniqueSenders,
		"unique_beneficiaries": profile.UniqueBeneficiaries,
	}

	var warnings []string
	for _, check := range checks {
		out, _, err := check.program.Eval(activation)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("check %s failed to evaluate: %v", check.cfg.ID, err))
			continue
		}
		if passed, ok := out.(types.Bool); ok && !bool(passed) {
			warnings = append(warnings, check.cfg.Message)
		}
	}
	return warnings
}

func (e *CheckEngine) compileCheck(cfg domain.CheckConfig) (*compiledCheck, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile check %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("check %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for check %s: %w", cfg.ID, err)
	}

	return &compiledCheck{cfg: cfg, program: program}, nil
}
