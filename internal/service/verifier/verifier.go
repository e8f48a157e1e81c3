// Package verifier implements the Verifier (C4): it drives the compiled
// factory's solver problem, interprets sat/unsat (folding solver timeouts
// and "unknown" into unsat per spec.md §4.4/§4.7), and extracts either a
// model or a named unsat core.
package verifier

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/policyforge/decisionengine/internal/adapter/outbound/solver"
	"github.com/policyforge/decisionengine/internal/observability"
	"github.com/policyforge/decisionengine/internal/service/compiler"
)

// Result is the verifier's outcome for one check call.
type Result struct {
	Satisfiable       bool
	ChosenAction      string
	HasChosenAction   bool
	Model             map[string]any
	CheckedInvariants []string
	UnsatCore         []string
}

// Verifier checks facts against a compiled policy.Factory. It holds no
// per-request state; a single Verifier is shared across concurrent calls.
type Verifier struct {
	SolverName string // stamped into the decision record's proof; "z3" by historical default
	Limits     solver.Limits
	Logger     *slog.Logger
	Tracer     *observability.Provider // optional; nil skips span creation
}

// New builds a Verifier with the engine's documented defaults.
func New(logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{SolverName: "z3", Limits: solver.DefaultLimits(), Logger: logger}
}

// Check runs one (facts, forced_action?) verification against factory,
// respecting ctx's deadline: if ctx is already done before the solver
// returns, the outcome is treated as unsat with an empty core, matching
// spec.md §4.4's unknown-verdict handling, and is logged.
func (v *Verifier) Check(ctx context.Context, factory *compiler.Factory, facts map[string]any, forcedAction string) (Result, error) {
	if v.Tracer != nil {
		var span trace.Span
		ctx, span = v.Tracer.StartCheckSpan(ctx)
		defer span.End()
	}

	prob, meta, err := factory.Build(facts, forcedAction)
	if err != nil {
		return Result{}, err
	}
	prob.Limits = v.Limits

	type outcome struct {
		res *solver.Result
	}
	done := make(chan outcome, 1)
	go func() {
		done <- outcome{res: prob.Solve(prob.Names)}
	}()

	select {
	case <-ctx.Done():
		v.Logger.Warn("verifier: solver deadline exceeded, treating as unsat", "policy_id", factory.PolicyID())
		return Result{
			Satisfiable:       false,
			CheckedInvariants: meta.Invariants,
			UnsatCore:         nil,
		}, nil
	case o := <-done:
		return v.interpret(prob, meta, o.res), nil
	}
}

func (v *Verifier) interpret(prob *solver.Problem, meta *compiler.Meta, res *solver.Result) Result {
	if res == nil {
		v.Logger.Warn("verifier: solver returned unknown, treating as unsat")
		return Result{Satisfiable: false, CheckedInvariants: meta.Invariants}
	}
	if !res.Satisfiable {
		return Result{
			Satisfiable:       false,
			CheckedInvariants: meta.Invariants,
			UnsatCore:         prob.UnsatCore(),
		}
	}

	model := make(map[string]any, len(meta.Vars))
	for _, name := range meta.Vars {
		if val, ok := meta.ValOf(res.Model, name); ok {
			model[name] = val
		}
	}
	action, hasAction := meta.ChosenAction(res.Model)
	return Result{
		Satisfiable:       true,
		ChosenAction:      action,
		HasChosenAction:   hasAction,
		Model:             model,
		CheckedInvariants: meta.Invariants,
		UnsatCore:         nil,
	}
}
