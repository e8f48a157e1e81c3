// Package router implements the Decision Router (C5): it orchestrates hard
// and soft verification modes, a single repair round-trip, and assembles
// the user-visible policy.DecisionRecord.
package router

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/policyforge/decisionengine/internal/domain/policy"
	"github.com/policyforge/decisionengine/internal/observability"
	outbound "github.com/policyforge/decisionengine/internal/port/outbound"
	"github.com/policyforge/decisionengine/internal/service/compiler"
	"github.com/policyforge/decisionengine/internal/service/verifier"
)

// Router composes a Verifier with the pluggable C6 adapters. The zero value
// is not usable; build one with New.
type Router struct {
	Verifier  *verifier.Verifier
	Proposer  outbound.Proposer
	Repair    outbound.Repair
	Explainer outbound.Explainer
	Metrics   *observability.Metrics
	Meter     *observability.MeterProvider // optional OTel mirror of Metrics.DecisionsTotal
	Tracer    *observability.Provider
	Logger    *slog.Logger
}

// New wires a Router from its collaborators. Proposer/Repair/Explainer may
// be nil; soft mode without a Proposer always declines, and a nil Explainer
// yields an empty explanation rather than failing the request.
func New(v *verifier.Verifier, proposer outbound.Proposer, repair outbound.Repair, explainer outbound.Explainer, metrics *observability.Metrics, meter *observability.MeterProvider, tracer *observability.Provider, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{Verifier: v, Proposer: proposer, Repair: repair, Explainer: explainer, Metrics: metrics, Meter: meter, Tracer: tracer, Logger: logger}
}

// Decide implements spec.md §4.5: hard mode lets the solver choose the
// action; soft mode verifies an externally proposed action with at most one
// repair round-trip. The returned record's Decision is never empty.
func (r *Router) Decide(ctx context.Context, factory *compiler.Factory, facts policy.Facts, mode policy.Mode) policy.DecisionRecord {
	requestID := uuid.NewString()

	var span trace.Span
	if r.Tracer != nil {
		ctx, span = r.Tracer.StartDecideSpan(ctx, string(mode), requestID)
		defer span.End()
	}

	var rec policy.DecisionRecord
	switch mode {
	case policy.ModeSoft:
		rec = r.decideSoft(ctx, factory, facts)
	default:
		rec = r.decideHard(ctx, factory, facts)
	}

	if span != nil {
		observability.RecordOutcome(span, rec.Decision, nil)
	}
	if r.Metrics != nil {
		r.Metrics.DecisionsTotal.WithLabelValues(rec.Decision, string(mode)).Inc()
	}
	r.Meter.RecordDecision(ctx, rec.Decision, string(mode))
	r.Logger.Info("decisionengine: decision", "request_id", requestID, "decision", rec.Decision, "mode", mode, "policy_version", rec.PolicyVersion)
	return rec
}

func (r *Router) decideHard(ctx context.Context, factory *compiler.Factory, facts policy.Facts) policy.DecisionRecord {
	res, err := r.Verifier.Check(ctx, factory, facts, "")
	if err != nil {
		return r.declineRecord(factory, facts, policy.Proof{Solver: r.Verifier.SolverName}, err.Error())
	}
	proof := proofFromResult(r.Verifier.SolverName, res)
	decision := string(policy.DeclineDecision)
	if res.Satisfiable && res.HasChosenAction {
		decision = res.ChosenAction
	}
	return r.assemble(decision, factory, facts, proof, "")
}

func (r *Router) decideSoft(ctx context.Context, factory *compiler.Factory, facts policy.Facts) policy.DecisionRecord {
	if r.Proposer == nil {
		return r.declineRecord(factory, facts, policy.Proof{Solver: r.Verifier.SolverName}, "no proposer configured")
	}
	proposal, err := r.Proposer.Propose(facts)
	if err != nil {
		r.recordAdapterFailure("proposer")
		return r.declineRecord(factory, facts, policy.Proof{Solver: r.Verifier.SolverName}, (&policy.AdapterError{Adapter: "proposer", Err: err}).Error())
	}

	res, err := r.Verifier.Check(ctx, factory, facts, proposal.ProposedAction)
	if err != nil {
		return r.declineRecord(factory, facts, policy.Proof{Solver: r.Verifier.SolverName}, err.Error())
	}
	if res.Satisfiable {
		proof := proofFromResult(r.Verifier.SolverName, res)
		return r.assemble(proposal.ProposedAction, factory, facts, proof, proposal.Justification)
	}

	if r.Repair == nil {
		proof := proofFromResult(r.Verifier.SolverName, res)
		return r.assemble(string(policy.DeclineDecision), factory, facts, proof, "")
	}
	if r.Metrics != nil {
		r.Metrics.RepairsTotal.Inc()
	}
	repaired, err := r.Repair.Repair(proposal, res.UnsatCore, facts, nil)
	if err != nil {
		r.recordAdapterFailure("repair")
		proof := proofFromResult(r.Verifier.SolverName, res)
		adapterErr := (&policy.AdapterError{Adapter: "repair", Err: err}).Error()
		rec := r.assemble(string(policy.DeclineDecision), factory, facts, proof, adapterErr)
		if !strings.Contains(rec.Explanation, adapterErr) {
			rec.Explanation = strings.TrimSpace(rec.Explanation + " " + adapterErr)
		}
		return rec
	}

	res2, err := r.Verifier.Check(ctx, factory, facts, repaired.ProposedAction)
	if err != nil {
		return r.declineRecord(factory, facts, policy.Proof{Solver: r.Verifier.SolverName}, err.Error())
	}
	proof := proofFromResult(r.Verifier.SolverName, res2)
	if res2.Satisfiable {
		return r.assemble(repaired.ProposedAction, factory, facts, proof, repaired.Justification)
	}
	return r.assemble(string(policy.DeclineDecision), factory, facts, proof, "")
}

func (r *Router) recordAdapterFailure(adapter string) {
	if r.Metrics != nil {
		r.Metrics.AdapterFailures.WithLabelValues(adapter).Inc()
	}
}

func proofFromResult(solverName string, res verifier.Result) policy.Proof {
	model := res.Model
	if model == nil {
		model = map[string]any{}
	}
	unsatCore := res.UnsatCore
	if unsatCore == nil {
		unsatCore = []string{}
	}
	checked := res.CheckedInvariants
	if checked == nil {
		checked = []string{}
	}
	return policy.Proof{
		Solver:            solverName,
		Satisfiable:       res.Satisfiable,
		Model:             model,
		CheckedInvariants: checked,
		UnsatCore:         unsatCore,
	}
}

func (r *Router) assemble(decision string, factory *compiler.Factory, facts policy.Facts, proof policy.Proof, justification string) policy.DecisionRecord {
	explanation := ""
	if r.Explainer != nil {
		exp, err := r.Explainer.Explain(decision, facts, proof, justification)
		if err != nil {
			r.recordAdapterFailure("explainer")
		} else {
			explanation = exp
		}
	}
	return policy.DecisionRecord{
		Decision:      decision,
		PolicyVersion: factory.PolicyID(),
		Proof:         proof,
		Explanation:   explanation,
	}
}

func (r *Router) declineRecord(factory *compiler.Factory, facts policy.Facts, proof policy.Proof, explanation string) policy.DecisionRecord {
	proof.Model = map[string]any{}
	proof.UnsatCore = []string{}
	proof.CheckedInvariants = []string{}
	return policy.DecisionRecord{
		Decision:      string(policy.DeclineDecision),
		PolicyVersion: factory.PolicyID(),
		Proof:         proof,
		Explanation:   explanation,
	}
}
