package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/policyforge/decisionengine/internal/adapter/outbound/authdemo"
	"github.com/policyforge/decisionengine/internal/adapter/outbound/solver"
	"github.com/policyforge/decisionengine/internal/config"
	"github.com/policyforge/decisionengine/internal/domain/policy"
	"github.com/policyforge/decisionengine/internal/observability"
	outbound "github.com/policyforge/decisionengine/internal/port/outbound"
	"github.com/policyforge/decisionengine/internal/service/compiler"
	"github.com/policyforge/decisionengine/internal/service/router"
	"github.com/policyforge/decisionengine/internal/service/verifier"
)

var (
	decideFacts string
	decideMode  string
	decideDemo  bool
	decideWatch bool
)

var decideCmd = &cobra.Command{
	Use:   "decide <file>",
	Short: "Check facts against a policy document and print the decision",
	Long: `decide compiles a policy document, verifies --facts against it in
--mode hard (solver chooses the action) or --mode soft (verifies a
proposed action with one repair round-trip), and prints the resulting
decision record as JSON.

--demo-adapters wires the deterministic auth_v1 sample Proposer/Repair/
Explainer (internal/adapter/outbound/authdemo) for soft mode; without it,
soft mode always declines (no proposer configured).

--watch requires hot_reload: true in the active config and keeps the
process alive, printing a new decision record every time the policy
file changes on disk, until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDocument(args[0])
		if err != nil {
			return err
		}
		factory, err := compiler.Compile(doc)
		if err != nil {
			return fmt.Errorf("policy invalid: %w", err)
		}

		var facts policy.Facts
		if decideFacts != "" {
			if err := json.Unmarshal([]byte(decideFacts), &facts); err != nil {
				return fmt.Errorf("decode --facts: %w", err)
			}
		}

		mode := policy.Mode(decideMode)
		if mode != policy.ModeHard && mode != policy.ModeSoft {
			return fmt.Errorf("--mode must be %q or %q, got %q", policy.ModeHard, policy.ModeSoft, decideMode)
		}

		cfg, err := config.LoadConfigForPolicy(args[0])
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		tracerProvider, err := observability.NewProvider(os.Stderr, factory.ContentHash())
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer tracerProvider.Shutdown(context.Background())

		meterProvider, err := observability.NewMeterProvider(os.Stderr)
		if err != nil {
			return fmt.Errorf("init meter: %w", err)
		}
		defer meterProvider.Shutdown(context.Background())

		metrics := observability.NewMetrics(prometheus.NewRegistry())

		v := verifier.New(logger)
		v.Limits = solver.Limits{
			MaxBBNodes:      cfg.Solver.MaxBranchAndBoundNodes,
			MaxRounds:       solver.DefaultLimits().MaxRounds,
			MaxCoreResolves: cfg.Solver.MaxCoreResolves,
		}
		v.Tracer = tracerProvider

		var proposer outbound.Proposer
		var repair outbound.Repair
		var explainer outbound.Explainer
		if decideDemo {
			proposer = authdemo.Proposer{}
			repair = authdemo.Repair{}
			explainer = authdemo.Explainer{}
		}

		r := router.New(v, proposer, repair, explainer, metrics, meterProvider, tracerProvider, logger)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Solver.Deadline)
		defer cancel()

		rec := r.Decide(ctx, factory, facts, mode)
		if err := printDecision(rec); err != nil {
			return err
		}

		if !decideWatch {
			return nil
		}
		if !cfg.HotReload {
			return fmt.Errorf("--watch requires hot_reload: true in the active config")
		}

		first := true
		watcher, err := config.NewWatcher(args[0], func(p string) (any, error) {
			doc, err := loadDocument(p)
			if err != nil {
				return nil, err
			}
			return compiler.Compile(doc)
		}, func(val any, err error) {
			if first {
				first = false
				return
			}
			if err != nil {
				logger.Error("hot reload: policy reload failed", "error", err)
				return
			}
			f, ok := val.(*compiler.Factory)
			if !ok {
				return
			}
			rec := r.Decide(context.Background(), f, facts, mode)
			if err := printDecision(rec); err != nil {
				logger.Error("hot reload: encode decision record", "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("start hot reload watcher: %w", err)
		}
		watcher.Start()
		defer watcher.Stop()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		<-sigCh
		return nil
	},
}

func printDecision(rec policy.DecisionRecord) error {
	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode decision record: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func init() {
	decideCmd.Flags().StringVar(&decideFacts, "facts", "", "JSON object of per-request facts")
	decideCmd.Flags().StringVar(&decideMode, "mode", string(policy.ModeHard), "hard or soft")
	decideCmd.Flags().BoolVar(&decideDemo, "demo-adapters", false, "wire the auth_v1 demo Proposer/Repair/Explainer")
	decideCmd.Flags().BoolVar(&decideWatch, "watch", false, "keep re-deciding as the policy file changes on disk")
	rootCmd.AddCommand(decideCmd)
}
