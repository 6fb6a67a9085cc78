// Command conductor runs a plan tree to completion against a durable
// execution log: `conductor run <plan-path> [flags]`.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conductor-run/conductor/agents/runtime/telemetry"
	"github.com/conductor-run/conductor/config"
	"github.com/conductor-run/conductor/effect"
	"github.com/conductor-run/conductor/engine"
	"github.com/conductor-run/conductor/plan"
	"github.com/conductor-run/conductor/policy"
	"github.com/conductor-run/conductor/ratelimit"
	"github.com/conductor-run/conductor/store"
	"github.com/conductor-run/conductor/supervisor"

	_ "github.com/conductor-run/conductor/supervisor/kind/amp"
	_ "github.com/conductor-run/conductor/supervisor/kind/claude"
	_ "github.com/conductor-run/conductor/supervisor/kind/codex"
	_ "github.com/conductor-run/conductor/supervisor/kind/opencode"
	_ "github.com/conductor-run/conductor/supervisor/kind/pi"
)

// Exit codes: 0 success, 1 execution failed, 2 bad usage, 130 cancelled.
const (
	exitOK        = 0
	exitFailed    = 1
	exitBadUsage  = 2
	exitCancelled = 130
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCommand()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if errors.Is(err, errBadUsage) {
			return exitBadUsage
		}
		if errors.Is(err, context.Canceled) {
			return exitCancelled
		}
		return exitFailed
	}
	return exitOK
}

var errBadUsage = errors.New("conductor: bad usage")

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "conductor",
		Short:         "Run agent-orchestration plans to completion against a durable log",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newRunCommand())
	return cmd
}

type runFlags struct {
	configPath       string
	mock             bool
	maxIterations    int
	concurrencyLimit int
	targetBranch     string
	mergeMethod      string
	sequential       bool
	skipRebase       bool
	logLevel         string
	dbPath           string
}

func newRunCommand() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run <plan-path>",
		Short: "Reconcile and dispatch a plan tree to completion",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: expected exactly one plan path argument", errBadUsage)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, args[0], f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "path to a YAML config file")
	flags.BoolVar(&f.mock, "mock", false, "bypass spawning agent processes; stub successful results")
	flags.IntVar(&f.maxIterations, "max-iterations", 0, "reconciliation passes per run (0 = config/default)")
	flags.IntVar(&f.concurrencyLimit, "concurrency-limit", 0, "max concurrent dispatches inside a parallel node (0 = config/default)")
	flags.StringVar(&f.targetBranch, "target-branch", "", "branch effect handlers merge completed work into")
	flags.StringVar(&f.mergeMethod, "merge-method", "", "merge|squash|rebase")
	flags.BoolVar(&f.sequential, "sequential", false, "force parallel groups to run sequentially")
	flags.BoolVar(&f.skipRebase, "skip-rebase", false, "skip rebasing worktrees onto target-branch before merge")
	flags.StringVar(&f.logLevel, "log-level", "", "debug|info|warn|error")
	flags.StringVar(&f.dbPath, "db", "", "path to the execution log sqlite file")

	return cmd
}

func runPlan(cmd *cobra.Command, planPath string, f runFlags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg, f)

	if mergeMethod := cfg.MergeMethod; mergeMethod != "merge" && mergeMethod != "squash" && mergeMethod != "rebase" {
		return fmt.Errorf("%w: --merge-method must be one of merge, squash, rebase, got %q", errBadUsage, mergeMethod)
	}

	root, err := plan.LoadFile(planPath)
	if err != nil {
		return fmt.Errorf("%w: %s", errBadUsage, err)
	}

	logger := newLogger(cfg.LogLevel)

	s, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("conductor: open store: %w", err)
	}
	defer func() { _ = s.Close() }()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := s.Open(ctx); err != nil {
		return fmt.Errorf("conductor: migrate store: %w", err)
	}

	sup := supervisor.New(supervisor.Options{Logger: logger})
	governor := ratelimit.New(ratelimit.Options{Logger: logger})

	// A host embedding conductor for real git/VCS/review integrations
	// builds effect.NewRegistry() and installs its own Handlers; this CLI
	// ships the reference no-op set for every mode, so --mock and real runs
	// only differ in agent dispatch, not effect handling.
	effects := effect.NewMockRegistry()

	eng := engine.New(engine.Options{
		Store:            s,
		Supervisor:       sup,
		Governor:         governor,
		Effects:          effects,
		Policy:           policy.AllowAll,
		Logger:           logger,
		MaxIterations:    cfg.MaxIterations,
		ConcurrencyLimit: effectiveConcurrency(cfg),
		Mock:             cfg.Mock,
	})

	result, err := eng.Run(ctx, engine.RunInput{PlanPath: planPath, Root: root})
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return context.Canceled
		}
		return fmt.Errorf("conductor: run %s: %w", planPath, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "execution %s: %s\n", result.ExecutionID, result.Status)
	if result.Status != store.ExecutionCompleted {
		return fmt.Errorf("conductor: execution ended with status %s", result.Status)
	}
	return nil
}

func effectiveConcurrency(cfg *config.Config) int {
	if cfg.Sequential {
		return 1
	}
	return cfg.ConcurrencyLimit
}

func applyFlagOverrides(cfg *config.Config, f runFlags) {
	if f.mock {
		cfg.Mock = true
	}
	if f.maxIterations > 0 {
		cfg.MaxIterations = f.maxIterations
	}
	if f.concurrencyLimit > 0 {
		cfg.ConcurrencyLimit = f.concurrencyLimit
	}
	if f.targetBranch != "" {
		cfg.TargetBranch = f.targetBranch
	}
	if f.mergeMethod != "" {
		cfg.MergeMethod = f.mergeMethod
	}
	if f.sequential {
		cfg.Sequential = true
	}
	if f.skipRebase {
		cfg.SkipRebase = true
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.dbPath != "" {
		cfg.DBPath = f.dbPath
	}
}

func newLogger(level string) telemetry.Logger {
	zapCfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		zapCfg.Level = lvl
	}
	z, err := zapCfg.Build()
	if err != nil {
		z = zap.NewNop()
	}
	return telemetry.NewZapLogger(z)
}
