package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/ward/internal/config"
	"github.com/bamsammich/ward/internal/engine"
	"github.com/bamsammich/ward/internal/event"
	"github.com/bamsammich/ward/internal/filter"
	"github.com/bamsammich/ward/internal/report"
	"github.com/bamsammich/ward/internal/ui"
)

var version = "dev"

// Exit codes. 130 matches the shell convention for SIGINT.
const (
	exitOK           = 0
	exitPartial      = 1
	exitPrecondition = 2
	exitCancelled    = 130
)

func main() {
	os.Exit(run())
}

// filterFlag is a custom pflag.Value that preserves CLI ordering of
// --exclude and --include rules by appending to a shared filter.Chain.
type filterFlag struct {
	chain   *filter.Chain
	include bool
}

var _ pflag.Value = (*filterFlag)(nil)

func (*filterFlag) String() string { return "" }
func (*filterFlag) Type() string   { return "string" }

func (f *filterFlag) Set(val string) error {
	if f.include {
		return f.chain.AddInclude(val)
	}
	return f.chain.AddExclude(val)
}

// cliOptions holds every flag shared between the subcommands.
type cliOptions struct {
	workers    int
	verbose    bool
	quiet      bool
	dryRun     bool
	includeGit bool
	sealDirs   bool
	crossMount bool
	forceFeed  bool
	forceRate  bool
	noProgress bool
	filterFile string
	minSizeStr string
	maxSizeStr string
	minFreeStr string
	logFile    string

	chain *filter.Chain
}

//nolint:gocyclo // main CLI entry point orchestrates all flag parsing
func run() int {
	var showVersion bool
	opts := &cliOptions{chain: filter.NewChain()}

	rootCmd := &cobra.Command{
		Use:           "ward",
		Short:         "Seal directory trees with the filesystem immutable attribute",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				fmt.Fprintf(os.Stdout, "ward %s\n", version)
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")

	pf := rootCmd.PersistentFlags()
	pf.IntVarP(&opts.workers, "workers", "n", 0, "number of toggle workers (default: min(NumCPU, 8))")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress all output except errors")
	pf.BoolVar(&opts.includeGit, "include-git", false, "descend into .git directories (skipped by default)")
	pf.BoolVar(&opts.forceFeed, "feed", false, "force feed mode (one line per file)")
	pf.BoolVar(&opts.forceRate, "rate", false, "force rate mode (sparkline + files/s)")
	pf.BoolVar(&opts.noProgress, "no-progress", false, "disable progress display")
	pf.VarP(&filterFlag{chain: opts.chain, include: false}, "exclude", "", "exclude files matching PATTERN (repeatable)")
	pf.VarP(&filterFlag{chain: opts.chain, include: true}, "include", "", "include files matching PATTERN (repeatable)")
	pf.StringVar(&opts.filterFile, "filter", "", "read filter rules from FILE")
	pf.StringVar(&opts.minSizeStr, "min-size", "", "skip files smaller than SIZE (e.g. 1M, 100K)")
	pf.StringVar(&opts.maxSizeStr, "max-size", "", "skip files larger than SIZE (e.g. 1G, 500M)")
	pf.StringVar(&opts.logFile, "log", "", "write structured JSON log to FILE")

	sealCmd := &cobra.Command{
		Use:   "seal <dir>",
		Short: "Set the immutable attribute on every eligible file under <dir>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToggle(cmd, args[0], engine.Seal, opts)
		},
	}
	sealCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "show what would change without toggling")
	sealCmd.Flags().BoolVar(&opts.sealDirs, "seal-dirs", false, "also seal directories themselves")
	sealCmd.Flags().StringVar(&opts.minFreeStr, "min-free", "", "abort unless the mount has at least SIZE free (e.g. 1G)")

	unsealCmd := &cobra.Command{
		Use:   "unseal <dir>",
		Short: "Clear the immutable attribute on every eligible file under <dir>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToggle(cmd, args[0], engine.Unseal, opts)
		},
	}
	unsealCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "show what would change without toggling")
	unsealCmd.Flags().BoolVar(&opts.sealDirs, "seal-dirs", false, "also unseal directories themselves")
	unsealCmd.Flags().BoolVar(&opts.crossMount, "cross-mount", false, "descend into nested mounts (unseal only)")

	statusCmd := &cobra.Command{
		Use:   "status <dir>",
		Short: "Report how much of the tree is sealed, without changing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, args[0], opts)
		},
	}

	var listMutable bool
	listCmd := &cobra.Command{
		Use:   "list <dir>",
		Short: "List every sealed file under <dir>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, args[0], opts, !listMutable)
		},
	}
	listCmd.Flags().BoolVar(&listMutable, "mutable", false, "list mutable files instead of sealed ones")

	rootCmd.AddCommand(sealCmd, unsealCmd, statusCmd, listCmd, docsCmd)

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitPrecondition
	}

	return exitOK
}

// setupLogging installs the default slog logger: human-readable text on
// stderr, plus a JSON tee to --log when set. The returned closer owns the
// log file handle.
func setupLogging(opts *cliOptions) (func(), error) {
	logLevel := slog.LevelWarn
	if opts.verbose {
		logLevel = slog.LevelDebug
	} else if !opts.quiet {
		logLevel = slog.LevelInfo
	}

	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	var handler slog.Handler = textHandler
	closer := func() {}

	if opts.logFile != "" {
		lf, err := os.Create(opts.logFile)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		closer = func() { lf.Close() }
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
		handler = ui.NewMultiHandler(textHandler, jsonHandler)
	}

	logger := slog.New(handler).With("run_id", uuid.NewString())
	slog.SetDefault(logger)
	return closer, nil
}

// buildFilter finishes the shared chain from --filter and the size flags.
func buildFilter(opts *cliOptions) (*filter.Chain, error) {
	if opts.filterFile != "" {
		if err := opts.chain.LoadFile(opts.filterFile); err != nil {
			return nil, fmt.Errorf("load filter file: %w", err)
		}
	}
	if opts.minSizeStr != "" {
		n, err := filter.ParseSize(opts.minSizeStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --min-size: %w", err)
		}
		opts.chain.SetMinSize(n)
	}
	if opts.maxSizeStr != "" {
		n, err := filter.ParseSize(opts.maxSizeStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --max-size: %w", err)
		}
		opts.chain.SetMaxSize(n)
	}
	if opts.chain.Empty() {
		return nil, nil
	}
	return opts.chain, nil
}

// applyConfigDefaults applies config file defaults for flags not
// explicitly set on the CLI.
func applyConfigDefaults(cmd *cobra.Command, defaults config.DefaultsConfig, opts *cliOptions) {
	flags := cmd.Flags()
	if !flags.Changed("workers") && defaults.Workers != nil {
		opts.workers = *defaults.Workers
	}
	if !flags.Changed("seal-dirs") && defaults.SealDirs != nil {
		opts.sealDirs = *defaults.SealDirs
	}
	if !flags.Changed("include-git") && defaults.IncludeGit != nil {
		opts.includeGit = *defaults.IncludeGit
	}
	if !flags.Changed("min-free") && defaults.MinFree != nil {
		opts.minFreeStr = *defaults.MinFree
	}
	if !flags.Changed("no-progress") && defaults.NoProgress != nil {
		opts.noProgress = *defaults.NoProgress
	}
}

func runToggle(cmd *cobra.Command, root string, direction engine.Direction, opts *cliOptions) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config", "error", err)
	}
	applyConfigDefaults(cmd, cfg.Defaults, opts)

	closeLog, err := setupLogging(opts)
	if err != nil {
		return err
	}
	defer closeLog()

	chain, err := buildFilter(opts)
	if err != nil {
		return err
	}

	var minFree int64
	if opts.minFreeStr != "" {
		minFree, err = filter.ParseSize(opts.minFreeStr)
		if err != nil {
			return fmt.Errorf("invalid --min-free: %w", err)
		}
	}

	if opts.dryRun {
		slog.Info("dry run mode")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := report.NewCollector()
	events := make(chan event.Event, 256)

	// When --log is set, tee events through a logging goroutine that
	// writes structured records before forwarding to the presenter.
	presenterEvents := (<-chan event.Event)(events)
	if opts.logFile != "" {
		teed := make(chan event.Event, 256)
		go func() {
			for ev := range events {
				attrs := []slog.Attr{
					slog.String("type", ev.Type.String()),
					slog.String("path", ev.Path),
					slog.Int("worker", ev.WorkerID),
				}
				if ev.Reason != report.ReasonNone {
					attrs = append(attrs, slog.String("reason", ev.Reason.String()))
				}
				if ev.Error != nil {
					attrs = append(attrs, slog.String("error", ev.Error.Error()))
				}
				slog.LogAttrs(context.Background(), slog.LevelInfo, "ward.event", attrs...)
				teed <- ev
			}
			close(teed)
		}()
		presenterEvents = teed
	}

	verb := "sealed"
	if direction == engine.Unseal {
		verb = "unsealed"
	}

	presenter := ui.NewPresenter(ui.Config{
		Writer:     os.Stdout,
		ErrWriter:  os.Stderr,
		Report:     collector,
		Theme:      ui.ThemeFromConfig(cfg.Theme),
		Verb:       verb,
		Workers:    opts.workers,
		IsTTY:      ui.IsTTY(os.Stderr.Fd()),
		Quiet:      opts.quiet,
		Verbose:    opts.verbose,
		ForceFeed:  opts.forceFeed,
		ForceRate:  opts.forceRate,
		NoProgress: opts.noProgress,
	})

	var presenterErr error
	var presenterWg sync.WaitGroup
	presenterWg.Add(1)
	go func() {
		defer presenterWg.Done()
		presenterErr = presenter.Run(presenterEvents)
	}()

	result := engine.Run(ctx, engine.Config{
		Root:       root,
		Direction:  direction,
		Workers:    opts.workers,
		SealDirs:   opts.sealDirs,
		CrossMount: opts.crossMount,
		DryRun:     opts.dryRun,
		IncludeGit: opts.includeGit,
		MinFree:    minFree,
		Filter:     chain,
		Events:     events,
		Report:     collector,
	})
	stop()
	close(events)
	presenterWg.Wait()
	if presenterErr != nil {
		fmt.Fprintf(os.Stderr, "presenter: %v\n", presenterErr)
	}

	if !opts.quiet {
		if summary := presenter.Summary(); summary != "" {
			fmt.Fprintln(os.Stderr, summary)
		}
	}

	return exitFor(result)
}

// exitFor maps a run outcome onto the process exit code.
func exitFor(result engine.Result) error {
	switch result.Status {
	case engine.Aborted:
		slog.Error("run aborted", "error", result.Err)
		return &exitError{code: exitPrecondition}
	case engine.Cancelled:
		slog.Warn("run cancelled", "processed", result.Report.Processed())
		return &exitError{code: exitCancelled}
	}

	if result.Report.Failed > 0 {
		for _, f := range result.Report.Failures {
			slog.Warn("entry failed", "path", f.Path, "error", f.Err)
		}
		return &exitError{code: exitPartial}
	}
	return nil
}

// survey runs the shared read-only pass behind status and list.
func survey(cmd *cobra.Command, root string, opts *cliOptions, onFile func(rel string, immutable bool)) (engine.SurveyResult, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config", "error", err)
	}
	applyConfigDefaults(cmd, cfg.Defaults, opts)

	closeLog, err := setupLogging(opts)
	if err != nil {
		return engine.SurveyResult{}, err
	}
	defer closeLog()

	chain, err := buildFilter(opts)
	if err != nil {
		return engine.SurveyResult{}, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := engine.Survey(ctx, engine.SurveyConfig{
		Root:       root,
		Workers:    opts.workers,
		IncludeGit: opts.includeGit,
		Filter:     chain,
		OnFile:     onFile,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return result, &exitError{code: exitCancelled}
		}
		slog.Error("survey failed", "error", err)
		return result, &exitError{code: exitPrecondition}
	}
	if result.Errors > 0 {
		fmt.Fprintf(os.Stderr, "%d files could not be read\n", result.Errors)
		return result, &exitError{code: exitPartial}
	}
	return result, nil
}

func runStatus(cmd *cobra.Command, root string, opts *cliOptions) error {
	result, err := survey(cmd, root, opts, nil)
	if err != nil {
		return err
	}

	if !opts.quiet {
		fmt.Fprintf(os.Stdout, "sealed %s / %s files  dirs %s  links %s  special %s\n",
			ui.FormatCount(result.Immutable),
			ui.FormatCount(result.Files()),
			ui.FormatCount(result.Dirs),
			ui.FormatCount(result.Links),
			ui.FormatCount(result.Specials),
		)
	}
	return nil
}

func runList(cmd *cobra.Command, root string, opts *cliOptions, wantSealed bool) error {
	_, err := survey(cmd, root, opts, func(rel string, immutable bool) {
		if immutable == wantSealed {
			fmt.Fprintln(os.Stdout, rel)
		}
	})
	return err
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
