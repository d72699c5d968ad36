package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zigrin-security/cakefuzzer/internal/execution"
	"github.com/zigrin-security/cakefuzzer/internal/introspect"
	"github.com/zigrin-security/cakefuzzer/internal/llm"
	"github.com/zigrin-security/cakefuzzer/internal/reporter"
	"github.com/zigrin-security/cakefuzzer/internal/runner"
	"github.com/zigrin-security/cakefuzzer/internal/scenario"
	"github.com/zigrin-security/cakefuzzer/pkg/types"
)

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Run a single execution",
	Long: `Read one execution configuration as JSON (from --input or stdin), replay its
accesses against the instrumented inputs and print the execution result as JSON.`,
	RunE: runExec,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run attack strategies",
	Long: `Load attack strategy definitions, expand them into scenarios (one per path and
payload) and run every scenario for a number of iterations on a worker pool.`,
	RunE: runRun,
}

func init() {
	execCmd.Flags().StringP("input", "i", "", "Execution config file (default stdin)")
	execCmd.Flags().Int64("seed", 0, "Random seed (0 = time based)")
	execCmd.Flags().String("access-log", "", "Write every decision to this JSON file")

	runCmd.Flags().StringP("scenarios", "s", "", "Directory or file with strategy definitions")
	runCmd.Flags().StringSlice("paths", []string{}, "Path templates to attack (comma-separated)")
	runCmd.Flags().String("openapi", "", "OpenAPI document to read path templates from")
	runCmd.Flags().IntP("iterations", "n", 0, "Executions per scenario")
	runCmd.Flags().Int("concurrency", 0, "Number of concurrent executions")
	runCmd.Flags().Float64("rate-limit", 0, "Executions per second (0 = unlimited)")
	runCmd.Flags().Duration("timeout", 0, "Timeout of one execution")
	runCmd.Flags().Int64("seed", 0, "Random seed (0 = time based)")
	runCmd.Flags().Int("suggest", 0, "Ask the LLM provider for this many extra payloads per strategy")

	runCmd.Flags().StringP("output", "o", "", "Output file path (text format prints to stdout if not specified)")
	runCmd.Flags().StringP("format", "f", "", "Output format (json, text, markdown)")
	runCmd.Flags().String("access-log", "", "Write every decision to this JSON file")
	runCmd.Flags().Bool("verbose", false, "List every execution in text reports")
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			printWarning("Interrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

func runExec(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	var in io.Reader = os.Stdin
	if path, _ := cmd.Flags().GetString("input"); path != "" {
		if err := types.ValidateInputFile(path); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var cfg types.ExecutionConfig
	if err := json.NewDecoder(in).Decode(&cfg); err != nil {
		return fmt.Errorf("failed to parse execution config: %w", err)
	}
	if seed, _ := cmd.Flags().GetInt64("seed"); seed != 0 {
		cfg.Seed = seed
	}

	opts := []execution.Option{execution.WithLogger(logger)}
	accessLogPath, _ := cmd.Flags().GetString("access-log")
	accessLog, err := reporter.NewAccessLogger(accessLogPath)
	if err != nil {
		return err
	}
	defer accessLog.Close()
	if accessLogPath != "" {
		opts = append(opts, execution.WithAccessSink(accessLog))
	}

	exec, err := execution.New(&cfg, opts...)
	if err != nil {
		return err
	}

	if config.Run.Timeout > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, config.Run.Timeout)
		defer timeoutCancel()
	}

	result, runErr := exec.Run(ctx, execution.NewScript(cfg.Accesses))
	if result == nil {
		return runErr
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return runErr
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	updateConfigFromFlags(cmd)
	if err := types.ValidateConfig(config); err != nil {
		return err
	}

	if config.Run.Scenarios == "" {
		return fmt.Errorf("no strategies specified. Use --scenarios or set run.scenarios")
	}

	printBanner()

	strategies, err := scenario.Load(config.Run.Scenarios)
	if err != nil {
		return fmt.Errorf("failed to load strategies: %w", err)
	}
	printInfo("Loaded %d strategies from %s", len(strategies), config.Run.Scenarios)

	paths, err := collectPaths(ctx, cmd)
	if err != nil {
		return err
	}

	if n, _ := cmd.Flags().GetInt("suggest"); n > 0 {
		suggestForStrategies(ctx, strategies, n)
	}

	scenarios := scenario.Expand(strategies, paths, config.Run.Iterations)
	if len(scenarios) == 0 {
		return fmt.Errorf("no scenarios to run. Strategies without paths need --paths or --openapi")
	}

	seed, _ := cmd.Flags().GetInt64("seed")
	var jobs []runner.Job
	for _, sc := range scenarios {
		cfg := sc.Config(config.Execution)
		cfg.Seed = seed
		jobs = append(jobs, runner.Repeat(sc.Name(), cfg, execution.NewScript(cfg.Accesses), sc.Iterations)...)
	}
	printInfo("Expanded into %d scenarios, %d executions", len(scenarios), len(jobs))

	accessLog, err := reporter.NewAccessLogger(config.Output.AccessLog)
	if err != nil {
		return err
	}
	defer accessLog.Close()

	opts := runner.Options{
		Concurrency: config.Run.Concurrency,
		RateLimit:   config.Run.RateLimit,
		Timeout:     config.Run.Timeout,
		Logger:      logger,
	}
	if config.Output.AccessLog != "" {
		opts.Sink = accessLog
	}
	r := runner.New(opts)

	printInfo("Starting run...")
	startTime := time.Now()

	executions := make([]types.ExecutionResult, 0, len(jobs))
	for res := range r.Run(ctx, jobs) {
		executions = append(executions, *res.Execution)
		if len(executions)%100 == 0 {
			printProgress(len(executions), len(jobs))
		}
	}
	if len(executions) >= 100 {
		fmt.Fprintln(os.Stderr)
	}

	endTime := time.Now()
	result := &types.RunResult{
		RunID:      uuid.New().String(),
		StartTime:  startTime,
		EndTime:    endTime,
		Duration:   endTime.Sub(startTime),
		Executions: executions,
		Summary:    types.NewRunSummary(executions),
		Config: &types.RunConfig{
			Scenarios:   config.Run.Scenarios,
			Iterations:  config.Run.Iterations,
			Concurrency: config.Run.Concurrency,
			RateLimit:   config.Run.RateLimit,
			Timeout:     int(config.Run.Timeout.Seconds()),
			Provider:    config.Provider.Name,
		},
	}

	stats := r.GetStats()
	logger.Info("run finished", "executions", stats.SuccessCount+stats.ErrorCount, "errors", stats.ErrorCount, "per_second", stats.ExecutionsPerSec)
	printSummary(result)

	if err := writeReport(result); err != nil {
		return err
	}
	if config.Output.AccessLog != "" {
		printSuccess("Access log saved to: %s (%d decisions)", config.Output.AccessLog, accessLog.Count())
	}
	return ctx.Err()
}

func collectPaths(ctx context.Context, cmd *cobra.Command) ([]string, error) {
	paths, _ := cmd.Flags().GetStringSlice("paths")

	if doc, _ := cmd.Flags().GetString("openapi"); doc != "" {
		p, err := introspect.NewOpenAPIIntrospector(doc)
		if err != nil {
			return nil, err
		}
		routes, err := p.Routes(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read routes: %w", err)
		}
		printInfo("Discovered %d routes in %s", len(routes), doc)
		paths = append(paths, introspect.Templates(routes)...)
	}

	return paths, nil
}

func suggestForStrategies(ctx context.Context, strategies []*scenario.Strategy, count int) {
	provider, err := newProvider()
	if err != nil {
		printWarning("LLM provider setup failed: %v (continuing without suggestions)", err)
		return
	}
	printInfo("Using LLM provider: %s (%s)", provider.Name(), provider.Model())

	for _, st := range strategies {
		phrase := config.Execution.GUIDPhrase
		if st.GUIDPhrase != nil {
			phrase = *st.GUIDPhrase
		}
		suggested, err := llm.SuggestPayloads(ctx, provider, llm.SuggestRequest{
			Category: st.Name,
			Examples: st.Payloads,
			Count:    count,
			Phrase:   phrase,
		})
		if err != nil {
			printWarning("Payload suggestions for %s failed: %v", st.Name, err)
			continue
		}
		st.Payloads = append(st.Payloads, suggested...)
		printSuccess("Added %d suggested payloads to %s", len(suggested), st.Name)
	}
}

func writeReport(result *types.RunResult) error {
	opts := reporter.DefaultOptions()
	opts.Verbose = config.Output.Verbose
	opts.NoColor = !config.Output.Color
	opts.Version = version

	format := config.Output.Format
	rep, err := reporter.NewReporter(format, opts)
	if err != nil {
		return fmt.Errorf("failed to create reporter: %w", err)
	}

	outputFile := config.Output.File
	if (format == "text" || format == "txt") && outputFile == "" {
		fmt.Println()
		if err := rep.Write(result, os.Stdout); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		return nil
	}

	if outputFile == "" {
		outputFile = fmt.Sprintf("cakefuzzer-report-%s", time.Now().Format("20060102-150405"))
	}
	if !strings.HasSuffix(outputFile, "."+rep.Extension()) {
		outputFile += "." + rep.Extension()
	}

	if err := reporter.WriteToFile(rep, result, outputFile); err != nil {
		printError("Failed to write report: %v", err)
		return fmt.Errorf("failed to write report: %w", err)
	}

	printSuccess("Report saved to: %s", outputFile)
	return nil
}

func updateConfigFromFlags(cmd *cobra.Command) {
	if v, _ := cmd.Flags().GetString("scenarios"); v != "" {
		config.Run.Scenarios = v
	}
	if v, _ := cmd.Flags().GetInt("iterations"); v > 0 {
		config.Run.Iterations = v
	}
	if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
		config.Run.Concurrency = v
	}
	if v, _ := cmd.Flags().GetFloat64("rate-limit"); v > 0 {
		config.Run.RateLimit = v
	}
	if v, _ := cmd.Flags().GetDuration("timeout"); v > 0 {
		config.Run.Timeout = v
	}
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		config.Output.File = v
	}
	if v, _ := cmd.Flags().GetString("format"); v != "" {
		config.Output.Format = v
	}
	if v, _ := cmd.Flags().GetString("access-log"); v != "" {
		config.Output.AccessLog = v
	}
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		config.Output.Verbose = true
	}
}
