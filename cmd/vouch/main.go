// Package main provides the vouch headless test engine: a browser pool and
// command router driven from stdin, plus one-shot execution of YAML test
// plans for CI use.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	appconfig "github.com/entrhq/vouch/pkg/config"

	"github.com/entrhq/vouch/pkg/browser"
	"github.com/entrhq/vouch/pkg/command"
	"github.com/entrhq/vouch/pkg/cost"
	"github.com/entrhq/vouch/pkg/driver/openai"
	"github.com/entrhq/vouch/pkg/knowledge"
	"github.com/entrhq/vouch/pkg/logging"
	"github.com/entrhq/vouch/pkg/orchestrator"
	"github.com/entrhq/vouch/pkg/pipeline"
	"github.com/entrhq/vouch/pkg/recovery"
	"github.com/entrhq/vouch/pkg/types"
	"github.com/entrhq/vouch/pkg/verify"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	ConfigFile  string
	StartURL    string
	PlanFile    string
	Headed      bool
	ShowVersion bool
}

func main() {
	cliConfig := parseFlags()

	if cliConfig.ShowVersion {
		fmt.Printf("vouch v%s\n", version)
		return
	}

	if err := run(cliConfig); err != nil {
		fmt.Fprintf(os.Stderr, "vouch: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() *CLIConfig {
	cliConfig := &CLIConfig{}

	flag.StringVar(&cliConfig.APIKey, "api-key", os.Getenv("OPENAI_API_KEY"), "OpenAI API key")
	flag.StringVar(&cliConfig.BaseURL, "base-url", os.Getenv("OPENAI_BASE_URL"), "OpenAI API base URL")
	flag.StringVar(&cliConfig.Model, "model", "", "LLM model to use")
	flag.StringVar(&cliConfig.ConfigFile, "config", "", "Path to configuration file (JSON)")
	flag.StringVar(&cliConfig.StartURL, "start-url", "", "URL the default instance opens at startup")
	flag.StringVar(&cliConfig.PlanFile, "plan", "", "Run a YAML test plan and exit")
	flag.BoolVar(&cliConfig.Headed, "headed", false, "Run browsers with a visible window")
	flag.BoolVar(&cliConfig.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "vouch - AI-driven browser QA test engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: vouch [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Interactive command loop against a site\n")
		fmt.Fprintf(os.Stderr, "  vouch -start-url https://staging.example.com\n\n")
		fmt.Fprintf(os.Stderr, "  # Run a test plan in CI\n")
		fmt.Fprintf(os.Stderr, "  vouch -plan checkout.yaml -start-url https://staging.example.com\n\n")
	}

	flag.Parse()
	return cliConfig
}

func run(cliConfig *CLIConfig) error {
	if err := appconfig.Initialize(cliConfig.ConfigFile); err != nil {
		return fmt.Errorf("initializing configuration: %w", err)
	}

	logger, err := logging.NewLogger("main")
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: file logging unavailable: %v\n", err)
	}
	defer logger.Close()
	logger.Infof("vouch v%s starting, session %s", version, logger.SessionID())

	store, err := knowledge.NewFileStore("")
	if err != nil {
		return fmt.Errorf("opening knowledge store: %w", err)
	}

	billing := appconfig.GetBilling()
	tracker, err := cost.New(store, billing.GetCycleResetDay())
	if err != nil {
		return fmt.Errorf("initializing cost tracker: %w", err)
	}
	tracker.SetBudgets(cost.Budgets{
		SessionUSD: billing.SessionBudgetUSD,
		CycleUSD:   billing.CycleBudgetUSD,
	}, func(format string, v ...interface{}) {
		logger.Warnf(format, v...)
		fmt.Fprintf(os.Stderr, "warning: "+format+"\n", v...)
	})

	browserCfg := appconfig.GetBrowser()
	pool := browser.NewPool(browser.PoolOptions{
		Headless:      browserCfg.Headless && !cliConfig.Headed,
		LaunchTimeout: time.Duration(browserCfg.LaunchTimeoutSeconds) * time.Second,
		ProfilesDir:   browserCfg.ProfilesDir,
		Guard:         browserCfg.Allowed,
		MaxInstances:  browserCfg.MaxInstances,
	})
	if err := pool.Initialize(); err != nil {
		return fmt.Errorf("initializing browser runtime: %w", err)
	}
	defer func() {
		if err := pool.Shutdown(); err != nil {
			logger.Warnf("pool shutdown: %v", err)
		}
	}()

	if cliConfig.StartURL != "" {
		if err := browserCfg.Allowed(cliConfig.StartURL); err != nil {
			return err
		}
	}
	if _, err := pool.Spawn("main", browser.SpawnOptions{StartURL: cliConfig.StartURL}); err != nil {
		return fmt.Errorf("spawning default instance: %w", err)
	}

	llmCfg := appconfig.GetLLM()
	apiKey := cliConfig.APIKey
	if apiKey == "" {
		apiKey = llmCfg.GetAPIKey()
	}
	model := cliConfig.Model
	if model == "" {
		model = llmCfg.GetModel()
	}
	baseURL := cliConfig.BaseURL
	if baseURL == "" {
		baseURL = llmCfg.GetBaseURL()
	}
	provider, err := openai.NewProvider(apiKey, openai.WithModel(model), openai.WithBaseURL(baseURL))
	if err != nil {
		return fmt.Errorf("initializing LLM provider: %w", err)
	}

	engine := verify.NewEngine(verify.NewDriverChecker(provider), verify.NewModelJudge(provider))
	runner := pipeline.NewRunner(pool, provider, provider, engine, store, pipeline.Options{
		Tracker:  tracker,
		ShotsDir: defaultShotsDir(),
	})

	orch := orchestrator.New(pool, provider, provider, store, tracker,
		recovery.NewResolver(provider), runner, orchestrator.Options{
			Model:        model,
			UtilityModel: llmCfg.GetUtilityModel(),
			Guard:        browserCfg.Allowed,
		})

	if cliConfig.PlanFile != "" {
		return runPlanFile(runner, cliConfig.PlanFile)
	}

	return commandLoop(orch, tracker, logger)
}

func defaultShotsDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".vouch", "shots")
}

// runPlanFile executes one YAML plan and prints the report as JSON. The
// process exit code reflects the verdict so CI can gate on it.
func runPlanFile(runner *pipeline.Runner, path string) error {
	plan, err := pipeline.LoadPlan(path)
	if err != nil {
		return err
	}

	report := runner.RunPlan(context.Background(), plan)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	if report.Verdict != types.ReportPass {
		return fmt.Errorf("test verdict: %s", report.Verdict)
	}
	return nil
}

// commandLoop reads commands from stdin and dispatches them. SIGINT
// cancels the in-flight command; a SIGINT with nothing running exits.
func commandLoop(orch *orchestrator.Orchestrator, tracker *cost.Tracker, logger *logging.Logger) error {
	var mu sync.Mutex
	var cancelCurrent context.CancelFunc

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigChan {
			mu.Lock()
			cancel := cancelCurrent
			mu.Unlock()
			if cancel != nil {
				fmt.Println("\ncancelling current command...")
				cancel()
				continue
			}
			fmt.Println("\nshutting down")
			os.Exit(0)
		}
	}()

	fmt.Printf("vouch v%s ready. Commands: <mode>: <instruction>, @name targets an instance, ctrl-d quits.\n", version)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		cmd := command.Parse(line)

		ctx, cancel := context.WithCancel(context.Background())
		mu.Lock()
		cancelCurrent = cancel
		mu.Unlock()

		result, err := orch.Execute(ctx, cmd, os.Stdout)

		mu.Lock()
		cancelCurrent = nil
		mu.Unlock()
		cancel()

		switch {
		case errors.Is(err, orchestrator.ErrAborted):
			fmt.Println("aborted")
		case err != nil:
			fmt.Printf("error: %v\n", err)
		case result.Success:
			fmt.Println(result.Message)
		default:
			fmt.Printf("failed: %s\n", result.Message)
		}
		if !result.Usage.IsZero() {
			fmt.Printf("  [%d in / %d out tokens, session $%.4f]\n",
				result.Usage.InputTokens, result.Usage.OutputTokens, tracker.SessionUSD())
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	logger.Infof("stdin closed, exiting")
	return nil
}
