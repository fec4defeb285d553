// Package main provides the E2E test CLI for InferGate deployments
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/c360/infergate/test/e2e/client"
	"github.com/c360/infergate/test/e2e/config"
	"github.com/c360/infergate/test/e2e/scenarios"
)

var (
	// Version information (set by build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// Parse command-line flags
	flags := parseCommandLineFlags()

	// Handle version and list commands
	if handleVersionCommand(flags.showVersion) {
		return
	}
	if handleListCommand(flags.listScenarios) {
		return
	}

	// Setup logger
	logger := setupLogger(flags.verbose)

	// Create client and setup context
	gwClient, ctx := setupClientAndContext(logger, flags)

	// Run scenarios and exit
	exitCode := runScenarios(ctx, logger, gwClient, flags)
	os.Exit(exitCode)
}

// cliFlags holds parsed command-line flags
type cliFlags struct {
	scenarioName  string
	verbose       bool
	baseURL       string
	authToken     string
	showVersion   bool
	listScenarios bool
}

// parseCommandLineFlags parses and returns command-line flags
func parseCommandLineFlags() *cliFlags {
	flags := &cliFlags{}

	flag.StringVar(&flags.scenarioName, "scenario", "",
		"Run specific scenario (gateway-health, chat-roundtrip, transcription-roundtrip, saturation, or 'all')")
	flag.BoolVar(&flags.verbose, "verbose", false, "Enable verbose logging")
	flag.StringVar(&flags.baseURL, "base-url", config.DefaultEndpoints.HTTP, "InferGate HTTP endpoint")
	flag.StringVar(&flags.authToken, "auth-token", "", "Bearer token when the deployment requires auth")
	flag.BoolVar(&flags.showVersion, "version", false, "Show version information")
	flag.BoolVar(&flags.listScenarios, "list", false, "List available scenarios")

	// Support environment variables for Docker Compose
	if envURL := os.Getenv("INFERGATE_BASE_URL"); envURL != "" {
		flags.baseURL = envURL
	}
	if envToken := os.Getenv("INFERGATE_AUTH_TOKEN"); envToken != "" {
		flags.authToken = envToken
	}

	flag.Parse()
	return flags
}

// handleVersionCommand shows version information and returns true if version flag is set
func handleVersionCommand(showVersion bool) bool {
	if !showVersion {
		return false
	}

	fmt.Printf("InferGate E2E Test Runner\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Commit:  %s\n", commit)
	fmt.Printf("Date:    %s\n", date)
	return true
}

// handleListCommand shows available scenarios and returns true if list flag is set
func handleListCommand(listScenarios bool) bool {
	if !listScenarios {
		return false
	}

	fmt.Println("Available scenarios:")
	fmt.Println("\nOperational:")
	fmt.Printf("  gateway-health           - Validates health aggregation, readiness and the model list\n")
	fmt.Println("\nInference:")
	fmt.Printf("  chat-roundtrip           - Buffered and streaming chat completions\n")
	fmt.Printf("  transcription-roundtrip  - Buffered and streaming audio transcriptions\n")
	fmt.Println("\nBackpressure:")
	fmt.Printf("  saturation               - Queue admission, load shedding and recovery under burst\n")
	fmt.Println("\nTest Suites:")
	fmt.Printf("  all                      - Runs every scenario in order\n")
	return true
}

// setupLogger creates and configures the logger
func setupLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	slog.SetDefault(logger)
	return logger
}

// setupClientAndContext creates the gateway client and signal handling
func setupClientAndContext(logger *slog.Logger, flags *cliFlags) (*client.GatewayClient, context.Context) {
	gwClient := client.NewGatewayClient(flags.baseURL)
	if flags.authToken != "" {
		gwClient = gwClient.WithAuthToken(flags.authToken)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Received interrupt signal, shutting down...")
		cancel()
	}()

	return gwClient, ctx
}

// runScenarios runs the appropriate scenarios based on flags
func runScenarios(ctx context.Context, logger *slog.Logger, gwClient *client.GatewayClient, flags *cliFlags) int {
	logger.Info("Connecting to InferGate", "base_url", flags.baseURL)

	if flags.scenarioName == "" || flags.scenarioName == "all" {
		logger.Info("Running all scenarios...")
		return runAllScenarios(ctx, logger, gwClient)
	}

	// Run specific scenario
	scenario := createScenario(flags.scenarioName, gwClient)
	if scenario == nil {
		logger.Error("Unknown scenario", "name", flags.scenarioName)
		fmt.Println("\nAvailable scenarios:")
		fmt.Println("  gateway-health           - Validates operational endpoints")
		fmt.Println("  chat-roundtrip           - Buffered and streaming chat completions")
		fmt.Println("  transcription-roundtrip  - Buffered and streaming transcriptions")
		fmt.Println("  saturation               - Load shedding and recovery under burst")
		return 1
	}

	logger.Info("Running scenario", "name", flags.scenarioName)
	return runScenario(ctx, logger, scenario)
}

// createScenario creates a specific scenario by name
func createScenario(name string, gwClient *client.GatewayClient) scenarios.Scenario {
	switch name {
	case "gateway-health", "health":
		return scenarios.NewGatewayHealthScenario(gwClient, nil)
	case "chat-roundtrip", "chat":
		return scenarios.NewChatRoundtripScenario(gwClient, nil)
	case "transcription-roundtrip", "transcription", "transcribe":
		return scenarios.NewTranscriptionRoundtripScenario(gwClient, nil)
	case "saturation", "burst":
		return scenarios.NewSaturationScenario(gwClient, nil)
	default:
		return nil
	}
}

// runScenario executes a single scenario
func runScenario(ctx context.Context, logger *slog.Logger, scenario scenarios.Scenario) int {
	logger.Info("Setting up scenario", "name", scenario.Name())

	if err := scenario.Setup(ctx); err != nil {
		logger.Error("Scenario setup failed", "error", err)
		return 1
	}

	logger.Info("Executing scenario", "name", scenario.Name())
	result, err := scenario.Execute(ctx)

	// Always cleanup
	logger.Info("Tearing down scenario", "name", scenario.Name())
	if teardownErr := scenario.Teardown(ctx); teardownErr != nil {
		logger.Warn("Teardown failed", "error", teardownErr)
	}

	if err != nil {
		logger.Error("Scenario failed", "error", err)
		return 1
	}

	if !result.Success {
		logger.Error("Scenario completed with failure",
			"error", result.Error,
			"duration", result.Duration)
		return 1
	}

	logger.Info("Scenario completed successfully",
		"duration", result.Duration,
		"metrics", result.Metrics)

	return 0
}

// runAllScenarios executes every scenario in order
func runAllScenarios(ctx context.Context, logger *slog.Logger, gwClient *client.GatewayClient) int {
	tests := []scenarios.Scenario{
		scenarios.NewGatewayHealthScenario(gwClient, nil),
		scenarios.NewChatRoundtripScenario(gwClient, nil),
		scenarios.NewTranscriptionRoundtripScenario(gwClient, nil),
		scenarios.NewSaturationScenario(gwClient, nil),
	}

	passed := 0
	failed := 0

	for _, scenario := range tests {
		logger.Info("Running scenario", "name", scenario.Name())
		exitCode := runScenario(ctx, logger, scenario)

		if exitCode == 0 {
			passed++
			logger.Info("Scenario PASSED", "name", scenario.Name())
		} else {
			failed++
			logger.Error("Scenario FAILED", "name", scenario.Name())
		}
	}

	logger.Info("Test suite complete",
		"passed", passed,
		"failed", failed,
		"total", len(tests))

	if failed > 0 {
		return 1
	}
	return 0
}
