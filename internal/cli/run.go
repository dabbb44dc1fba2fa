package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nbrunner/internal/config"
	"nbrunner/internal/kernel"
	"nbrunner/internal/report"
	"nbrunner/internal/runner"
	"nbrunner/internal/workspace"
)

var (
	runNotebooks   string
	runResults     string
	runTimeout     time.Duration
	runRunnerFile  string
	runGatewayPort int
	runVerbose     bool
)

func init() {
	runCmd.Flags().StringVar(&runNotebooks, "notebooks", ".", "Directory to scan for .ipynb files")
	runCmd.Flags().StringVar(&runResults, "results", "results", "Directory for report.json, the progress log, and saved notebooks")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", config.DefaultTimeout, "Wall-clock budget per notebook")
	runCmd.Flags().StringVar(&runRunnerFile, "runner-file", "", "Optional YAML file overriding markers, skip list, and kernel")
	runCmd.Flags().IntVar(&runGatewayPort, "gateway-port", 8899, "Port for the locally launched kernel gateway")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Enable debug logging")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every discovered notebook and write the report",
	Long:  `Discover notebooks, rewrite their auth cells for service credentials, execute them one at a time against a live kernel, and write report.json. The exit status is non-zero when any notebook fails or errors.`,
	Args:  cobra.NoArgs,
	RunE:  runSuite,
}

func runSuite(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(runVerbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.Load(config.Options{
		NotebookRoot: runNotebooks,
		ResultsDir:   runResults,
		Timeout:      runTimeout,
		RunnerFile:   runRunnerFile,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gatewayURL := cfg.GatewayURL
	if gatewayURL == "" {
		launcher, err := kernel.LaunchGateway(ctx, runGatewayPort, logger)
		if err != nil {
			return err
		}
		defer launcher.Stop()
		gatewayURL = launcher.URL()
	}

	kc, err := kernel.NewClient(gatewayURL, cfg.GatewayToken, logger)
	if err != nil {
		return err
	}

	tokens := workspace.NewTokenSource(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, nil)
	workspaces := &runner.ManagerFactory{
		API:       workspace.NewClient(cfg.HubURL, cfg.OrgID, tokens),
		AdoptedID: cfg.WorkspaceID,
		Logger:    logger,
	}
	kernels := &runner.GatewayKernels{Client: kc, KernelName: cfg.KernelName}

	rep, err := runner.New(cfg, kernels, workspaces, logger).Run(ctx)
	if rep != nil {
		report.Summary(os.Stdout, rep)
	}
	if err != nil {
		return err
	}
	if rep.Failed() {
		return fmt.Errorf("%d failed, %d errored of %d notebooks",
			rep.Counts.Fail, rep.Counts.Error, len(rep.Results))
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
