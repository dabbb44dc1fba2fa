package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"nbrunner/internal/rewrite"
)

// Options are the command-line inputs to configuration loading.
type Options struct {
	NotebookRoot string
	ResultsDir   string
	Timeout      time.Duration
	RunnerFile   string
}

// runnerFile is the YAML runner file shape. Every field is optional and
// overrides the built-in default when present.
type runnerFile struct {
	Markers              []string `yaml:"markers"`
	PreservedAssignments []string `yaml:"preserve_assignments"`
	Skip                 []string `yaml:"skip"`
	BoundVariable        string   `yaml:"bound_variable"`
	Kernel               string   `yaml:"kernel"`
}

// Load resolves configuration from a .env file (if present), the
// process environment, and an optional YAML runner file. Missing
// required credentials are reported together rather than one at a time.
func Load(opts Options) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
		OrgID:        os.Getenv(EnvOrgID),
		HubURL:       strings.TrimRight(os.Getenv(EnvHubURL), "/"),
		IssuerURL:    os.Getenv(EnvIssuerURL),
		TokenURL:     os.Getenv(EnvTokenURL),
		WorkspaceID:  os.Getenv(EnvWorkspaceID),
		GatewayURL:   os.Getenv(EnvGatewayURL),
		GatewayToken: os.Getenv(EnvGatewayToken),
		KernelName:   "python3",
		NotebookRoot: opts.NotebookRoot,
		ResultsDir:   opts.ResultsDir,
		Timeout:      opts.Timeout,
		SkipList:     DefaultSkipList(),
		Rules:        rewrite.DefaultRules(),
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.IssuerURL == "" {
		cfg.IssuerURL = cfg.HubURL
	}
	if cfg.TokenURL == "" && cfg.IssuerURL != "" {
		cfg.TokenURL = strings.TrimRight(cfg.IssuerURL, "/") + "/oauth2/token"
	}

	if opts.RunnerFile != "" {
		if err := applyRunnerFile(cfg, opts.RunnerFile); err != nil {
			return nil, err
		}
	}

	var missing []string
	for _, req := range []struct{ name, value string }{
		{EnvClientID, cfg.ClientID},
		{EnvClientSecret, cfg.ClientSecret},
		{EnvOrgID, cfg.OrgID},
		{EnvHubURL, cfg.HubURL},
	} {
		if req.value == "" {
			missing = append(missing, req.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

func applyRunnerFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read runner file: %w", err)
	}

	var rf runnerFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return fmt.Errorf("failed to parse runner file %s: %w", path, err)
	}

	if len(rf.Markers) > 0 {
		cfg.Rules.Markers = rf.Markers
	}
	if len(rf.PreservedAssignments) > 0 {
		cfg.Rules.PreservedAssignments = rf.PreservedAssignments
	}
	if len(rf.Skip) > 0 {
		cfg.SkipList = rf.Skip
	}
	if rf.BoundVariable != "" {
		cfg.Rules.BoundVariable = rf.BoundVariable
	}
	if rf.Kernel != "" {
		cfg.KernelName = rf.Kernel
	}
	return nil
}

// LoadSkipList returns the effective skip list: the runner file's when
// it names one, the default otherwise. Used by commands that do not
// need credentials.
func LoadSkipList(runnerFilePath string) ([]string, error) {
	if runnerFilePath == "" {
		return DefaultSkipList(), nil
	}
	data, err := os.ReadFile(runnerFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read runner file: %w", err)
	}
	var rf runnerFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse runner file %s: %w", runnerFilePath, err)
	}
	if len(rf.Skip) > 0 {
		return rf.Skip, nil
	}
	return DefaultSkipList(), nil
}

// Bundle returns the rewrite bundle for a notebook test against the
// given workspace id.
func (c *Config) Bundle(workspaceID string) rewrite.Bundle {
	return rewrite.Bundle{
		HubURL:          c.HubURL,
		IssuerURL:       c.IssuerURL,
		OrgID:           c.OrgID,
		WorkspaceID:     workspaceID,
		ClientIDEnv:     EnvClientID,
		ClientSecretEnv: EnvClientSecret,
	}
}
