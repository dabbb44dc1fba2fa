// Package config loads runner configuration from the environment and an
// optional YAML runner file.
package config

import (
	"time"

	"nbrunner/internal/rewrite"
)

// Environment variable names. The client id/secret names are also
// embedded into the injected auth cell, which reads the secret values
// at kernel time instead of having them written into the notebook.
const (
	EnvClientID     = "NBRUNNER_CLIENT_ID"
	EnvClientSecret = "NBRUNNER_CLIENT_SECRET"
	EnvOrgID        = "NBRUNNER_ORG_ID"
	EnvHubURL       = "NBRUNNER_HUB_URL"
	EnvIssuerURL    = "NBRUNNER_ISSUER_URL"
	EnvTokenURL     = "NBRUNNER_TOKEN_URL"
	EnvWorkspaceID  = "NBRUNNER_WORKSPACE_ID"
	EnvGatewayURL   = "NBRUNNER_GATEWAY_URL"
	EnvGatewayToken = "NBRUNNER_GATEWAY_TOKEN"
)

// DefaultTimeout is the wall-clock budget for one notebook run.
const DefaultTimeout = 600 * time.Second

// Config is the resolved runner configuration.
type Config struct {
	// Service credential and hub coordinates.
	ClientID     string
	ClientSecret string
	OrgID        string
	HubURL       string
	IssuerURL    string
	TokenURL     string

	// WorkspaceID selects adopted-workspace mode when non-empty; the
	// adopted workspace is never deleted by the run.
	WorkspaceID string

	// Kernel gateway. An empty GatewayURL means the runner launches a
	// local gateway process for the duration of the run.
	GatewayURL   string
	GatewayToken string
	KernelName   string

	// Paths and limits.
	NotebookRoot string
	ResultsDir   string
	Timeout      time.Duration

	// SkipList holds notebook base names excluded from every run.
	SkipList []string

	// Rules configures auth cell classification and rewriting.
	Rules rewrite.Rules
}

// DefaultSkipList names notebooks that perform interactive auth or
// workspace management themselves and are not meaningful to run this way.
func DefaultSkipList() []string {
	return []string{
		"quickstart-authorization.ipynb",
		"manage-workspaces.ipynb",
	}
}
