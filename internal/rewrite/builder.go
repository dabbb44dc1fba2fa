package rewrite

import (
	"fmt"
	"strings"

	"nbrunner/internal/notebook"
)

// Bundle carries the values the injected bootstrap needs. Only
// non-secret values are embedded as literals; the client id and secret
// are read from the environment inside the injected code so they never
// end up in a saved debug notebook.
type Bundle struct {
	HubURL      string
	IssuerURL   string
	OrgID       string
	WorkspaceID string

	// ClientIDEnv and ClientSecretEnv name the environment variables the
	// injected cell reads the service credential from.
	ClientIDEnv     string
	ClientSecretEnv string
}

// BuildAuthCell synthesizes the replacement auth cell: a header comment,
// imports for the service-credential flow, the preserved lines from the
// original cell, and bootstrap statements binding the same variable the
// interactive flow bound. Duplicate imports between the injected block
// and the preserved lines are harmless and left as-is.
func BuildAuthCell(spec AuthCellSpec, bundle Bundle, rules Rules) notebook.Cell {
	var sb strings.Builder

	sb.WriteString("# Auth cell injected by nbrunner for unattended execution.\n")
	sb.WriteString("# The original interactive login was removed; preserved setup lines follow the imports.\n")
	sb.WriteString("import os\n")
	sb.WriteString("\n")
	sb.WriteString("from evo.aio import AioTransport\n")
	sb.WriteString("from evo.common import APIConnector\n")
	sb.WriteString("from evo.notebooks import ServiceManager\n")
	sb.WriteString("from evo.oauth import ClientCredentialsAuthorizer, OIDCConnector\n")

	for _, line := range spec.Imports {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	for _, line := range spec.Assignments {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if len(spec.Assignments) > 0 {
		sb.WriteString("\n")
	}

	sb.WriteString("_transport = AioTransport(user_agent=\"nbrunner\")\n")
	sb.WriteString("_authorizer = ClientCredentialsAuthorizer(\n")
	sb.WriteString("    oidc_connector=OIDCConnector(\n")
	sb.WriteString("        transport=_transport,\n")
	sb.WriteString(fmt.Sprintf("        oidc_issuer=%q,\n", bundle.IssuerURL))
	sb.WriteString(fmt.Sprintf("        client_id=os.environ[%q],\n", bundle.ClientIDEnv))
	sb.WriteString(fmt.Sprintf("        client_secret=os.environ[%q],\n", bundle.ClientSecretEnv))
	sb.WriteString("    ),\n")
	sb.WriteString(")\n")
	sb.WriteString(fmt.Sprintf("_connector = APIConnector(%q, _transport, _authorizer)\n", bundle.HubURL))
	sb.WriteString(fmt.Sprintf("%s = await ServiceManager.create(\n", rules.BoundVariable))
	sb.WriteString("    connector=_connector,\n")
	sb.WriteString(fmt.Sprintf("    org_id=%q,\n", bundle.OrgID))
	sb.WriteString(fmt.Sprintf("    workspace_id=%q,\n", bundle.WorkspaceID))
	sb.WriteString(")\n")

	return notebook.Cell{
		CellType: notebook.CellTypeCode,
		Source:   notebook.FromText(sb.String()),
		Metadata: map[string]any{"tags": []any{"injected-auth"}},
	}
}
