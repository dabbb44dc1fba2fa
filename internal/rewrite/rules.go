// Package rewrite locates the interactive auth cell of a notebook and
// synthesizes a service-credential replacement that binds the same public
// names, so downstream cells run unmodified.
package rewrite

// Rules configures cell classification and extraction. Rules are passed
// in explicitly rather than read from package-level state so tests and
// the runner config file can substitute alternate lists.
type Rules struct {
	// Markers are literal substrings that identify the interactive auth
	// cell. The first code cell containing any of them is the auth cell.
	Markers []string

	// PreservedAssignments is the allow-list of variable names whose
	// simple assignments are kept when they appear before the first
	// marker line.
	PreservedAssignments []string

	// BoundVariable is the name the interactive flow bound and that the
	// injected bootstrap must bind again for downstream cells.
	BoundVariable string
}

// DefaultRules returns the marker and allow-list configuration matching
// the SDK's interactive login idiom.
func DefaultRules() Rules {
	return Rules{
		Markers: []string{
			"ServiceManagerWidget",
			"with_auth_code",
			"AuthorizationCodeAuthorizer",
			"DeviceFlowAuthorizer",
		},
		PreservedAssignments: []string{
			"cache_root",
			"cache_location",
			"input_path",
		},
		BoundVariable: "manager",
	}
}
