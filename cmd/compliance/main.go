// Command compliance evaluates bots against tenant policy packs.
//
// It loads the built-in regulatory packs and any tenant pack files,
// resolves the packs a tenant is bound to, and reports blocks, warnings,
// injected controls and required approvals for a bot's nodes. Every
// evaluation can be sealed into a hashed evidence record.
//
// Usage:
//
//	# Validate pack files
//	compliance lint packs/
//
//	# List the packs available to a tenant
//	compliance packs list --tenant acme
//
//	# Evaluate a bot's nodes against its tenant's packs
//	compliance evaluate --tenant acme --nodes nodes.yaml
//
//	# Pin packs explicitly and emit JSON
//	compliance evaluate --pack hipaa@1.0.0 --pack soc2@1.0.0 --nodes nodes.yaml --format json
//
//	# Query recorded evidence
//	compliance evidence query --tenant acme --failed
//
//	# Serve the HTTP API
//	compliance serve --config /etc/compliance/config.yaml
package main

func main() {
	Execute()
}
