// Package facet exposes build metadata for the Facet module.
package facet

// Version is the module version reported by the CLI.
const Version = "v0.3.0"
