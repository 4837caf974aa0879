// Package app wires application dependencies for the CLI.
//
// It builds the concrete stores, the key vault, the relay client and the
// session manager from Config, exposing them via the Wire struct for
// commands to use.
package app
