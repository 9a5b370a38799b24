// Package cli implements the stubd command line: serve, validate, match and
// version.
//
// Settings shared by the commands are resolved by internal/cliconfig and
// overridden by the flags the user sets explicitly.
package cli
