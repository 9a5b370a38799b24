// Package cliconfig resolves server settings for the stubd CLI.
//
// Settings are layered with the following precedence (highest to lowest):
//
//  1. Command-line flags
//  2. Environment variables (STUBD_* prefix)
//  3. Local settings file (.stubdrc.yaml in the current directory)
//  4. Default values
//
// The source of every value is tracked in Settings.Sources so that
// `stubd serve --print-settings` can explain where a value came from.
package cliconfig
