// Package livegrab provides the command-line interface for livegrab. It
// wires the grab, summarize and report commands to the capture pipeline,
// parses flags and configuration, and maps outcomes to exit codes.
//
// Typical usage from a main package:
//
//	package main
//	import "github.com/redactyl/livegrab/cmd/livegrab"
//	func main() { livegrab.Execute() }
package livegrab
