// Package core provides a small, stable facade over livegrab's capture and
// summarize pipeline for programs that embed it.
package core
