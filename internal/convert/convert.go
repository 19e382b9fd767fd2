// Package convert wires archive ingestion, file discovery, prompt
// construction, model invocation, response parsing, and archive re-emission
// into the two conversion pipelines.
package convert

import (
	"errors"
	"fmt"
)

// AllowedExtensions is the single source of truth for "is this a code file".
// Both discovery and prompt inclusion consult it; a file with any other
// extension is never sent to the model and never altered.
var AllowedExtensions = []string{
	".js", ".jsx", ".ts", ".tsx", ".vue", ".svelte",
	".html", ".css", ".scss", ".json", ".md",
}

// Conversion modes, selected at deployment time.
const (
	ModeWholeProject = "whole-project"
	ModePerFile      = "per-file"
)

// ErrNoSourceFiles means the uploaded archive held no file with an allowed
// extension and non-empty content.
var ErrNoSourceFiles = errors.New("convert: no convertible source files in archive")

// ErrUnparsableResponse means the model's whole-project reply contained no
// recognizable file blocks.
var ErrUnparsableResponse = errors.New("convert: model response contained no parsable file blocks")

// InvocationError wraps a model-call failure. It is fatal in whole-project
// mode; per-file mode recovers by keeping the original file content.
type InvocationError struct {
	Err error
}

func (e *InvocationError) Error() string { return "convert: model invocation failed: " + e.Err.Error() }
func (e *InvocationError) Unwrap() error { return e.Err }

// Request is one immutable conversion job.
type Request struct {
	// Archive is the uploaded zip's raw bytes.
	Archive []byte
	// TargetStack names the destination framework, opaque beyond prompt
	// interpolation.
	TargetStack string
}

// Result carries the output archive and per-request counters.
type Result struct {
	// Archive is the zip of the converted project.
	Archive []byte
	// SourceFiles is the number of files sent toward the model.
	SourceFiles int
	// ConvertedFiles is the number of files the model's output replaced or
	// produced. In per-file mode a failed call leaves a source file out of
	// this count.
	ConvertedFiles int
}

// Validate rejects structurally unusable requests before any workspace is
// created.
func (r Request) Validate() error {
	if len(r.Archive) == 0 {
		return fmt.Errorf("convert: empty archive")
	}
	if r.TargetStack == "" {
		return fmt.Errorf("convert: target stack is required")
	}
	return nil
}
