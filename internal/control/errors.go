package control

import "fmt"

// StartupError means the pipeline was built but never reached its running
// state. Nothing was processed; any output file is at most an empty shell.
type StartupError struct {
	Engine string
	Err    error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("control: pipeline failed to start on engine %q: %v", e.Engine, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

// RuntimeError is a fatal failure reported by a running pipeline. The
// source element and the engine's debug detail are kept because the
// underlying errors are often generic while the context pinpoints the
// stage that failed.
type RuntimeError struct {
	Source string
	Debug  string
	Err    error
}

func (e *RuntimeError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("control: pipeline failed at %q: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("control: pipeline failed: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }
