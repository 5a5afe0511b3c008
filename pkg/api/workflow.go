package api

import (
	"errors"
	"fmt"
)

type (
	// Mode selects how a run's ready instances are dispatched
	Mode string

	// Workflow is a definition tree plus everything needed to start a run
	Workflow struct {
		TaskDef     TaskDef           `json:"-"`
		Inputs      Args              `json:"inputs,omitempty"`
		Files       map[Name][]string `json:"files,omitempty"`
		ProjectName string            `json:"project_name"`
		Name        Name              `json:"name"`
		Mode        Mode              `json:"mode"`
	}

	// ProjectConfig describes where a project's run files are stored
	ProjectConfig struct {
		Name      string `json:"name" yaml:"name"`
		BucketURL string `json:"bucket_url" yaml:"bucket_url"`
	}
)

const (
	ModeSerial     Mode = "serial"
	ModeConcurrent Mode = "concurrent"
)

var (
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrProjectRequired      = errors.New("project name is required")
	ErrTaskDefRequired      = errors.New("workflow task definition is required")
	ErrInvalidMode          = errors.New("invalid workflow mode")
)

// Validate checks the workflow's own fields. The definition tree is
// validated separately when the graph is built
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return ErrWorkflowNameRequired
	}
	if w.TaskDef == nil {
		return ErrTaskDefRequired
	}
	if !w.Mode.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, w.Mode)
	}
	return nil
}

// IsValid reports whether the mode is known. The zero value means serial
func (m Mode) IsValid() bool {
	switch m {
	case "", ModeSerial, ModeConcurrent:
		return true
	default:
		return false
	}
}

// Resolve returns the effective mode, defaulting to serial
func (m Mode) Resolve() Mode {
	if m == "" {
		return ModeSerial
	}
	return m
}
