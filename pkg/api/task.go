package api

import (
	"errors"
	"fmt"
)

type (
	// TaskDef is an immutable description of a unit of work or grouping.
	// The concrete variants are *ActionTask, *GroupDef and *DuplicateDef
	TaskDef interface {
		TaskName() Name
		TaskParents() []TaskDef
		Validate() error
	}

	// ActionTask invokes a single action. Positional and keyword argument
	// values may contain query expressions. Upload maps a storage tag to
	// query expressions or glob patterns. At most one of OutputTo and
	// OutputExtraction may be given
	ActionTask struct {
		Upload           map[Name][]string `json:"upload,omitempty"`
		OutputExtraction map[Name]string   `json:"output_extraction,omitempty"`
		Kwargs           Args              `json:"kwargs,omitempty"`
		Name             Name              `json:"name"`
		Action           string            `json:"action"`
		OutputTo         Name              `json:"output_to,omitempty"`
		Args             []any             `json:"args,omitempty"`
		Parents          []TaskDef         `json:"-"`
		Download         []Name            `json:"download,omitempty"`
	}

	// GroupDef is an ordered set of definitions forming a sub-DAG
	GroupDef struct {
		Name     Name      `json:"name"`
		TaskDefs []TaskDef `json:"-"`
		Parents  []TaskDef `json:"-"`
	}

	// DuplicateDef expands its wrapped definition once per element of its
	// duplication factor. The factor comes from an explicit Args or Kwargs
	// list, from a query resolving to such a list, or from the files of a
	// Download tag. Kwargs elements are maps or queries resolving to maps.
	// A nested DuplicateDef with no factor of its own takes the args
	// element handed down by its enclosing duplication
	DuplicateDef struct {
		TaskDef     TaskDef   `json:"-"`
		Name        Name      `json:"name"`
		ArgsQuery   string    `json:"args_query,omitempty"`
		KwargsQuery string    `json:"kwargs_query,omitempty"`
		Download    Name      `json:"download,omitempty"`
		Args        []any     `json:"args,omitempty"`
		Kwargs      []any     `json:"kwargs,omitempty"`
		Parents     []TaskDef `json:"-"`
	}
)

var (
	ErrNameRequired     = errors.New("name is required")
	ErrActionRequired   = errors.New("action is required")
	ErrOutputSpec       = errors.New("output_to and output_extraction both set")
	ErrEmptyGroup       = errors.New("group has no task definitions")
	ErrNilTaskDef       = errors.New("task definition is nil")
	ErrFactorSources    = errors.New("args and args query both set")
	ErrKwFactorSources  = errors.New("kwargs and kwargs query both set")
	ErrEmptyUploadEntry = errors.New("upload entry has no patterns")
)

var (
	_ TaskDef = (*ActionTask)(nil)
	_ TaskDef = (*GroupDef)(nil)
	_ TaskDef = (*DuplicateDef)(nil)
)

// TaskName returns the name of the action task
func (t *ActionTask) TaskName() Name {
	return t.Name
}

// TaskParents returns the definitions gating the action task
func (t *ActionTask) TaskParents() []TaskDef {
	return t.Parents
}

// Validate checks the action task's own fields
func (t *ActionTask) Validate() error {
	if t.Name == "" {
		return invalid(t.Name, ErrNameRequired)
	}
	if t.Action == "" {
		return invalid(t.Name, ErrActionRequired)
	}
	if t.OutputTo != "" && len(t.OutputExtraction) > 0 {
		return invalid(t.Name, ErrOutputSpec)
	}
	for tag, patterns := range t.Upload {
		if len(patterns) == 0 {
			return invalid(t.Name, fmt.Errorf("%w: %s", ErrEmptyUploadEntry, tag))
		}
	}
	return nil
}

// TaskName returns the name of the group
func (g *GroupDef) TaskName() Name {
	return g.Name
}

// TaskParents returns the definitions gating the group
func (g *GroupDef) TaskParents() []TaskDef {
	return g.Parents
}

// Validate checks the group's own fields, not its members
func (g *GroupDef) Validate() error {
	if g.Name == "" {
		return invalid(g.Name, ErrNameRequired)
	}
	if len(g.TaskDefs) == 0 {
		return invalid(g.Name, ErrEmptyGroup)
	}
	for _, td := range g.TaskDefs {
		if td == nil {
			return invalid(g.Name, ErrNilTaskDef)
		}
	}
	return nil
}

// TaskName returns the name of the duplication
func (d *DuplicateDef) TaskName() Name {
	return d.Name
}

// TaskParents returns the definitions gating the duplication
func (d *DuplicateDef) TaskParents() []TaskDef {
	return d.Parents
}

// Validate checks the duplication's own fields, not the wrapped definition
func (d *DuplicateDef) Validate() error {
	if d.Name == "" {
		return invalid(d.Name, ErrNameRequired)
	}
	if d.TaskDef == nil {
		return invalid(d.Name, ErrNilTaskDef)
	}
	if d.Args != nil && d.ArgsQuery != "" {
		return invalid(d.Name, ErrFactorSources)
	}
	if d.Kwargs != nil && d.KwargsQuery != "" {
		return invalid(d.Name, ErrKwFactorSources)
	}
	return nil
}

// HasFactor reports whether the duplication declares its own factor source
func (d *DuplicateDef) HasFactor() bool {
	return d.Args != nil || d.ArgsQuery != "" ||
		d.Kwargs != nil || d.KwargsQuery != "" || d.Download != ""
}

func invalid(name Name, err error) error {
	return fmt.Errorf("%w: %q: %w", ErrInvalidDefinition, name, err)
}
