package definition

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

type (
	// Document is the YAML form of a workflow
	Document struct {
		Inputs  map[string]any        `yaml:"inputs,omitempty"`
		Files   map[string]stringList `yaml:"files,omitempty"`
		Task    *Node                 `yaml:"task"`
		Name    string                `yaml:"name"`
		Project string                `yaml:"project"`
		Mode    string                `yaml:"mode,omitempty"`
	}

	// Node is the YAML form of a single task definition. Which fields are
	// meaningful depends on the node's kind
	Node struct {
		Args             any                   `yaml:"args,omitempty"`
		Kwargs           any                   `yaml:"kwargs,omitempty"`
		Upload           map[string]stringList `yaml:"upload,omitempty"`
		OutputExtraction map[string]string     `yaml:"output_extraction,omitempty"`
		Task             *Node                 `yaml:"task,omitempty"`
		Name             string                `yaml:"name"`
		Action           string                `yaml:"action,omitempty"`
		OutputTo         string                `yaml:"output_to,omitempty"`
		ArgsQuery        string                `yaml:"args_query,omitempty"`
		KwargsQuery      string                `yaml:"kwargs_query,omitempty"`
		Download         stringList            `yaml:"download,omitempty"`
		Parents          stringList            `yaml:"parents,omitempty"`
		Tasks            []*Node               `yaml:"tasks,omitempty"`
	}

	// Kind identifies what a Node declares
	Kind int

	// stringList decodes either a single string or a list of strings
	stringList []string
)

const (
	KindUnknown Kind = iota
	KindAction
	KindGroup
	KindDuplicate
)

var (
	ErrEmptyDocument  = errors.New("definition is empty")
	ErrDecode         = errors.New("failed to decode definition")
	ErrReadDefinition = errors.New("failed to read definition")
	ErrNodeKind       = errors.New("node must set exactly one of action, tasks or task")
	ErrUnknownParent  = errors.New("unknown parent")
	ErrDuplicateName  = errors.New("duplicate name in group")
	ErrInvalidField   = errors.New("invalid field")
	ErrTaskRequired   = errors.New("workflow task is required")
)

// Kind reports the node's kind, or KindUnknown when it sets none or more
// than one of action, tasks and task
func (n *Node) Kind() Kind {
	var kinds []Kind
	if n.Action != "" {
		kinds = append(kinds, KindAction)
	}
	if n.Tasks != nil {
		kinds = append(kinds, KindGroup)
	}
	if n.Task != nil {
		kinds = append(kinds, KindDuplicate)
	}
	if len(kinds) != 1 {
		return KindUnknown
	}
	return kinds[0]
}

// UnmarshalYAML accepts a scalar or a sequence of scalars
func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = stringList{s}
		return nil
	case yaml.SequenceNode:
		var res []string
		if err := value.Decode(&res); err != nil {
			return err
		}
		*l = res
		return nil
	default:
		return fmt.Errorf("%w: line %d: expected string or list",
			ErrInvalidField, value.Line,
		)
	}
}
