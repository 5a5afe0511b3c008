package definition

import (
	"fmt"

	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

// Workflow builds the definition tree described by the document
func (d *Document) Workflow() (*api.Workflow, error) {
	if d.Task == nil {
		return nil, ErrTaskRequired
	}
	defs, err := buildScope([]*Node{d.Task})
	if err != nil {
		return nil, err
	}

	wf := &api.Workflow{
		Name:        api.Name(d.Name),
		ProjectName: d.Project,
		Mode:        api.Mode(d.Mode),
		Inputs:      api.ArgsFrom(d.Inputs),
		TaskDef:     defs[0],
	}
	if len(d.Files) > 0 {
		wf.Files = make(map[api.Name][]string, len(d.Files))
		for tag, paths := range d.Files {
			wf.Files[api.Name(tag)] = []string(paths)
		}
	}
	return wf, nil
}

// buildScope builds sibling nodes, then wires each node's parents by name
func buildScope(nodes []*Node) ([]api.TaskDef, error) {
	defs := make([]api.TaskDef, len(nodes))
	byName := make(map[string]api.TaskDef, len(nodes))
	for i, n := range nodes {
		if n == nil {
			return nil, fmt.Errorf("%w: empty node", ErrNodeKind)
		}
		if _, ok := byName[n.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, n.Name)
		}
		def, err := build(n)
		if err != nil {
			return nil, err
		}
		defs[i] = def
		byName[n.Name] = def
	}

	for i, n := range nodes {
		var parents []api.TaskDef
		for _, name := range n.Parents {
			p, ok := byName[name]
			if !ok || name == n.Name {
				return nil, fmt.Errorf("%w: %q of %q", ErrUnknownParent, name, n.Name)
			}
			parents = append(parents, p)
		}
		setParents(defs[i], parents)
	}
	return defs, nil
}

func build(n *Node) (api.TaskDef, error) {
	switch n.Kind() {
	case KindAction:
		return buildAction(n)
	case KindGroup:
		defs, err := buildScope(n.Tasks)
		if err != nil {
			return nil, err
		}
		return &api.GroupDef{Name: api.Name(n.Name), TaskDefs: defs}, nil
	case KindDuplicate:
		return buildDuplicate(n)
	default:
		return nil, fmt.Errorf("%w: %q", ErrNodeKind, n.Name)
	}
}

func buildAction(n *Node) (api.TaskDef, error) {
	if n.ArgsQuery != "" || n.KwargsQuery != "" {
		return nil, invalidField(n, "query")
	}
	kwargs, ok := asMap(n.Kwargs)
	if !ok {
		return nil, invalidField(n, "kwargs")
	}
	t := &api.ActionTask{
		Name:     api.Name(n.Name),
		Action:   n.Action,
		Args:     asArgs(n.Args),
		Kwargs:   kwargs,
		OutputTo: api.Name(n.OutputTo),
	}
	for _, tag := range n.Download {
		t.Download = append(t.Download, api.Name(tag))
	}
	if len(n.Upload) > 0 {
		t.Upload = make(map[api.Name][]string, len(n.Upload))
		for tag, patterns := range n.Upload {
			t.Upload[api.Name(tag)] = []string(patterns)
		}
	}
	if len(n.OutputExtraction) > 0 {
		t.OutputExtraction = make(map[api.Name]string, len(n.OutputExtraction))
		for tag, q := range n.OutputExtraction {
			t.OutputExtraction[api.Name(tag)] = q
		}
	}
	return t, nil
}

func buildDuplicate(n *Node) (api.TaskDef, error) {
	if len(n.Download) > 1 {
		return nil, invalidField(n, "download")
	}
	if n.Upload != nil || n.OutputTo != "" || n.OutputExtraction != nil {
		return nil, invalidField(n, "output")
	}
	inner, err := buildScope([]*Node{n.Task})
	if err != nil {
		return nil, err
	}

	d := &api.DuplicateDef{
		Name:        api.Name(n.Name),
		TaskDef:     inner[0],
		ArgsQuery:   n.ArgsQuery,
		KwargsQuery: n.KwargsQuery,
	}
	if len(n.Download) == 1 {
		d.Download = api.Name(n.Download[0])
	}
	switch v := n.Args.(type) {
	case nil:
	case []any:
		d.Args = v
	case string:
		d.ArgsQuery = v
	default:
		return nil, invalidField(n, "args")
	}
	switch v := n.Kwargs.(type) {
	case nil:
	case []any:
		d.Kwargs = v
	case string:
		d.KwargsQuery = v
	default:
		return nil, invalidField(n, "kwargs")
	}
	return d, nil
}

func setParents(def api.TaskDef, parents []api.TaskDef) {
	switch d := def.(type) {
	case *api.ActionTask:
		d.Parents = parents
	case *api.GroupDef:
		d.Parents = parents
	case *api.DuplicateDef:
		d.Parents = parents
	}
}

// asArgs turns a scalar or map into a one-element argument list
func asArgs(v any) []any {
	switch v := v.(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		return []any{v}
	}
}

func asMap(v any) (api.Args, bool) {
	switch v := v.(type) {
	case nil:
		return nil, true
	case map[string]any:
		return api.ArgsFrom(v), true
	default:
		return nil, false
	}
}

func invalidField(n *Node, field string) error {
	return fmt.Errorf("%w: %s of %q", ErrInvalidField, field, n.Name)
}
