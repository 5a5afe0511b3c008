package expand

import (
	"cmp"
	"slices"

	"github.com/OdaNilseng/FLSworkflow/internal/graph"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

type (
	// Instance is one concrete task produced by expansion. Args and Kwargs
	// hold the unresolved values after duplication overrides were applied
	Instance struct {
		Node     *graph.Node
		Kwargs   api.Args
		Pinned   map[api.Name]api.FileRef
		ID       api.InstanceID
		Path     api.Path
		Args     []any
		Download []api.Name
		Parents  []*Instance
		Children []*Instance
	}

	// Plan is the expanded instance graph of a run
	Plan struct {
		byID      map[api.InstanceID]*Instance
		instances []*Instance
	}
)

// Instances returns every instance ordered by definition then by
// duplication indices
func (p *Plan) Instances() []*Instance {
	return p.instances
}

// Instance returns the instance with the given ID
func (p *Plan) Instance(id api.InstanceID) (*Instance, bool) {
	inst, ok := p.byID[id]
	return inst, ok
}

// ByDef returns the instances expanded from one definition
func (p *Plan) ByDef(id api.DefID) []*Instance {
	var res []*Instance
	for _, inst := range p.instances {
		if inst.Node.ID == id {
			res = append(res, inst)
		}
	}
	return res
}

// Len returns the number of instances
func (p *Plan) Len() int {
	return len(p.instances)
}

// Action returns the definition of the instance's action
func (i *Instance) Action() *api.ActionTask {
	return i.Node.Action()
}

// Compare orders instances by definition ordinal, then duplication indices
func Compare(a, b *Instance) int {
	if c := cmp.Compare(a.Node.Ordinal, b.Node.Ordinal); c != 0 {
		return c
	}
	return a.Path.Compare(b.Path)
}

func (p *Plan) add(inst *Instance) {
	p.byID[inst.ID] = inst
	p.instances = append(p.instances, inst)
}

func (p *Plan) sort() {
	slices.SortStableFunc(p.instances, Compare)
}

func link(parent, child *Instance) {
	for _, c := range parent.Children {
		if c == child {
			return
		}
	}
	parent.Children = append(parent.Children, child)
	child.Parents = append(child.Parents, parent)
}
