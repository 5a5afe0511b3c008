package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

type (
	// Projects resolves project names to their storage configuration
	Projects struct {
		byName map[string]api.ProjectConfig
		mu     sync.RWMutex
	}

	projectsFile struct {
		Projects []api.ProjectConfig `yaml:"projects"`
	}
)

var (
	ErrUnknownProject   = errors.New("unknown project")
	ErrInvalidProject   = errors.New("invalid project")
	ErrProjectsFileRead = errors.New("failed to read projects file")
)

// NewProjects creates a resolver over the given projects
func NewProjects(projects ...api.ProjectConfig) *Projects {
	p := &Projects{byName: map[string]api.ProjectConfig{}}
	for _, pc := range projects {
		p.byName[pc.Name] = pc
	}
	return p
}

// Projects builds the project resolver described by the configuration: the
// default project, then any projects listed in ProjectsFile
func (c *Config) Projects() (*Projects, error) {
	p := NewProjects()
	if c.Project != "" {
		if err := p.Add(api.ProjectConfig{
			Name:      c.Project,
			BucketURL: c.BucketURL,
		}); err != nil {
			return nil, err
		}
	}
	if c.ProjectsFile == "" {
		return p, nil
	}

	loaded, err := LoadProjectsFile(c.ProjectsFile)
	if err != nil {
		return nil, err
	}
	for _, pc := range loaded {
		if err := p.Add(pc); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// LoadProjectsFile reads a YAML document holding a projects list
func LoadProjectsFile(path string) ([]api.ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProjectsFileRead, err)
	}
	var f projectsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProjectsFileRead, path, err)
	}
	return f.Projects, nil
}

// Add registers a project, replacing any project of the same name
func (p *Projects) Add(pc api.ProjectConfig) error {
	if pc.Name == "" || pc.BucketURL == "" {
		return fmt.Errorf("%w: name and bucket_url are required", ErrInvalidProject)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byName[pc.Name] = pc
	return nil
}

// Resolve returns the configuration of the named project
func (p *Projects) Resolve(name string) (api.ProjectConfig, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pc, ok := p.byName[name]
	if !ok {
		return api.ProjectConfig{}, fmt.Errorf("%w: %s", ErrUnknownProject, name)
	}
	return pc, nil
}

// Names returns the registered project names, sorted
func (p *Projects) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	res := make([]string, 0, len(p.byName))
	for name := range p.byName {
		res = append(res, name)
	}
	slices.Sort(res)
	return res
}
