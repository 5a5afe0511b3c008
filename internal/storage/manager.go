package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/OdaNilseng/FLSworkflow/internal/query"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
	"github.com/OdaNilseng/FLSworkflow/pkg/util"
)

type (
	// Manager maintains the tagged file sets of one run
	Manager struct {
		bucket *Bucket
		store  *query.Store[[]api.FileRef]
		runID  api.RunID
		mu     sync.Mutex
	}

	// Pending holds matched files, invisible to queries until committed
	Pending struct {
		files map[api.Name][]api.FileRef
		data  map[string][]byte
		at    api.Path
	}
)

const rootPathKey = "root"

// NewManager creates the storage manager for a run, keeping file content
// in bucket
func NewManager(bucket *Bucket, runID api.RunID) *Manager {
	return &Manager{
		bucket: bucket,
		store:  query.NewStore[[]api.FileRef](api.ErrTagConflict),
		runID:  runID,
	}
}

// Seed registers the run's initial uploads at the root path
func (m *Manager) Seed(ctx context.Context, files map[api.Name][]string) error {
	p := newPending(nil)
	for _, tag := range sortedTags(files) {
		if err := m.add(p, tag, files[tag]); err != nil {
			return err
		}
	}
	return m.Commit(ctx, p)
}

// Files returns the files of tag visible from the root path
func (m *Manager) Files(tag api.Name) ([]api.FileRef, error) {
	return m.visible(tag, nil)
}

// Scoped returns the base names of the files of tag as seen from path at,
// following the query scoping rules
func (m *Manager) Scoped(tag api.Name, at api.Path) (any, error) {
	return m.store.Scoped(tag, at, fileNames, api.ErrTagNotFound)
}

// Stage copies every file visible to an instance for the given download
// tags into dir. A pinned file replaces the tag's visible set
func (m *Manager) Stage(
	ctx context.Context, tags []api.Name, at api.Path,
	pinned map[api.Name]api.FileRef, dir string,
) error {
	var refs []api.FileRef
	for _, tag := range tags {
		if ref, ok := pinned[tag]; ok {
			refs = append(refs, ref)
			continue
		}
		vis, err := m.visible(tag, at)
		if err != nil {
			return err
		}
		refs = append(refs, vis...)
	}

	names := util.Set[string]{}
	for _, ref := range refs {
		if names.Contains(ref.Name) {
			return fmt.Errorf("%w: %q staged twice", api.ErrNameConflict, ref.Name)
		}
		names.Add(ref.Name)
	}

	for _, ref := range refs {
		data, err := m.bucket.Get(ctx, ref.Key)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", api.ErrStorage, ref.Key, err)
		}
		dst := filepath.Join(dir, ref.Name)
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return fmt.Errorf("%w: %w", api.ErrStorage, err)
		}
	}
	return nil
}

// Collect registers the files named by an instance's upload specification.
// Query expressions are evaluated against the action result and must name
// files, anything else is a glob pattern matched in dir
func (m *Manager) Collect(
	ctx context.Context, upload map[api.Name][]string, result any,
	at api.Path, dir string,
) error {
	p, err := m.Match(upload, result, at, dir)
	if err != nil {
		return err
	}
	return m.Commit(ctx, p)
}

// Match resolves an upload specification into a Pending set. Every tag
// must match at least one file
func (m *Manager) Match(
	upload map[api.Name][]string, result any, at api.Path, dir string,
) (*Pending, error) {
	p := newPending(at)
	for _, tag := range sortedTags(upload) {
		paths, err := matchUpload(upload[tag], result, dir)
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("%w: %q", api.ErrNoFilesMatched, tag)
		}
		if err := m.add(p, tag, paths); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Commit stores the content of p and makes its files visible. When it
// fails, none of them are
func (m *Manager) Commit(ctx context.Context, p *Pending) error {
	if p.empty() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Check(p.at, p.tags()...); err != nil {
		return err
	}
	var written []api.FileRef
	for _, ref := range p.refs() {
		if err := m.bucket.Put(ctx, ref.Key, p.data[ref.Key]); err != nil {
			_ = m.deleteBlobs(ctx, written)
			return fmt.Errorf("%w: %w", api.ErrStorage, err)
		}
		written = append(written, ref)
	}
	return m.store.PutAll(p.at, p.files)
}

// Discard withdraws the files of a committed Pending set
func (m *Manager) Discard(ctx context.Context, p *Pending) error {
	if p.empty() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store.Remove(p.at, p.tags()...)
	return m.deleteBlobs(ctx, p.refs())
}

// FileList returns every file stored during the run
func (m *Manager) FileList() []api.FileRef {
	var res []api.FileRef
	for _, refs := range m.store.All() {
		res = append(res, refs...)
	}
	return res
}

// Read returns the content of a stored file
func (m *Manager) Read(ctx context.Context, ref api.FileRef) ([]byte, error) {
	return m.bucket.Get(ctx, ref.Key)
}

func (m *Manager) visible(tag api.Name, at api.Path) ([]api.FileRef, error) {
	sets, err := m.store.Visible(tag, at, api.ErrStorageTagNotFound)
	if err != nil {
		if m.store.Has(tag) {
			return nil, fmt.Errorf("%w: %w", api.ErrStorageTagNotFound, err)
		}
		return nil, err
	}
	var res []api.FileRef
	for _, refs := range sets {
		res = append(res, refs...)
	}
	return res, nil
}

func (m *Manager) add(p *Pending, tag api.Name, paths []string) error {
	names := util.Set[string]{}
	refs := make([]api.FileRef, 0, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		if names.Contains(name) {
			return fmt.Errorf("%w: %q in tag %q", api.ErrNameConflict, name, tag)
		}
		names.Add(name)

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: %w", api.ErrStorage, err)
		}
		ref := api.FileRef{
			Tag:  tag,
			Name: name,
			Path: p.at,
			Key:  m.keyFor(tag, p.at, name),
		}
		p.data[ref.Key] = data
		refs = append(refs, ref)
	}
	p.files[tag] = refs
	return nil
}

func (m *Manager) deleteBlobs(ctx context.Context, refs []api.FileRef) error {
	var errs []error
	for _, ref := range refs {
		if err := m.bucket.Delete(ctx, ref.Key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) keyFor(tag api.Name, at api.Path, name string) string {
	parts := []string{string(m.runID), url.PathEscape(string(tag))}
	if len(at) == 0 {
		parts = append(parts, rootPathKey)
	}
	for _, seg := range at {
		parts = append(parts, url.PathEscape(seg.Key()))
	}
	parts = append(parts, name)
	return strings.Join(parts, "/")
}

func newPending(at api.Path) *Pending {
	return &Pending{
		files: map[api.Name][]api.FileRef{},
		data:  map[string][]byte{},
		at:    at,
	}
}

func (p *Pending) empty() bool {
	return p == nil || len(p.files) == 0
}

func (p *Pending) tags() []api.Name {
	return sortedTags(p.files)
}

func (p *Pending) refs() []api.FileRef {
	var res []api.FileRef
	for _, tag := range p.tags() {
		res = append(res, p.files[tag]...)
	}
	return res
}

func matchUpload(patterns []string, result any, dir string) ([]string, error) {
	var res []string
	seen := util.Set[string]{}
	add := func(p string) {
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		if !seen.Contains(p) {
			seen.Add(p)
			res = append(res, p)
		}
	}

	for _, pattern := range patterns {
		if query.IsQuery(pattern) {
			v, err := query.Extract(pattern, result)
			if err != nil {
				return nil, err
			}
			names, err := fileList(v)
			if err != nil {
				return nil, err
			}
			for _, n := range names {
				add(n)
			}
			continue
		}
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", api.ErrStorage, pattern, err)
		}
		for _, match := range matches {
			if info, err := os.Stat(match); err == nil && info.Mode().IsRegular() {
				add(match)
			}
		}
	}
	return res, nil
}

func fileList(v any) ([]string, error) {
	switch v := v.(type) {
	case string:
		return []string{v}, nil
	case []any:
		res := make([]string, 0, len(v))
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok {
				return nil, fmt.Errorf("%w: upload value %v is not a file name",
					api.ErrStorage, elem,
				)
			}
			res = append(res, s)
		}
		return res, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: upload value %v is not a file name",
			api.ErrStorage, v,
		)
	}
}

func fileNames(refs []api.FileRef) any {
	res := make([]any, len(refs))
	for i, ref := range refs {
		res[i] = ref.Name
	}
	return res
}

func sortedTags[T any](m map[api.Name]T) []api.Name {
	res := make([]api.Name, 0, len(m))
	for tag := range m {
		res = append(res, tag)
	}
	slices.Sort(res)
	return res
}
