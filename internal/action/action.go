package action

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

type (
	// Call carries the resolved inputs of a single action invocation
	Call struct {
		Kwargs   api.Args
		Metadata api.Metadata
		Stdout   io.Writer
		WorkDir  string
		Args     []any
	}

	// Invocable is a unit of work that an action reference resolves to
	Invocable interface {
		Invoke(ctx context.Context, c *Call) (any, error)
	}

	// Func adapts a plain function to the Invocable interface
	Func func(ctx context.Context, c *Call) (any, error)

	// Registry resolves action references. Named actions are looked up
	// directly, prefixed references are compiled or bound on first use
	Registry struct {
		named map[string]Invocable
		lua   *LuaEnv
		ale   *AleEnv
		http  *HTTPClient
		mu    sync.RWMutex
	}
)

const (
	LuaPrefix   = "lua:"
	AlePrefix   = "ale:"
	HTTPPrefix  = "http://"
	HTTPSPrefix = "https://"

	DefaultHTTPTimeout = 30 * time.Second
)

var _ Invocable = Func(nil)

// NewRegistry creates a Registry holding the built-in actions
func NewRegistry(httpTimeout time.Duration) *Registry {
	r := &Registry{
		named: map[string]Invocable{},
		lua:   NewLuaEnv(),
		ale:   NewAleEnv(),
		http:  NewHTTPClient(httpTimeout),
	}
	for ref, fn := range builtins {
		r.named[ref] = fn
	}
	return r
}

// Register binds ref to fn, replacing any previous binding
func (r *Registry) Register(ref string, fn Invocable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.named[ref] = fn
}

// Resolve returns the invocable for ref
func (r *Registry) Resolve(ref string) (Invocable, error) {
	r.mu.RLock()
	fn, ok := r.named[ref]
	r.mu.RUnlock()
	if ok {
		return fn, nil
	}

	switch {
	case strings.HasPrefix(ref, LuaPrefix):
		return r.lua.Compile(strings.TrimPrefix(ref, LuaPrefix))
	case strings.HasPrefix(ref, AlePrefix):
		return r.ale.Compile(strings.TrimPrefix(ref, AlePrefix))
	case strings.HasPrefix(ref, HTTPPrefix), strings.HasPrefix(ref, HTTPSPrefix):
		if _, err := url.ParseRequestURI(ref); err != nil {
			return nil, fmt.Errorf("%w: %q: %w", api.ErrActionNotFound, ref, err)
		}
		return r.http.Endpoint(ref), nil
	default:
		return nil, fmt.Errorf("%w: %q", api.ErrActionNotFound, ref)
	}
}

// Refs returns the names of every registered action
func (r *Registry) Refs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]string, 0, len(r.named))
	for ref := range r.named {
		res = append(res, ref)
	}
	return res
}

// Invoke calls f
func (f Func) Invoke(ctx context.Context, c *Call) (any, error) {
	return f(ctx, c)
}

// Arg returns the positional argument at index i
func (c *Call) Arg(i int) (any, bool) {
	if i < 0 || i >= len(c.Args) {
		return nil, false
	}
	return c.Args[i], true
}

// Out returns the writer console output goes to
func (c *Call) Out() io.Writer {
	if c.Stdout == nil {
		return os.Stdout
	}
	return c.Stdout
}

// Path resolves a file name against the call's working directory
func (c *Call) Path(name string) string {
	if c.WorkDir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.WorkDir, name)
}

type syncWriter struct {
	w  io.Writer
	mu sync.Mutex
}

// SyncWriter wraps w so that concurrent actions never interleave a single
// write
func SyncWriter(w io.Writer) io.Writer {
	if _, ok := w.(*syncWriter); ok {
		return w
	}
	return &syncWriter{w: w}
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
