package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

const (
	RefPrint    = "builtins.print"
	RefLen      = "builtins.len"
	RefGlob     = "glob.glob"
	RefGetCwd   = "os.getcwd"
	RefCopyFile = "shutil.copyfile"
	RefSleep    = "time.sleep"

	kwSep = "sep"
	kwEnd = "end"
)

var (
	ErrMissingArgument = errors.New("missing argument")
	ErrInvalidArgument = errors.New("invalid argument")
)

var builtins = map[string]Invocable{
	RefPrint:    Func(printValues),
	RefLen:      Func(length),
	RefGlob:     Func(globFiles),
	RefGetCwd:   Func(getCwd),
	RefCopyFile: Func(copyFile),
	RefSleep:    Func(sleep),
}

func printValues(_ context.Context, c *Call) (any, error) {
	sep := " "
	if s, ok := c.Kwargs[kwSep].(string); ok {
		sep = s
	}
	end := "\n"
	if s, ok := c.Kwargs[kwEnd].(string); ok {
		end = s
	}

	parts := make([]string, len(c.Args))
	for i, arg := range c.Args {
		parts[i] = display(arg)
	}
	_, err := io.WriteString(c.Out(), strings.Join(parts, sep)+end)
	return nil, err
}

func length(_ context.Context, c *Call) (any, error) {
	v, ok := c.Arg(0)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingArgument, "value")
	}
	switch v := v.(type) {
	case string:
		return len([]rune(v)), nil
	case []any:
		return len(v), nil
	case []string:
		return len(v), nil
	case map[string]any:
		return len(v), nil
	case api.Args:
		return len(v), nil
	default:
		return nil, fmt.Errorf("%w: %T has no length", ErrInvalidArgument, v)
	}
}

func globFiles(_ context.Context, c *Call) (any, error) {
	pattern, err := stringArg(c, 0, "pattern")
	if err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(c.Path(pattern))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	slices.Sort(matches)

	res := make([]any, 0, len(matches))
	for _, m := range matches {
		if !filepath.IsAbs(pattern) && c.WorkDir != "" {
			if rel, err := filepath.Rel(c.WorkDir, m); err == nil {
				m = rel
			}
		}
		res = append(res, m)
	}
	return res, nil
}

func getCwd(_ context.Context, c *Call) (any, error) {
	if c.WorkDir != "" {
		return c.WorkDir, nil
	}
	return os.Getwd()
}

func copyFile(_ context.Context, c *Call) (any, error) {
	src, err := stringArg(c, 0, "src")
	if err != nil {
		return nil, err
	}
	dst, err := stringArg(c, 1, "dst")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.Path(src))
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(c.Path(dst), data, 0o644); err != nil {
		return nil, err
	}
	return dst, nil
}

func sleep(ctx context.Context, c *Call) (any, error) {
	v, ok := c.Arg(0)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingArgument, "seconds")
	}
	var secs float64
	switch v := v.(type) {
	case int:
		secs = float64(v)
	case float64:
		secs = v
	default:
		return nil, fmt.Errorf("%w: seconds must be a number", ErrInvalidArgument)
	}

	t := time.NewTimer(time.Duration(secs * float64(time.Second)))
	defer t.Stop()
	select {
	case <-t.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// stringArg reads a file name argument, by position or else by keyword. A
// one-element list is accepted so that storage queries, which resolve to
// name lists, can be passed as is
func stringArg(c *Call, i int, name string) (string, error) {
	v, ok := c.Arg(i)
	if !ok {
		v, ok = c.Kwargs[api.Name(name)]
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingArgument, name)
	}
	switch v := v.(type) {
	case string:
		return v, nil
	case []any:
		if len(v) == 1 {
			if s, ok := v[0].(string); ok {
				return s, nil
			}
		}
	case []string:
		if len(v) == 1 {
			return v[0], nil
		}
	}
	return "", fmt.Errorf("%w: %s must be a string", ErrInvalidArgument, name)
}

func display(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case nil:
		return "None"
	case []any, []string, map[string]any, map[int]any, api.Args:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	default:
		return fmt.Sprint(v)
	}
}
