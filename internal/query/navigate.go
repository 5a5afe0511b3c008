package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

// navigate follows path below value. Values reached through at least one
// segment are returned in their JSON form, so numbers become float64
func navigate(value any, path []Segment, src string) (any, error) {
	if len(path) == 0 {
		return value, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", api.ErrBadPath, src, err)
	}
	doc := gjson.ParseBytes(data)

	cur := doc
	for i, seg := range path {
		if !traversable(cur, seg) {
			return nil, fmt.Errorf("%w: %q: cannot apply %s to %s",
				api.ErrBadPath, src, segmentsString(path[:i+1]), cur.Type,
			)
		}
		next := cur.Get(gjsonKey(seg))
		if !next.Exists() {
			return nil, fmt.Errorf("%w: %q: %s not found",
				api.ErrBadPath, src, segmentsString(path[:i+1]),
			)
		}
		cur = next
	}
	return cur.Value(), nil
}

func traversable(r gjson.Result, seg Segment) bool {
	if seg.IsIndex {
		return r.IsArray() || r.IsObject()
	}
	if r.IsArray() {
		_, err := strconv.Atoi(seg.Key)
		return err == nil
	}
	return r.IsObject()
}

func gjsonKey(seg Segment) string {
	if seg.IsIndex {
		return strconv.Itoa(seg.Index)
	}
	var sb strings.Builder
	for _, c := range seg.Key {
		if !isPlainKeyRune(c) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

func isPlainKeyRune(c rune) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') || c > 127
}

func segmentsString(path []Segment) string {
	var sb strings.Builder
	sb.WriteByte('$')
	for _, s := range path {
		sb.WriteString(s.String())
	}
	return sb.String()
}
