package api

// Metadata contains additional context passed to action invocations
type Metadata map[string]any

const (
	MetaRunID      = "run_id"
	MetaInstanceID = "instance_id"
	MetaTaskName   = "task_name"
	MetaPath       = "duplication_path"
	MetaWorkDir    = "work_dir"
)

// Apply will merge the keys/values of the other metadata set into this one
func (m Metadata) Apply(other Metadata) Metadata {
	res := make(Metadata, len(m)+len(other))
	for k, v := range m {
		res[k] = v
	}
	for k, v := range other {
		res[k] = v
	}
	return res
}

// GetMetaString retrieves a non-empty string value from metadata
func GetMetaString[T ~string](meta Metadata, key string) (T, bool) {
	var zero T
	val, ok := meta[key]
	if !ok {
		return zero, false
	}

	switch v := val.(type) {
	case T:
		if v == "" {
			return zero, false
		}
		return v, true
	case string:
		if v == "" {
			return zero, false
		}
		return T(v), true
	default:
		return zero, false
	}
}
