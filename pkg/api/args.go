package api

import "maps"

type (
	// Args represents a map of named arguments passed to or from actions
	Args map[Name]any

	// Name is a string identifier for tasks, tags and keyword arguments
	Name string
)

// ArgsFrom converts a decoded JSON-style object into Args
func ArgsFrom(m map[string]any) Args {
	if m == nil {
		return nil
	}
	res := make(Args, len(m))
	for k, v := range m {
		res[Name(k)] = v
	}
	return res
}

// Set creates a new Args with the specified name-value pair added
func (a Args) Set(name Name, value any) Args {
	if a == nil {
		return Args{name: value}
	}
	res := maps.Clone(a)
	res[name] = value
	return res
}

// Merge returns a new Args holding the receiver's entries overlaid by
// other's. Keys present in other win
func (a Args) Merge(other Args) Args {
	res := make(Args, len(a)+len(other))
	maps.Copy(res, a)
	maps.Copy(res, other)
	return res
}

// Plain converts Args into a map keyed by plain strings
func (a Args) Plain() map[string]any {
	if a == nil {
		return nil
	}
	res := make(map[string]any, len(a))
	for k, v := range a {
		res[string(k)] = v
	}
	return res
}

// GetString retrieves a string value from args, returning defaultValue if not
// found or wrong type
func (a Args) GetString(name Name, defaultValue string) string {
	val, ok := a[name]
	if !ok {
		return defaultValue
	}
	str, ok := val.(string)
	if !ok {
		return defaultValue
	}
	return str
}

// GetBool retrieves a boolean value from args, returning defaultValue if not
// found or wrong type
func (a Args) GetBool(name Name, defaultValue bool) bool {
	val, ok := a[name]
	if !ok {
		return defaultValue
	}
	b, ok := val.(bool)
	if !ok {
		return defaultValue
	}
	return b
}

// GetInt retrieves an integer value from args, returning defaultValue if not
// found or wrong type. Float values are truncated
func (a Args) GetInt(name Name, defaultValue int) int {
	val, ok := a[name]
	if !ok {
		return defaultValue
	}
	switch v := val.(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return defaultValue
	}
}

// GetFloat retrieves a numeric value from args as a float64, returning
// defaultValue if not found or wrong type
func (a Args) GetFloat(name Name, defaultValue float64) float64 {
	val, ok := a[name]
	if !ok {
		return defaultValue
	}
	switch v := val.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return defaultValue
	}
}
