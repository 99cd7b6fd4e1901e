package collector

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
)

// Configuration is the merged key/value bag of local settings and the
// collector's connect response. It is immutable once built.
type Configuration struct {
	values map[string]any
}

// NewConfiguration overlays remote values on top of local settings
func NewConfiguration(local, remote map[string]any) Configuration {
	values := make(map[string]any, len(local)+len(remote))
	for k, v := range local {
		values[k] = v
	}
	for k, v := range remote {
		values[k] = v
	}
	return Configuration{values: values}
}

// Len returns the number of keys
func (c Configuration) Len() int {
	return len(c.values)
}

// Keys returns the sorted key set
func (c Configuration) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the raw value for key
func (c Configuration) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// String returns key as a string, or "" when absent
func (c Configuration) String(key string) string {
	switch v := c.values[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		s, err := sonic.MarshalString(v)
		if err != nil {
			return ""
		}
		return s
	}
}

// Int returns key as an integer
func (c Configuration) Int(key string) (int64, bool) {
	switch v := c.values[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Bool returns key as a boolean
func (c Configuration) Bool(key string) (bool, bool) {
	switch v := c.values[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	default:
		return false, false
	}
}

// Duration reads key as a number of seconds
func (c Configuration) Duration(key string) (time.Duration, bool) {
	if n, ok := c.values[key].(float64); ok {
		return time.Duration(n * float64(time.Second)), true
	}
	n, ok := c.Int(key)
	if !ok {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}

// Map returns a copy of all values
func (c Configuration) Map() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}
