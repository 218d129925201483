package model

import (
	"fmt"
	"sort"
	"strings"
)

// Profile holds the currently-known slot values for one session.
// Values are ints for SlotInt slots and strings otherwise.
type Profile map[string]any

// IsSet reports whether a key holds a real value. Absent keys, nil,
// empty strings and zero numbers all count as unset.
func (p Profile) IsSet(key string) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return false
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val) != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	}
	return true
}

// Set binds an explicit answer. Explicit answers are last-write-wins.
func (p Profile) Set(key string, value any) {
	p[key] = value
}

// Merge fills unset keys from an extracted partial map. Keys that already
// hold a value are never overwritten - a free-text interpretation must not
// silently replace an explicit prior answer.
func (p Profile) Merge(incoming map[string]any) {
	for key, value := range incoming {
		if p.IsSet(key) {
			continue
		}
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		p[key] = value
	}
}

// Clone returns a shallow copy of the profile
func (p Profile) Clone() Profile {
	out := make(Profile, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Int returns the value for key as an int when it is numeric
func (p Profile) Int(key string) (int, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	}
	return 0, false
}

// String returns the value for key rendered as a string
func (p Profile) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprintf("%v", v), true
}

// CacheKey renders the profile as a stable normalized string, used to key
// the recommendation result cache.
func (p Profile) CacheKey() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		if p.IsSet(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('|')
		}
		s, _ := p.String(k)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.ToLower(strings.TrimSpace(s)))
	}
	return b.String()
}
