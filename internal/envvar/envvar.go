// Package envvar normalizes, masks and merges service environment variables.
//
// Secret values never leave the engine in plaintext: client-facing output
// goes through Mask, and updates coming back from a client go through Merge
// so a masked or blank secret keeps its stored value.
package envvar

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// MaskToken replaces the value of every secret entry in client output.
const MaskToken = "********"

type EnvVar struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Secret bool   `json:"secret"`
}

// UnmarshalJSON accepts loosely typed input from clients: a null or missing
// value becomes "", numbers and booleans in value are kept as text, and
// secret may be a bool, a number or a string such as "true" / "1".
func (e *EnvVar) UnmarshalJSON(b []byte) error {
	var raw struct {
		Key    json.RawMessage `json:"key"`
		Value  json.RawMessage `json:"value"`
		Secret json.RawMessage `json:"secret"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = EnvVar{
		Key:    scalarText(raw.Key),
		Value:  scalarText(raw.Value),
		Secret: truthy(raw.Secret),
	}
	return nil
}

func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		parsed, err := strconv.ParseBool(strings.TrimSpace(s))
		return err == nil && parsed
	}
	return false
}

// Normalize drops entries without a key and trims surrounding whitespace
// from keys. It is idempotent.
func Normalize(list []EnvVar) []EnvVar {
	out := make([]EnvVar, 0, len(list))
	for _, e := range list {
		key := strings.TrimSpace(e.Key)
		if key == "" {
			continue
		}
		out = append(out, EnvVar{Key: key, Value: e.Value, Secret: e.Secret})
	}
	return out
}

// Mask returns a copy of list with secret values replaced by MaskToken.
// The result must never be persisted as real input.
func Mask(list []EnvVar) []EnvVar {
	if list == nil {
		return nil
	}
	out := make([]EnvVar, len(list))
	for i, e := range list {
		if e.Secret {
			e.Value = MaskToken
		}
		out[i] = e
	}
	return out
}

// Merge resolves an incoming list against the stored one. A secret entry
// whose incoming value is the mask token or empty keeps the stored value if
// the stored entry under the same key was also secret. Everything else takes
// the incoming value. Duplicate keys collapse to the last value, at the
// position of their first occurrence.
func Merge(incoming, existing []EnvVar) []EnvVar {
	stored := make(map[string]EnvVar, len(existing))
	for _, e := range Normalize(existing) {
		stored[e.Key] = e
	}

	out := make([]EnvVar, 0, len(incoming))
	index := make(map[string]int, len(incoming))
	for _, e := range Normalize(incoming) {
		if e.Secret && (e.Value == MaskToken || e.Value == "") {
			if prev, ok := stored[e.Key]; ok && prev.Secret {
				e.Value = prev.Value
			}
		}
		if i, ok := index[e.Key]; ok {
			out[i] = e
			continue
		}
		index[e.Key] = len(out)
		out = append(out, e)
	}
	return out
}

// Overlay layers overrides on top of defaults by key without any secret
// handling. Template defaults go in first, request values win.
func Overlay(defaults, overrides []EnvVar) []EnvVar {
	combined := make([]EnvVar, 0, len(defaults)+len(overrides))
	combined = append(combined, defaults...)
	combined = append(combined, overrides...)
	return Merge(combined, nil)
}

// Lookup returns the value stored under key.
func Lookup(list []EnvVar, key string) (string, bool) {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Key == key {
			return list[i].Value, true
		}
	}
	return "", false
}

// ToEnviron renders the list in KEY=VALUE form for the container runtime.
func ToEnviron(list []EnvVar) []string {
	out := make([]string, 0, len(list))
	for _, e := range Normalize(list) {
		out = append(out, e.Key+"="+e.Value)
	}
	return out
}
