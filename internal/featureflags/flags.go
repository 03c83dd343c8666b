// Package featureflags evaluates switches configured through FEATURE_FLAGS.
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Known flags.
const (
	// ThreadsFullDepth nests replies to any depth instead of one level.
	ThreadsFullDepth = "threads_full_depth"
)

// Flags holds parsed flag values. The zero value and nil have every flag off.
//
// The raw form is a comma separated list such as
// "threads_full_depth=on,other=25%". Percentages roll a flag out to a stable
// subset of subjects (post ids for thread rendering).
type Flags struct {
	values map[string]string
}

// Parse reads a raw flag list. Malformed pairs are skipped.
func Parse(raw string) *Flags {
	values := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		values[key] = value
	}
	return &Flags{values: values}
}

// Enabled reports whether name is on for subject. Subject 0 only matches
// flags that are fully on.
func (f *Flags) Enabled(name string, subject uint) bool {
	if f == nil {
		return false
	}
	value, ok := f.values[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pct, ok := percent(value)
	switch {
	case !ok || pct <= 0:
		return false
	case pct >= 100:
		return true
	case subject == 0:
		return false
	}
	return bucket(name, subject) < pct
}

// Values returns a copy of the configured raw values.
func (f *Flags) Values() map[string]string {
	out := make(map[string]string)
	if f == nil {
		return out
	}
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

func percent(value string) (int, bool) {
	raw, ok := strings.CutSuffix(value, "%")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, subject uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + strconv.FormatUint(uint64(subject), 10)))
	return int(h.Sum32() % 100)
}
