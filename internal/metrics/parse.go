package metrics

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseGauges scrapes a Prometheus text-exposition body and returns the
// value of every metric line as an integer count, keyed by metric name.
// It mirrors the demo's own stats scrape, and is also used by tests that
// want to assert on the wire format rather than internal gauge state.
// Lines starting with "#" (HELP/TYPE comments) are skipped; labels, if
// present, are ignored — callers needing label-aware parsing should use a
// real exposition-format parser instead.
func ParseGauges(r io.Reader) (map[string]uint64, error) {
	out := make(map[string]uint64)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, valueField, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		if i := strings.IndexByte(name, '{'); i >= 0 {
			name = name[:i]
		}
		valueField = strings.TrimSpace(valueField)
		if i := strings.IndexByte(valueField, ' '); i >= 0 {
			valueField = valueField[:i] // drop an optional trailing timestamp
		}
		f, err := strconv.ParseFloat(valueField, 64)
		if err != nil {
			return nil, fmt.Errorf("metrics: parse value for %q: %w", name, err)
		}
		out[name] = uint64(f)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("metrics: scan exposition body: %w", err)
	}
	return out, nil
}
