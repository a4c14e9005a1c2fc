package farm

import (
	"strconv"
	"strings"
)

// Table maps vendor names to canonical names.
type Table map[string]string

// Lookup returns the mapped name, or name itself when unmapped.
func (t Table) Lookup(name string) string {
	if mapped, ok := t[name]; ok {
		return mapped
	}
	return name
}

// ParseVersion converts a vendor version ("25", "25.0", "10.1") to its
// integer part. Non-numeric versions such as "latest" yield 0.
func ParseVersion(v string) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return int(f)
}
