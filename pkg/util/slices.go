package util

import (
	"strings"

	"github.com/samber/lo"
)

// SliceToMap turns key=value pairs into a map. A pair without "=" maps the
// whole string to an empty value; later keys win.
func SliceToMap(slice []string) map[string]string {
	return lo.SliceToMap(slice, func(s string) (string, string) {
		key, value, _ := strings.Cut(s, "=")
		return strings.TrimSpace(key), value
	})
}
