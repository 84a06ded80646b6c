package internal

import (
	"fmt"
	"os"
	"strings"
)

// loadSiteWKT interprets s as a WKT geometry literal, or, when it names an
// existing file, as a path to one.
func loadSiteWKT(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if _, err := os.Stat(s); err == nil {
		data, err := os.ReadFile(s)
		if err != nil {
			return "", fmt.Errorf("read site file: %w", err)
		}
		s = string(data)
	}
	wkt := strings.TrimSpace(s)
	if !strings.Contains(wkt, "(") {
		return "", fmt.Errorf("site %q does not look like WKT", wkt)
	}
	return wkt, nil
}
