package lifecycle

import (
	"fmt"
	"net/url"
	"strings"
)

// LaunchPath is the URI host/path segment that requests a start or install.
const LaunchPath = "install-or-start"

// ParseLaunchURI extracts the raw game ID from
// "<scheme>://install-or-start/<id>". The ID itself is not validated.
func ParseLaunchURI(scheme, raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse uri: %w", err)
	}
	if !strings.EqualFold(u.Scheme, scheme) {
		return "", fmt.Errorf("unexpected scheme %q", u.Scheme)
	}
	// scheme://install-or-start/<id> puts the action in Host; scheme:install-or-start/<id>
	// leaves it in Opaque.
	rest := strings.Trim(u.Host+u.Path, "/")
	if rest == "" {
		rest = strings.Trim(u.Opaque, "/")
	}
	action, id, ok := strings.Cut(rest, "/")
	if !ok || !strings.EqualFold(action, LaunchPath) {
		return "", fmt.Errorf("unsupported uri path %q", rest)
	}
	id = strings.Trim(id, "/")
	if id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("missing or malformed game id in %q", rest)
	}
	return id, nil
}
