package attribution

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeDestination validates an advertiser destination and normalizes it:
//   - only absolute http and https URLs with a host are accepted
//   - scheme and host are lowercased
//   - default ports (80 for http, 443 for https) are removed
//   - the fragment is dropped
func NormalizeDestination(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidDestination, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme must be http or https", ErrInvalidDestination)
	}

	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidDestination)
	}

	u.Host = strings.ToLower(u.Host)

	host := u.Host
	if strings.HasSuffix(host, ":80") && u.Scheme == "http" {
		u.Host = strings.TrimSuffix(host, ":80")
	} else if strings.HasSuffix(host, ":443") && u.Scheme == "https" {
		u.Host = strings.TrimSuffix(host, ":443")
	}

	u.Fragment = ""

	return u.String(), nil
}
