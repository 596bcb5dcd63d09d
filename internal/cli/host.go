package cli

import (
	"fmt"
	"net/url"
	"strings"
)

// validateHostURL accepts a bare http(s) origin.
func validateHostURL(host string) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return fmt.Errorf("invalid host %q: host URL cannot be empty", host)
	}
	u, err := url.Parse(host)
	if err != nil {
		return fmt.Errorf("invalid host %q: %w", host, err)
	}
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return fmt.Errorf("invalid host %q: scheme must be http or https", host)
	case u.Host == "":
		return fmt.Errorf("invalid host %q: missing host", host)
	case u.Path != "" && u.Path != "/":
		return fmt.Errorf("invalid host %q: host must not include a path", host)
	case u.RawQuery != "" || u.Fragment != "":
		return fmt.Errorf("invalid host %q: host must not include query or fragment", host)
	}
	return nil
}
