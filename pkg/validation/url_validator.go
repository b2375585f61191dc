package validation

import (
	"net/url"
	"slices"
	"strings"

	apperrors "go-roi-inspector/internal/errors"
)

// URLValidator checks remote template references: http(s) URLs and
// azblob://container/path blob references.
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewURLValidator creates a new URL validator with default settings
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https", "azblob"},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewURLValidatorWithOptions creates a URL validator with custom options
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	return &URLValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// IsRemote reports whether ref looks like a URL rather than a file path.
// Single letter schemes are Windows drive letters.
func IsRemote(ref string) bool {
	u, err := url.Parse(strings.TrimSpace(ref))
	return err == nil && len(u.Scheme) > 1
}

// ValidateTemplateURL validates a remote template reference.
func (v *URLValidator) ValidateTemplateURL(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return apperrors.NewInvalidInputError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(ref)
	if err != nil {
		return apperrors.NewInvalidInputError("Invalid URL format", err)
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return apperrors.NewInvalidInputError("URL scheme not allowed", nil)
	}

	if parsedURL.Host == "" {
		return apperrors.NewInvalidInputError("URL must have a valid host", nil)
	}

	if len(v.allowedHosts) > 0 && !v.isHostAllowed(parsedURL.Host) {
		return apperrors.NewInvalidInputError("URL host not allowed", nil)
	}

	// the host names the container, the path the blob
	if parsedURL.Scheme == "azblob" && strings.Trim(parsedURL.Path, "/") == "" {
		return apperrors.NewInvalidInputError("Blob reference must name a blob", nil)
	}

	return nil
}

// isSchemeAllowed checks if the URL scheme is in the allowed list
func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	return slices.Contains(v.allowedSchemes, strings.ToLower(scheme))
}

// isHostAllowed checks if the URL host is in the allowed list
// Returns true if no host restrictions are set (empty allowedHosts)
func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	return slices.Contains(v.allowedHosts, host)
}
