package flow

import (
	"net/url"
	"strings"
)

// validAbsoluteURL reports whether raw parses as an absolute URL with a host.
func validAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.IsAbs() && u.Host != ""
}

// parseDomainList splits a comma-separated domain list, trimming whitespace,
// dropping empties, and lower-casing so membership checks are case-insensitive.
func parseDomainList(raw string) []string {
	if raw == "" {
		return nil
	}
	var domains []string
	for _, d := range strings.Split(raw, ",") {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}

func containsDomain(domains []string, domain string) bool {
	for _, d := range domains {
		if d == domain {
			return true
		}
	}
	return false
}

// emailDomain returns the lower-cased part after the last '@', or "" when the
// address has no domain part.
func emailDomain(email string) string {
	idx := strings.LastIndex(email, "@")
	if idx < 0 || idx == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[idx+1:])
}

// deriveDisplayName falls back to the local part of the email, lower-cased with
// the first letter capitalized, when the profile carries no display name.
func deriveDisplayName(email string) string {
	local := email
	if idx := strings.Index(email, "@"); idx >= 0 {
		local = email[:idx]
	}
	local = strings.ToLower(local)
	if local == "" {
		return ""
	}
	return strings.ToUpper(local[:1]) + local[1:]
}
