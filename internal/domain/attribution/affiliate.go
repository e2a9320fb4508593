// Package attribution carries referral-partner identifiers through navigation.
//
// The URL is the only channel: an affiliate id is read from the current URL on
// every call and copied into outgoing same-origin links. Nothing is cached.
package attribution

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	// QueryParam is the query parameter that carries the affiliate id.
	QueryParam = "affiliate_id"

	// NoAffiliateID is the sentinel used when no valid affiliate is present.
	NoAffiliateID AffiliateID = "NO_AFFILIATE_ID"

	// MaxLength is the longest accepted affiliate id.
	MaxLength = 100
)

var affiliatePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// AffiliateID is an opaque referral partner token.
type AffiliateID string

// String returns the raw token
func (a AffiliateID) String() string {
	return string(a)
}

// IsPresent reports whether a real affiliate is attributed.
// The empty value and the sentinel both mean "no attribution".
func (a AffiliateID) IsPresent() bool {
	return a != "" && a != NoAffiliateID
}

// WarnFunc receives a candidate that was rejected during resolution.
type WarnFunc func(candidate string)

// Validate reports whether candidate is a well-formed affiliate id or the sentinel.
func Validate(candidate string) bool {
	if candidate == string(NoAffiliateID) {
		return true
	}
	return affiliatePattern.MatchString(candidate)
}

// Extract reads the affiliate_id parameter of current.
// It returns false when current is nil or carries no non-empty value.
func Extract(current *url.URL) (AffiliateID, bool) {
	if current == nil {
		return "", false
	}
	values, err := url.ParseQuery(current.RawQuery)
	if err != nil && len(values) == 0 {
		return "", false
	}
	v := values.Get(QueryParam)
	if v == "" {
		return "", false
	}
	return AffiliateID(v), true
}

// ExtractFromString parses raw and extracts the affiliate id from it.
// Unparseable input yields no affiliate.
func ExtractFromString(raw string) (AffiliateID, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	return Extract(u)
}

// Resolve always returns a usable affiliate id: the extracted value when valid,
// otherwise NoAffiliateID. Invalid candidates are reported to warn, if set.
func Resolve(current *url.URL, warn WarnFunc) AffiliateID {
	candidate, ok := Extract(current)
	if !ok {
		return NoAffiliateID
	}
	return Normalize(string(candidate), warn)
}

// Normalize applies the same downgrade rule as Resolve to an explicit value,
// such as an affiliate code posted in a request body. Empty input is not a warning.
func Normalize(candidate string, warn WarnFunc) AffiliateID {
	if candidate == "" {
		return NoAffiliateID
	}
	if !Validate(candidate) {
		if warn != nil {
			warn(candidate)
		}
		return NoAffiliateID
	}
	return AffiliateID(candidate)
}

// Propagate returns target with affiliate_id set to the affiliate resolved from current.
//
// target is returned unchanged when current carries no valid affiliate, when target
// points to a different origin than origin, when target already has an affiliate_id
// parameter, or when target cannot be parsed. If origin is nil the origin of current
// is used; absolute targets with no known origin are treated as cross-origin.
func Propagate(current, origin *url.URL, target string) string {
	affiliate := Resolve(current, nil)
	if !affiliate.IsPresent() {
		return target
	}
	return PropagateID(affiliate, origin, current, target)
}

// PropagateID is Propagate with an already-resolved affiliate.
func PropagateID(affiliate AffiliateID, origin, current *url.URL, target string) string {
	if !affiliate.IsPresent() || strings.TrimSpace(target) == "" {
		return target
	}

	t, err := url.Parse(target)
	if err != nil {
		return target
	}

	// Fragment-only links stay on the current document.
	if t.Scheme == "" && t.Host == "" && t.Path == "" && t.RawQuery == "" && t.Fragment != "" {
		return target
	}

	if !sameOrigin(t, origin, current) {
		return target
	}

	if hasParam(t.RawQuery, QueryParam) {
		return target
	}

	param := QueryParam + "=" + url.QueryEscape(affiliate.String())
	if t.RawQuery == "" {
		t.RawQuery = param
	} else {
		t.RawQuery = t.RawQuery + "&" + param
	}
	t.ForceQuery = false
	return t.String()
}

func sameOrigin(target, origin, current *url.URL) bool {
	if target.Scheme == "" && target.Host == "" {
		return true
	}

	ref := origin
	if ref == nil || ref.Host == "" {
		ref = current
	}
	if ref == nil || ref.Host == "" {
		return false
	}

	scheme := strings.ToLower(target.Scheme)
	if scheme == "" {
		// protocol-relative: //host/path
		scheme = strings.ToLower(ref.Scheme)
	}
	if scheme != strings.ToLower(ref.Scheme) {
		return false
	}
	return canonicalHost(scheme, target.Host) == canonicalHost(scheme, ref.Host)
}

func canonicalHost(scheme, host string) string {
	host = strings.ToLower(host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		return strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		return strings.TrimSuffix(host, ":443")
	}
	return host
}

func hasParam(rawQuery, name string) bool {
	if rawQuery == "" {
		return false
	}
	for _, pair := range strings.Split(rawQuery, "&") {
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if key == name {
			return true
		}
	}
	return false
}
