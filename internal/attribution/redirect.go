package attribution

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// RefParam carries the attribution code on the destination URL.
	RefParam = "ref"
	// ClickIDParam carries the click id on the destination URL.
	ClickIDParam = "click_id"

	// RefCookie holds the attribution code for cookie-only conversion pixels.
	RefCookie = "aff_ref"
	// ClickCookie holds the originating click id.
	ClickCookie = "aff_click"

	// CookieLifetime is how long attribution survives on the visitor's browser.
	CookieLifetime = 30 * 24 * time.Hour
)

// CookieConfig scopes attribution cookies.
type CookieConfig struct {
	// Domain is the root domain the cookie is shared with. Empty means host-only.
	Domain string
	Secure bool
}

// BuildRedirectTarget appends the attribution code and, when known, the click id to
// destination. The existing query string is kept byte for byte, in order, except for
// stale ref and click_id pairs. Destinations that do not parse get the parameters
// concatenated verbatim.
func BuildRedirectTarget(destination string, code Code, clickID ClickID) string {
	u, err := url.Parse(destination)
	if err != nil {
		return appendParamsNaive(destination, code, clickID)
	}

	pairs := make([]string, 0, 4)

	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" || isAttributionParam(pair) {
			continue
		}

		pairs = append(pairs, pair)
	}

	pairs = append(pairs, RefParam+"="+url.QueryEscape(string(code)))
	if clickID != 0 {
		pairs = append(pairs, ClickIDParam+"="+strconv.FormatInt(int64(clickID), 10))
	}

	u.RawQuery = strings.Join(pairs, "&")
	u.ForceQuery = false

	return u.String()
}

func isAttributionParam(pair string) bool {
	key, _, _ := strings.Cut(pair, "=")
	if unescaped, err := url.QueryUnescape(key); err == nil {
		key = unescaped
	}

	return key == RefParam || key == ClickIDParam
}

func appendParamsNaive(destination string, code Code, clickID ClickID) string {
	sep := "?"
	if strings.Contains(destination, "?") {
		sep = "&"
	}

	target := destination + sep + RefParam + "=" + url.QueryEscape(string(code))
	if clickID != 0 {
		target += "&" + ClickIDParam + "=" + strconv.FormatInt(int64(clickID), 10)
	}

	return target
}

// AttributionCookie returns the long-lived cookie carrying the attribution code.
// It is readable by scripts so the snippet can forward the code itself.
func AttributionCookie(code Code, cfg CookieConfig, now time.Time) *http.Cookie {
	return newTrackingCookie(RefCookie, string(code), cfg, now)
}

// ClickIDCookie returns the cookie carrying the originating click id.
func ClickIDCookie(clickID ClickID, cfg CookieConfig, now time.Time) *http.Cookie {
	return newTrackingCookie(ClickCookie, strconv.FormatInt(int64(clickID), 10), cfg, now)
}

func newTrackingCookie(name, value string, cfg CookieConfig, now time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   cfg.Domain,
		Expires:  now.Add(CookieLifetime),
		MaxAge:   int(CookieLifetime.Seconds()),
		Secure:   cfg.Secure,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	}
}

// ParseClickID parses a click id from a query parameter or cookie. Invalid values
// yield zero.
func ParseClickID(s string) ClickID {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id < 0 {
		return 0
	}

	return ClickID(id)
}
