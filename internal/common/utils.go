package common

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// HasAny returns true if s contains any of the substrings, ignoring case.
func HasAny(s string, subs ...string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// FirstNonEmpty returns the first value that is not blank.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// RedactURL hides credentials in query parameters so u can be logged.
func RedactURL(u *url.URL) string {
	q := u.Query()
	changed := false
	for k := range q {
		if HasAny(k, "appid", "key", "token", "secret") {
			q.Set(k, "xxxxx")
			changed = true
		}
	}
	if !changed {
		return u.String()
	}
	c := *u
	c.RawQuery = q.Encode()
	return c.String()
}

// RedactURLError returns err with the URL of its *url.Error redacted, since
// that message embeds the full request URL. The message of a wrapping error
// is fixed when it is created, so a wrapped *url.Error replaces the chain.
func RedactURLError(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	redacted := &url.Error{Op: uerr.Op, Err: uerr.Err}
	if u, perr := url.Parse(uerr.URL); perr == nil {
		redacted.URL = RedactURL(u)
	}
	if uerr == err {
		return redacted
	}
	if errors.Is(err, ErrTransport) {
		return fmt.Errorf("%w: %w", ErrTransport, redacted)
	}
	return redacted
}
