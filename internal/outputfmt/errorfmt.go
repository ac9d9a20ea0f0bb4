// Package outputfmt prepares text for chat delivery: error sanitizing and
// length budgeting in the units Telegram counts.
package outputfmt

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	urlInTextRe  = regexp.MustCompile(`https?://[^\s"'<>]+`)
	botTokenRe   = regexp.MustCompile(`/bot\d+:[A-Za-z0-9_-]+`)
	redactedPart = "[redacted]"
)

// FormatError sanitizes err for a chat message. nil formats as "".
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeErrorText(err.Error())
}

// SanitizeErrorText drops URL hosts, redacts credential-like query values
// and masks Bot API tokens embedded in request paths.
func SanitizeErrorText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	out := urlInTextRe.ReplaceAllStringFunc(raw, stripURLHost)
	return botTokenRe.ReplaceAllString(out, "/bot"+redactedPart)
}

func stripURLHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if q := u.Query(); len(q) > 0 {
		for k := range q {
			if sensitiveKey(k) {
				q.Set(k, redactedPart)
			}
		}
		p += "?" + q.Encode()
	}
	if frag := u.EscapedFragment(); frag != "" {
		p += "#" + frag
	}
	return p
}

func sensitiveKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.NewReplacer("-", "", "_", "").Replace(k)
	if k == "" {
		return false
	}
	if k == "key" {
		return true
	}
	for _, needle := range []string{"apikey", "authorization", "token", "secret", "password", "cookie"} {
		if strings.Contains(k, needle) {
			return true
		}
	}
	return false
}
