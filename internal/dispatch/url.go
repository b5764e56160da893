package dispatch

import (
	"net/url"
	"strings"
)

// applyLanguage prepends the language prefix to the path of u, if the
// combination of the selected language and the domain's native language
// requires one.  Portuguese is the native language of the network, so it
// never gets a prefix on normal domains, selected explicitly or not.  For
// inverted-language domains English is the default and Portuguese is native.
func applyLanguage(u *url.URL, lang string, inverted bool) {
	if inverted {
		switch lang {
		case "", "en":
			prependPath(u, "en")
		case "pt":
			// Native language of an inverted domain.
		default:
			prependPath(u, lang)
		}

		return
	}

	if lang != "" && lang != "pt" {
		prependPath(u, lang)
	}
}

// prependPath prepends a single segment to the path of u, preserving the
// rest of the path.
func prependPath(u *url.URL, segment string) {
	u.Path = "/" + segment + u.Path
}

// utmPassthrough are the campaign parameters that are copied to the final
// URL only when present in the request, in the output order.
var utmPassthrough = []string{"utm_term", "utm_content", "fbclid", "gclid"}

// Campaign parameter defaults.
const (
	defaultUTMSource   = "redron"
	defaultUTMMedium   = "broadcast"
	defaultUTMCampaign = "direct"
)

// decorateQuery appends the campaign parameters to rawQuery in a fixed
// order, preserving whatever query the target URL already carries.  The
// campaign defaults to the link ID.
func decorateQuery(rawQuery string, query url.Values, linkID string) (decorated string) {
	sb := &strings.Builder{}
	sb.WriteString(rawQuery)

	appendParam(sb, "utm_source", orDefault(query.Get("utm_source"), defaultUTMSource))
	appendParam(sb, "utm_medium", orDefault(query.Get("utm_medium"), defaultUTMMedium))
	appendParam(
		sb,
		"utm_campaign",
		orDefault(query.Get("utm_campaign"), orDefault(linkID, defaultUTMCampaign)),
	)

	for _, key := range utmPassthrough {
		if v := query.Get(key); v != "" {
			appendParam(sb, key, v)
		}
	}

	return sb.String()
}

// appendParam writes one key-value pair into sb, separating it from the
// previous ones when necessary.
func appendParam(sb *strings.Builder, key, val string) {
	if sb.Len() > 0 {
		sb.WriteByte('&')
	}

	sb.WriteString(key)
	sb.WriteByte('=')
	sb.WriteString(url.QueryEscape(val))
}

// orDefault returns s if it is non-empty and def otherwise.
func orDefault(s, def string) (res string) {
	if s != "" {
		return s
	}

	return def
}
