// Package avurl splits media URLs the way FFmpeg's av_url_split does and
// produces printable forms that never leak embedded credentials.
package avurl

import "strings"

// URL is a split media URL. Rest holds everything after the userinfo:
// host, port, path, query and fragment.
type URL struct {
	HasSchema bool
	Schema    string
	Slashes   int
	Userinfo  string
	HasAt     bool
	Rest      string
}

// Split breaks url into its components. Join(Split(u)) == u for every input.
func Split(url string) URL {
	var u URL

	colon := strings.IndexByte(url, ':')
	if colon == -1 {
		u.Rest = url
		return u
	}
	u.HasSchema = true
	u.Schema = url[:colon]
	cursor := colon + 1
	for u.Slashes < 2 && cursor < len(url) && url[cursor] == '/' {
		cursor++
		u.Slashes++
	}

	// authority ends at the first '/', '?' or '#'
	pathAt := len(url)
	if idx := strings.IndexAny(url[cursor:], "/?#"); idx != -1 {
		pathAt = cursor + idx
	}

	// userinfo runs up to the last '@' inside the authority
	if at := strings.LastIndexByte(url[cursor:pathAt], '@'); at != -1 {
		u.HasAt = true
		u.Userinfo = url[cursor : cursor+at]
		cursor += at + 1
	}
	u.Rest = url[cursor:]
	return u
}

// Join reassembles u into a URL string.
func Join(u URL) string {
	var b strings.Builder
	if u.HasSchema {
		b.WriteString(u.Schema)
		b.WriteByte(':')
		b.WriteString(strings.Repeat("/", u.Slashes))
	}
	if u.HasAt {
		b.WriteString(u.Userinfo)
		b.WriteByte('@')
	}
	b.WriteString(u.Rest)
	return b.String()
}

// Printable masks the username and password of url as "xxx:yyy".
// URLs without userinfo are returned unchanged.
func Printable(url string) string {
	u := Split(url)
	if !u.HasAt {
		return url
	}
	if strings.Contains(u.Userinfo, ":") {
		u.Userinfo = "xxx:yyy"
	} else {
		u.Userinfo = "xxx"
	}
	return Join(u)
}

// Scheme returns the lower-cased scheme, "file" for plain paths.
func Scheme(url string) string {
	u := Split(url)
	if u.Schema == "" {
		return "file"
	}
	return strings.ToLower(u.Schema)
}

// IsFile reports whether url points at a local file.
func IsFile(url string) bool { return Scheme(url) == "file" }

// IsRTSP reports whether url uses an RTSP transport.
func IsRTSP(url string) bool {
	switch Scheme(url) {
	case "rtsp", "rtsps", "rtspu":
		return true
	}
	return false
}

// EmbedUserinfo returns url with username and password set as its userinfo.
// Reserved characters are percent-encoded so the split stays unambiguous.
func EmbedUserinfo(url, username, password string) string {
	u := Split(url)
	if username == "" {
		return url
	}
	u.HasAt = true
	u.Userinfo = escapeUsername(username)
	if password != "" {
		u.Userinfo += ":" + escapePassword(password)
	}
	return Join(u)
}

func escapeUsername(s string) string {
	return strings.NewReplacer("/", "%2F", "?", "%3F", "#", "%23", ":", "%3A", "@", "%40").Replace(s)
}

func escapePassword(s string) string {
	return strings.NewReplacer("/", "%2F", "?", "%3F", "#", "%23", "@", "%40").Replace(s)
}
