package dedup

import (
	"net/url"
	"strings"
)

// ItemMarker is the path segment that precedes the numeric ad id in a
// listing link, e.g. /mobilni-telefoni/samsung/galaxy-s21/oglas/123456.
const ItemMarker = "oglas"

// Identity derives the stable key of a listing from its link. It returns
// "<slug>/<id>" around ItemMarker, falling back to the last two path
// segments, then to the whole path, then to the raw link.
func Identity(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return link
	}
	segs := pathSegments(u.Path)
	for i, seg := range segs {
		if seg != ItemMarker || i == 0 || i+1 >= len(segs) {
			continue
		}
		if isDigits(segs[i+1]) {
			return segs[i-1] + "/" + segs[i+1]
		}
	}
	if len(segs) >= 2 {
		return segs[len(segs)-2] + "/" + segs[len(segs)-1]
	}
	if u.Path != "" {
		return u.Path
	}
	return link
}

func pathSegments(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
