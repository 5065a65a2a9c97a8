package dedup

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIdentity(t *testing.T) {
	tests := []struct {
		name string
		link string
		want string
	}{
		{
			name: "slug and id around marker",
			link: "https://www.kupujemprodajem.com/mobilni-telefoni/samsung/samsung-galaxy-s21/oglas/161234567",
			want: "samsung-galaxy-s21/161234567",
		},
		{
			name: "tracking query ignored",
			link: "https://www.kupujemprodajem.com/mobilni-telefoni/samsung/samsung-galaxy-s21/oglas/161234567?filterId=9&utm_source=x",
			want: "samsung-galaxy-s21/161234567",
		},
		{
			name: "fragment and trailing slash ignored",
			link: "https://www.kupujemprodajem.com/tv/lg-55/oglas/42/#photos",
			want: "lg-55/42",
		},
		{
			name: "non numeric id falls back to last two segments",
			link: "https://example.com/a/b/oglas/abc",
			want: "oglas/abc",
		},
		{
			name: "marker missing uses last two segments",
			link: "https://example.com/listings/tv/12345?ref=feed",
			want: "tv/12345",
		},
		{
			name: "single segment uses full path",
			link: "https://example.com/item-77",
			want: "/item-77",
		},
		{
			name: "no path returns raw link",
			link: "https://example.com",
			want: "https://example.com",
		},
		{
			name: "unparsable link returns raw link",
			link: "http://[::1",
			want: "http://[::1",
		},
		{
			name: "empty link",
			link: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Identity(tt.link)); diff != "" {
				t.Errorf("Identity(%q) mismatch (-want +got):\n%s", tt.link, diff)
			}
		})
	}
}

func TestIdentityStableAcrossQueryStrings(t *testing.T) {
	a := Identity("https://www.kupujemprodajem.com/tv/samsung-55/oglas/1001?page=1")
	b := Identity("https://www.kupujemprodajem.com/tv/samsung-55/oglas/1001?page=3&order=posted%20desc")
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("identities differ (-a +b):\n%s", diff)
	}
}
