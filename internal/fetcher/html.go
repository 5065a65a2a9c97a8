package fetcher

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"kpwatch/internal/model"
)

// Selectors match on class prefixes because the site appends build hashes
// to its CSS module class names.
const (
	selAd         = `section[class*="AdItem_adOuterHolder"]`
	selName       = `[class*="AdItem_name"]`
	selPrice      = `[class*="AdItem_price"]`
	selInfo       = `[class*="AdItem_adInfoHolder"] p`
	selPosted     = `[class*="AdItem_postedStatus"]`
	selPostedIcon = `[class*="AdItem_postedStatus"] svg`
	unfilledIcon  = "none"
)

// recentLabels are posted-status words meaning the ad is from today or yesterday.
var recentLabels = []string{"danas", "juče", "juce", "today", "yesterday"}

// ParseListings extracts listings from a search result page. Relative links
// are resolved against baseURL.
func ParseListings(r io.Reader, baseURL string) ([]model.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	var listings []model.Listing
	doc.Find(selAd).Each(func(_ int, sec *goquery.Selection) {
		listings = append(listings, model.Listing{
			Title:        strings.TrimSpace(sec.Find(selName).First().Text()),
			Description:  description(sec),
			Price:        strings.TrimSpace(sec.Find(selPrice).First().Text()),
			Link:         link(sec, base),
			Nonrenewed:   nonrenewed(sec),
			RecentEnough: recent(sec.Find(selPosted).First().Text()),
		})
	})
	return listings, nil
}

// description is the first info paragraph that is not an icon row.
func description(sec *goquery.Selection) string {
	var desc string
	sec.Find(selInfo).EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if p.Find("svg").Length() > 0 {
			return true
		}
		desc = strings.TrimSpace(p.Text())
		return false
	})
	return desc
}

func link(sec *goquery.Selection, base *url.URL) string {
	href, ok := sec.Find("a[href]").First().Attr("href")
	if !ok {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// nonrenewed reports whether the posted-status icon is drawn unfilled; the
// site fills it for renewed ads.
func nonrenewed(sec *goquery.Selection) bool {
	icon := sec.Find(selPostedIcon).First()
	if icon.Length() == 0 {
		return false
	}
	fill, _ := icon.Attr("fill")
	return strings.EqualFold(strings.TrimSpace(fill), unfilledIcon)
}

func recent(status string) bool {
	s := strings.ToLower(status)
	for _, label := range recentLabels {
		if strings.Contains(s, label) {
			return true
		}
	}
	return false
}
