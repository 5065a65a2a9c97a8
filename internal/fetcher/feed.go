package fetcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"kpwatch/internal/model"
)

// feedRecency is how old a feed item may be and still count as recent.
const feedRecency = 48 * time.Hour

// ParseFeed turns RSS or Atom items into listings. Feed items are never
// bumped, so they are always nonrenewed; recency follows the item date.
func ParseFeed(body []byte, now time.Time) ([]model.Listing, error) {
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	listings := make([]model.Listing, 0, len(feed.Items))
	for _, item := range feed.Items {
		listings = append(listings, model.Listing{
			Title:        strings.TrimSpace(item.Title),
			Description:  strings.TrimSpace(item.Description),
			Price:        itemPrice(item),
			Link:         item.Link,
			Nonrenewed:   true,
			RecentEnough: itemRecent(item, now),
		})
	}
	return listings, nil
}

func itemRecent(item *gofeed.Item, now time.Time) bool {
	ts := item.PublishedParsed
	if ts == nil {
		ts = item.UpdatedParsed
	}
	if ts == nil {
		return true
	}
	return now.Sub(*ts) <= feedRecency
}

// itemPrice reads a price from a <price> extension element if the feed has one.
func itemPrice(item *gofeed.Item) string {
	for _, ns := range item.Extensions {
		for name, exts := range ns {
			if name == "price" && len(exts) > 0 {
				return strings.TrimSpace(exts[0].Value)
			}
		}
	}
	return strings.TrimSpace(item.Custom["price"])
}
