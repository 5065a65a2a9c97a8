package bot

import (
	"fmt"
	"unicode/utf8"

	"kpwatch/internal/model"
)

const blockRule = "------------------------------"

// FormatListing formats one numbered listing block.
func FormatListing(n int, l model.Listing) string {
	return fmt.Sprintf("%d.\n%s\n%s\n%s\n%s\n%s", n, l.Title, l.Description, l.Price, l.Link, blockRule)
}

// FormatBatch renders the alert for one search as messages of at most
// limit runes. Listings are numbered from 1 and a block is never split
// across messages. A block that cannot fit on its own is shortened, first
// its description, then its title, price and link. The header always
// shares a message with the first block.
func FormatBatch(searchID string, listings []model.Listing, limit int) []string {
	header := fmt.Sprintf("[%s]", searchID)
	blocks := make([]string, 0, len(listings))
	for i, l := range listings {
		blocks = append(blocks, fitBlock(i+1, l, limit-runeLen(header)-1))
	}
	return pack(header, blocks, limit)
}

func pack(header string, blocks []string, limit int) []string {
	var msgs []string
	cur := header
	for _, b := range blocks {
		if cur != "" && cur != header && runeLen(cur)+1+runeLen(b) > limit {
			msgs = append(msgs, cur)
			cur = ""
		}
		if cur == "" {
			cur = b
			continue
		}
		cur += "\n" + b
	}
	if cur != "" {
		msgs = append(msgs, cur)
	}
	return msgs
}

func fitBlock(n int, l model.Listing, limit int) string {
	block := FormatListing(n, l)
	for _, field := range []*string{&l.Description, &l.Title, &l.Price, &l.Link} {
		over := runeLen(block) - limit
		if over <= 0 {
			break
		}
		*field = shorten(*field, over)
		block = FormatListing(n, l)
	}
	return block
}

// shorten drops over runes from the end of s and marks the cut with an
// ellipsis. The ellipsis alone is left when s is not long enough.
func shorten(s string, over int) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	keep := len(r) - over - 1
	if keep < 0 {
		keep = 0
	}
	return string(r[:keep]) + "…"
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
