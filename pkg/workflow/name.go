package workflow

import (
	"strings"
)

// Keyword maps a lower-case title substring to a display label.
type Keyword struct {
	Match string
	Label string
}

// DefaultKeywords is the ordered keyword table used for naming. Order
// decides which label comes first when a title matches several entries.
var DefaultKeywords = []Keyword{
	{Match: "google sheets", Label: "Google Sheets"},
	{Match: "gmail", Label: "Gmail"},
	{Match: "slack", Label: "Slack"},
	{Match: "whatsapp", Label: "WhatsApp"},
	{Match: "notion", Label: "Notion"},
	{Match: "telegram", Label: "Telegram"},
	{Match: "ai", Label: "AI"},
}

// GeneralName is used for titles that match no keyword.
const GeneralName = "General n8n Automation"

// Namer derives canonical workflow names from free-text titles.
type Namer struct {
	keywords []Keyword
}

// NewNamer creates a namer over the given table. An empty table falls back
// to DefaultKeywords.
func NewNamer(keywords []Keyword) *Namer {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	table := make([]Keyword, len(keywords))
	for i, kw := range keywords {
		table[i] = Keyword{Match: lower(kw.Match), Label: kw.Label}
	}
	return &Namer{keywords: table}
}

// Matches returns the labels whose keyword occurs in title, in table order.
func (n *Namer) Matches(title string) []string {
	text := lower(title)

	var found []string
	for _, kw := range n.keywords {
		if kw.Match != "" && strings.Contains(text, kw.Match) {
			found = append(found, kw.Label)
		}
	}
	return found
}

// Name maps a title to its canonical workflow name.
func (n *Namer) Name(title string) string {
	found := n.Matches(title)
	switch {
	case len(found) >= 2:
		return found[0] + " → " + found[1] + " Automation"
	case len(found) == 1:
		return found[0] + " Automation"
	default:
		return GeneralName
	}
}

var defaultNamer = NewNamer(nil)

// Normalize maps a title to its canonical name using DefaultKeywords.
func Normalize(title string) string {
	return defaultNamer.Name(title)
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
