package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Panel is one per-model documentation panel discovered on a devsite page.
type Panel struct {
	// ID is the raw id or active attribute value.
	ID string
	// Key is the version-normalized panel identifier.
	Key string
	// Selection is the panel subtree.
	Selection *goquery.Selection
}

var versionSuffixRe = regexp.MustCompile(`-(latest|preview|\d{1,3})$`)

// NormalizePanelID strips trailing versioning qualifiers (-latest, -preview,
// or a 1-3 digit numeric suffix) repeatedly until a fixed point, e.g.
// "gemini-2.5-flash-latest-001" -> "gemini-2.5-flash".
func NormalizePanelID(id string) string {
	for {
		stripped := versionSuffixRe.ReplaceAllString(id, "")
		if stripped == id {
			return id
		}
		id = stripped
	}
}

// ParseDevsitePanels discovers per-model panels in a devsite document:
// devsite-expandable elements by id attribute and devsite-selector elements
// by active attribute, both filtered by prefix. Selectors are always
// recursed into, so a nested expandable (e.g. gemini-2.0-flash-live inside
// the gemini-2.0-flash selector) yields its own panel. Panels are returned
// sorted by normalized key with the first occurrence winning on duplicates.
func ParseDevsitePanels(doc *goquery.Document, prefix string) []Panel {
	seen := make(map[string]Panel)
	record := func(id string, sel *goquery.Selection) {
		if id == "" || !strings.HasPrefix(id, prefix) {
			return
		}
		key := NormalizePanelID(id)
		if _, exists := seen[key]; !exists {
			seen[key] = Panel{ID: id, Key: key, Selection: sel}
		}
	}

	doc.Find("devsite-selector").Each(func(_ int, sel *goquery.Selection) {
		if active, ok := sel.Attr("active"); ok {
			record(active, sel)
		}
		// Recurse: expandables nested inside the selector publish their own
		// model variants.
		sel.Find("devsite-expandable").Each(func(_ int, inner *goquery.Selection) {
			if id, ok := inner.Attr("id"); ok {
				record(id, inner)
			}
		})
	})
	doc.Find("devsite-expandable").Each(func(_ int, sel *goquery.Selection) {
		if id, ok := sel.Attr("id"); ok {
			record(id, sel)
		}
	})

	panels := make([]Panel, 0, len(seen))
	for _, panel := range seen {
		panels = append(panels, panel)
	}
	sort.Slice(panels, func(i, j int) bool { return panels[i].Key < panels[j].Key })
	return panels
}
