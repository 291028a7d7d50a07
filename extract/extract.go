// Package extract provides structured HTML extraction primitives on top of
// parsed goquery documents: table discovery by header predicate, anchored
// section lookup, "Supported data types" parsing, and devsite panel
// enumeration. Missing data is an optional result, never an error; only
// malformed input raises.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Table is a located HTML table with its discovered header row. Column
// positions are always resolved by header name, never by fixed offsets.
type Table struct {
	Selection *goquery.Selection
	headers   []string
}

// HeaderPredicate decides whether a table's header row is the one wanted,
// e.g. "contains MODEL ID and RPM".
type HeaderPredicate func(headers []string) bool

// HeadersContain returns a predicate matching tables whose header row
// contains every given name (case-insensitive substring match).
func HeadersContain(names ...string) HeaderPredicate {
	return func(headers []string) bool {
		joined := strings.ToLower(strings.Join(headers, "|"))
		for _, name := range names {
			if !strings.Contains(joined, strings.ToLower(name)) {
				return false
			}
		}
		return true
	}
}

// FindTables yields every table in root whose header row satisfies pred.
func FindTables(root *goquery.Selection, pred HeaderPredicate) []*Table {
	var tables []*Table
	root.Find("table").Each(func(_ int, sel *goquery.Selection) {
		headers := tableHeaders(sel)
		if len(headers) == 0 {
			return
		}
		if pred(headers) {
			tables = append(tables, &Table{Selection: sel, headers: headers})
		}
	})
	return tables
}

func tableHeaders(table *goquery.Selection) []string {
	var headers []string
	headerRow := table.Find("thead tr").First()
	if headerRow.Length() == 0 {
		headerRow = table.Find("tr").First()
	}
	headerRow.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(cell.Text()))
	})
	return headers
}

// Headers returns the discovered header row.
func (t *Table) Headers() []string {
	return t.headers
}

// ColumnIndex resolves a column by case-insensitive header name match.
func (t *Table) ColumnIndex(name string) (int, bool) {
	lower := strings.ToLower(name)
	for i, header := range t.headers {
		if strings.Contains(strings.ToLower(header), lower) {
			return i, true
		}
	}
	return 0, false
}

// Rows returns the table's data rows as trimmed cell text, skipping the
// header row. The parser inserts an implicit tbody, so when no explicit
// thead exists the first body row is the header and is dropped.
func (t *Table) Rows() [][]string {
	var rows [][]string
	body := t.Selection.Find("tr").FilterFunction(func(_ int, row *goquery.Selection) bool {
		return row.Closest("thead").Length() == 0
	})
	if t.Selection.Find("thead").Length() == 0 && body.Length() > 0 {
		body = body.Slice(1, goquery.ToEnd)
	}
	body.Each(func(_ int, row *goquery.Selection) {
		var cells []string
		row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	return rows
}

// FindSection locates a section by id attribute, or failing that by the
// first heading whose text satisfies headingPred; subsequent searches are
// restricted to the returned subtree. Returns nil when nothing matches.
func FindSection(doc *goquery.Document, id string, headingPred func(text string) bool) *goquery.Selection {
	if id != "" {
		byID := doc.Find("#" + id)
		if byID.Length() > 0 {
			// Prefer the enclosing section when the id sits on the heading.
			if goquery.NodeName(byID) == "section" || goquery.NodeName(byID) == "div" {
				return byID
			}
			if parent := byID.Parent(); parent.Length() > 0 {
				return parent
			}
			return byID
		}
	}
	if headingPred == nil {
		return nil
	}
	var found *goquery.Selection
	doc.Find("h1, h2, h3, h4, h5, h6").EachWithBreak(func(_ int, heading *goquery.Selection) bool {
		if headingPred(strings.TrimSpace(heading.Text())) {
			found = heading.Parent()
			return false
		}
		return true
	})
	return found
}

// dataTypesRe splits a "Supported data types" blob on its Inputs/Output
// labels; both "Inputs\n…" and "Inputs: …" shapes occur in the wild.
var dataTypesRe = regexp.MustCompile(`(?is)inputs?\s*[:\n]?\s*\n?\s*(.*?)\s*outputs?\s*[:\n]?\s*\n?\s*(.*)`)

// ParseSupportedDataTypes finds a cell or paragraph in sel whose text
// contains both "input" and "output" tokens and returns the two ordered
// modality token lists (lowercased). ok is false when no such block exists.
func ParseSupportedDataTypes(sel *goquery.Selection) (inputs, outputs []string, ok bool) {
	var blob string
	sel.Find("td, p").EachWithBreak(func(_ int, candidate *goquery.Selection) bool {
		text := candidate.Text()
		lower := strings.ToLower(text)
		if strings.Contains(lower, "input") && strings.Contains(lower, "output") {
			blob = text
			return false
		}
		return true
	})
	if blob == "" {
		// The labels may sit directly on the provided node.
		lower := strings.ToLower(sel.Text())
		if strings.Contains(lower, "input") && strings.Contains(lower, "output") {
			blob = sel.Text()
		}
	}
	if blob == "" {
		return nil, nil, false
	}
	match := dataTypesRe.FindStringSubmatch(blob)
	if match == nil {
		return nil, nil, false
	}
	return SplitModalityTokens(match[1]), SplitModalityTokens(match[2]), true
}

// SplitModalityTokens splits a human modality phrase ("Audio, video and
// text") into lowercased tokens.
func SplitModalityTokens(phrase string) []string {
	phrase = strings.ReplaceAll(phrase, " and ", ",")
	phrase = strings.ReplaceAll(phrase, "\n", ",")
	var tokens []string
	for _, part := range strings.Split(phrase, ",") {
		token := strings.ToLower(strings.TrimSpace(part))
		token = strings.TrimSuffix(token, ".")
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}
