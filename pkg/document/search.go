package document

import (
	"fmt"
	"unicode"
)

// SearchHit is a match of a search query. Context is the text around
// the match and Offset the position of the match within it, both in runes.
type SearchHit struct {
	Page    int
	Context string
	Offset  int
}

// SearchOnPage finds every case-insensitive occurrence of query in the
// text of page, overlapping occurrences included. Each hit carries up to
// contextLength runes of surrounding text, centered on the match where
// the page text allows. An empty query finds nothing.
func (h *Handle) SearchOnPage(query string, page, contextLength int) []SearchHit {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.check()
	h.checkPage(page)
	checkContextLength(contextLength)
	return h.searchLocked(query, page, contextLength)
}

// Search runs SearchOnPage on every page in order.
func (h *Handle) Search(query string, contextLength int) []SearchHit {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.check()
	checkContextLength(contextLength)

	var hits []SearchHit
	for page := 0; page < h.pages; page++ {
		hits = append(hits, h.searchLocked(query, page, contextLength)...)
	}
	return hits
}

func checkContextLength(n int) {
	if n <= 0 {
		panic(fmt.Sprintf("document: context length %d must be positive", n))
	}
}

func (h *Handle) searchLocked(query string, page, contextLength int) []SearchHit {
	q := []rune(query)
	if len(q) == 0 {
		return nil
	}
	text := []rune(h.pageTextLocked(page, ' '))
	return findAll(text, q, page, contextLength)
}

// findAll scans text for q, advancing one rune past each match. When
// the context cannot be split evenly the extra rune goes before the match.
func findAll(text, q []rune, page, contextLength int) []SearchHit {
	margin := 0
	if contextLength > len(q) {
		margin = (contextLength - len(q) + 1) / 2
	}

	var hits []SearchHit
	for from := 0; ; {
		pos := indexFold(text, q, from)
		if pos < 0 {
			break
		}
		start := max(0, pos-margin)
		end := min(start+contextLength, len(text))
		hits = append(hits, SearchHit{
			Page:    page,
			Context: string(text[start:end]),
			Offset:  pos - start,
		})
		from = pos + 1
	}
	return hits
}

// indexFold returns the first position at or after from where q occurs
// in text under simple case folding, or -1.
func indexFold(text, q []rune, from int) int {
	for i := from; i+len(q) <= len(text); i++ {
		match := true
		for j, r := range q {
			if !equalFold(text[i+j], r) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// equalFold reports whether a and b are equal under simple Unicode case
// folding, as strings.EqualFold compares runes.
func equalFold(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}
