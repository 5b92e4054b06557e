// Package suggest ranks free text against known entity names and pages the
// result into quick-pick options.
package suggest

import (
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

const (
	DefaultLimit = 8
	PageSize     = 5
)

// Candidate is one quick-pick option. Value is the canonical entity name.
type Candidate struct {
	Label string
	Value string
	Score int
}

// Choice is what a workflow renders. CreateNew is set when nothing matched so
// the user always has a way forward.
type Choice struct {
	Query      string
	Candidates []Candidate
	CreateNew  bool
}

func (c Choice) Empty() bool {
	return len(c.Candidates) == 0
}

// At returns the candidate at index i.
func (c Choice) At(i int) (Candidate, bool) {
	if i < 0 || i >= len(c.Candidates) {
		return Candidate{}, false
	}
	return c.Candidates[i], true
}

func newChoice(query string, cands []Candidate) Choice {
	return Choice{Query: query, Candidates: cands, CreateNew: len(cands) == 0}
}

var folder = cases.Fold()

func fold(s string) string {
	return folder.String(strings.TrimSpace(s))
}

// unique drops blanks and exact duplicates, keeping first occurrence order.
func unique(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

// Rank puts names starting with the query ahead of names merely containing it.
func Rank(items []string, query string, limit int) Choice {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := fold(query)
	if q == "" {
		return newChoice(query, nil)
	}

	var starts, contains []Candidate
	for _, name := range unique(items) {
		f := fold(name)
		switch {
		case strings.HasPrefix(f, q):
			starts = append(starts, Candidate{Label: name, Value: name, Score: 2})
		case strings.Contains(f, q):
			contains = append(contains, Candidate{Label: name, Value: name, Score: 1})
		}
	}

	out := append(starts, contains...)
	if len(out) > limit {
		out = out[:limit]
	}
	return newChoice(query, out)
}

// RankModels scores model names by whole-query and per-word overlap.
// Only positive scores survive.
func RankModels(items []string, query string, limit int) Choice {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := fold(query)
	if q == "" {
		return newChoice(query, nil)
	}

	var words []string
	for _, w := range strings.Fields(q) {
		if utf8.RuneCountInString(w) >= 2 {
			words = append(words, w)
		}
	}

	var out []Candidate
	for _, name := range unique(items) {
		if utf8.RuneCountInString(name) < 3 {
			continue
		}
		if s := modelScore(name, q, words); s > 0 {
			out = append(out, Candidate{Label: name, Value: name, Score: s})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return newChoice(query, out)
}

func modelScore(name, q string, words []string) int {
	m := fold(name)
	score := 0
	if strings.Contains(m, q) {
		score += 100
	}
	for _, w := range words {
		if strings.Contains(m, w) {
			score += 20
		}
	}
	modelWords := strings.Fields(m)
	for _, w := range words {
		for _, mw := range modelWords {
			if strings.HasPrefix(mw, w) {
				score += 10
				break
			}
		}
	}
	if utf8.RuneCountInString(q) < 5 && utf8.RuneCountInString(name) > 30 {
		score -= 5
	}
	return score
}

// Page is one page of a paginated list. Number is zero based.
type Page[T any] struct {
	Items      []T
	Number     int
	TotalPages int
	HasPrev    bool
	HasNext    bool
}

// Paginate clamps page into range so stale buttons never produce an empty page.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = PageSize
	}
	if len(items) == 0 {
		return Page[T]{}
	}
	total := (len(items) + size - 1) / size
	if page < 0 {
		page = 0
	} else if page >= total {
		page = total - 1
	}
	start := page * size
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return Page[T]{
		Items:      items[start:end],
		Number:     page,
		TotalPages: total,
		HasPrev:    page > 0,
		HasNext:    page < total-1,
	}
}
