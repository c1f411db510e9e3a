package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// KBEntry is one knowledge base article.
type KBEntry struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// KBSearchTool does keyword lookup over a static knowledge base, typically
// loaded from the company config.
type KBSearchTool struct {
	entries []KBEntry
}

func NewKBSearchTool(entries []KBEntry) *KBSearchTool {
	return &KBSearchTool{entries: entries}
}

func (t *KBSearchTool) Name() string { return "kb_search" }

func (t *KBSearchTool) Description() string {
	return "Search the company knowledge base for articles matching keywords. Use before answering policy or product questions."
}

func (t *KBSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Keywords to search for",
			},
		},
		"required": []string{"query"},
	}
}

func (t *KBSearchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrorResult("query is required")
	}

	type scored struct {
		entry KBEntry
		hits  int
	}
	words := strings.Fields(strings.ToLower(query))

	var matches []scored
	for _, e := range t.entries {
		haystack := strings.ToLower(e.Title + " " + e.Body)
		hits := 0
		for _, w := range words {
			if strings.Contains(haystack, w) {
				hits++
			}
		}
		if hits > 0 {
			matches = append(matches, scored{entry: e, hits: hits})
		}
	}
	if len(matches) == 0 {
		return NewResult("No knowledge base articles match: " + query)
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].hits > matches[j].hits })
	if len(matches) > 3 {
		matches = matches[:3]
	}

	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "## %s\n%s\n\n", m.entry.Title, m.entry.Body)
	}
	return NewResult(strings.TrimSpace(b.String()))
}
