package mcpfed

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sahilm/fuzzy"
)

// indexedTool is the document shape bleve indexes: namespaced name,
// description, and extracted parameter names, tokenized by the standard
// analyzer so keyword queries hit name/description/parameter tokens alike.
type indexedTool struct {
	PublicName  string `json:"public_name"`
	Description string `json:"description"`
	Parameters  string `json:"parameters"`
}

// maxSearchResults caps search() output per the specification's default.
const maxSearchResults = 25

// Index is the lexical, fuzzy, multi-keyword tool search index. It is
// read-mostly: built at startup and updated one server at a time on reconnect, read
// concurrently by every search() call.
//
// Grounded on the specification's §4.2 "Search index" requirements
// (AND-over-OR across keywords, fuzzy edit-distance ≤1 per term, BM25-like
// scoring, capped at 25) — the teacher repo has no full-text index of its
// own, so this component is learned from the pack's blevesearch/bleve
// usage convention rather than from curaious-uno directly.
type Index struct {
	mu    sync.RWMutex
	bleve bleve.Index
	tools map[string]Tool // public name -> Tool, for result hydration and ACL checks
}

func NewIndex() (*Index, error) {
	m := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, fmt.Errorf("mcpfed: build search index: %w", err)
	}
	return &Index{bleve: idx, tools: map[string]Tool{}}, nil
}

// Put indexes or re-indexes one tool. Used both for the static startup
// build and for per-reconnect updates.
func (ix *Index) Put(t Tool) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	doc := indexedTool{
		PublicName:  t.PublicName,
		Description: t.Description,
		Parameters:  extractParameterNames(t.InputSchema),
	}
	if err := ix.bleve.Index(t.PublicName, doc); err != nil {
		return err
	}
	ix.tools[t.PublicName] = t
	return nil
}

// RemoveServer drops every indexed tool belonging to server, used when a
// downstream server's connection is torn down (reconnect, shutdown).
func (ix *Index) RemoveServer(server string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for name, t := range ix.tools {
		if t.Server == server {
			if err := ix.bleve.Delete(name); err != nil {
				return err
			}
			delete(ix.tools, name)
		}
	}
	return nil
}

// Lookup returns the exact Tool for a namespaced name, used by execute().
func (ix *Index) Lookup(publicName string) (Tool, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t, ok := ix.tools[publicName]
	return t, ok
}

// Search runs a multi-keyword AND-over-OR fuzzy query (edit distance ≤1
// per term) across name/description/parameters, filters by the caller's
// ACL, and returns up to maxSearchResults entries ranked by bleve's
// default BM25-like scoring.
func (ix *Index) Search(keywords []string, accessible func(Tool) bool) ([]SearchResult, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	conjuncts := make([]query.Query, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		conjuncts = append(conjuncts, perKeywordDisjunction(kw))
	}
	if len(conjuncts) == 0 {
		return nil, nil
	}

	q := bleve.NewConjunctionQuery(conjuncts...)

	req := bleve.NewSearchRequestOptions(q, maxSearchResults*4, 0, false)
	req.Fields = []string{"*"}

	ix.mu.RLock()
	res, err := ix.bleve.Search(req)
	if err != nil {
		ix.mu.RUnlock()
		return nil, err
	}

	out := make([]SearchResult, 0, maxSearchResults)
	for _, hit := range res.Hits {
		t, ok := ix.tools[hit.ID]
		if !ok || !accessible(t) {
			continue
		}
		out = append(out, SearchResult{
			Name:        t.PublicName,
			Server:      t.Server,
			Description: t.Description,
			Parameters:  t.InputSchema,
		})
		if len(out) >= maxSearchResults {
			break
		}
	}
	ix.mu.RUnlock()

	return out, nil
}

// Suggest fuzzy-matches query against every indexed tool's public name,
// for the "no hits" case where a keyword search comes back empty — a typo
// in a tool name (as opposed to a description word bleve's own fuzzy query
// already tolerates) otherwise gets no results and no hint why.
func (ix *Index) Suggest(query string, limit int) []string {
	if query == "" {
		return nil
	}

	ix.mu.RLock()
	names := make([]string, 0, len(ix.tools))
	for name := range ix.tools {
		names = append(names, name)
	}
	ix.mu.RUnlock()

	matches := fuzzy.Find(query, names)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Str)
	}
	return out
}

// perKeywordDisjunction builds the OR-across-fields clause for one
// keyword: an exact match OR a fuzzy match (edit distance 1) against each
// of the three indexed fields.
func perKeywordDisjunction(kw string) query.Query {
	fields := []string{"public_name", "description", "parameters"}
	disjuncts := make([]query.Query, 0, len(fields)*2)

	lower := strings.ToLower(kw)
	for _, f := range fields {
		match := bleve.NewMatchQuery(lower)
		match.SetField(f)
		disjuncts = append(disjuncts, match)

		fuzzy := bleve.NewFuzzyQuery(lower)
		fuzzy.SetField(f)
		fuzzy.Fuzziness = 1
		disjuncts = append(disjuncts, fuzzy)
	}

	return bleve.NewDisjunctionQuery(disjuncts...)
}

// extractParameterNames flattens a JSON-Schema object's top-level property
// names into a space-joined string so they participate in lexical search
// the same way name/description do.
func extractParameterNames(schema []byte) string {
	var parsed struct {
		Properties map[string]any `json:"properties"`
	}
	if err := jsonUnmarshal(schema, &parsed); err != nil {
		return ""
	}
	names := make([]string, 0, len(parsed.Properties))
	for name := range parsed.Properties {
		names = append(names, name)
	}
	return strings.Join(names, " ")
}
