package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"commerce-agent/internal/domain"
)

const maxSearchResults = 10

type productSearchArgs struct {
	Query    string   `json:"query"`
	PriceMax *float64 `json:"price_max" validate:"omitempty,gt=0"`
	Tags     tagList  `json:"tags"`
}

type productSearch struct {
	store Store
}

func (t *productSearch) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        ProductSearch,
		Description: "Search the catalog by title query, optional maximum price and optional tags. Returns matching products ordered by relevance then price.",
		Parameters: json.RawMessage(`{
			"type":"object",
			"properties":{
				"query":{"type":"string","description":"Words to match in product titles."},
				"price_max":{"type":"number","description":"Maximum price, inclusive."},
				"tags":{"type":"array","items":{"type":"string"},"description":"Tags every result must carry, e.g. wedding, midi."}
			},
			"required":["query"]
		}`),
	}
}

func (t *productSearch) Invoke(ctx context.Context, raw map[string]any) (any, error) {
	var args productSearchArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	query := strings.ToLower(strings.TrimSpace(args.Query))
	if query == "" && len(args.Tags) == 0 {
		return nil, newError(CodeInvalidArguments, "query or tags is required")
	}

	products, err := t.store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("tools: list products: %w", err)
	}
	return searchProducts(products, query, args.PriceMax, args.Tags), nil
}

// searchProducts filters by price ceiling, then by tags when given (all must
// match) or by title otherwise. With several tags and fewer than two strict
// matches, products sharing at least one tag top the list up to two.
func searchProducts(products []domain.Product, query string, priceMax *float64, tags tagList) []domain.Product {
	withinBudget := func(p domain.Product) bool {
		return priceMax == nil || p.Price <= *priceMax
	}

	results := make([]domain.Product, 0)
	seen := make(map[string]bool)
	for _, p := range products {
		if !withinBudget(p) {
			continue
		}
		matched := false
		if len(tags) > 0 {
			matched = tagScore(p, tags) == len(tags)
		} else {
			matched = strings.Contains(strings.ToLower(p.Title), query)
		}
		if matched {
			results = append(results, p)
			seen[p.ID] = true
		}
	}

	if len(results) < 2 && len(tags) > 1 {
		for _, p := range products {
			if len(results) >= 2 {
				break
			}
			if seen[p.ID] || !withinBudget(p) || tagScore(p, tags) == 0 {
				continue
			}
			results = append(results, p)
			seen[p.ID] = true
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if len(tags) > 0 {
			si, sj := tagScore(results[i], tags), tagScore(results[j], tags)
			if si != sj {
				return si > sj
			}
		}
		return results[i].Price < results[j].Price
	})
	if len(results) > maxSearchResults {
		results = results[:maxSearchResults]
	}
	return results
}

func tagScore(p domain.Product, tags tagList) int {
	have := make(map[string]bool, len(p.Tags))
	for _, tag := range p.Tags {
		have[strings.ToLower(tag)] = true
	}
	n := 0
	for _, tag := range tags {
		if have[tag] {
			n++
		}
	}
	return n
}
