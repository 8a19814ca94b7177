package tools

import (
	"context"
	"encoding/json"
	"strings"

	"commerce-agent/internal/domain"
)

type sizeArgs struct {
	UserInput string `json:"user_input" validate:"required"`
}

type sizeRule struct {
	phrases   []string
	size      string
	rationale string
}

// Rules are checked in order; the first matching phrase wins.
var sizeRules = []sizeRule{
	{
		phrases:   []string{"between m/l", "between l/m", "m/l"},
		size:      "M",
		rationale: "Between M and L, Medium (M) is typically the safer choice for a comfortable, not-too-tight fit. Large (L) gives more room if you prefer a looser fit or worry about shrinkage.",
	},
	{
		phrases:   []string{"prefer loose", "loose fit"},
		size:      "SIZE_UP",
		rationale: "For a loose, comfortable fit, go up one size from your usual size.",
	},
	{
		phrases:   []string{"prefer tight", "fitted", "form fitting"},
		size:      "TRUE_TO_SIZE",
		rationale: "For a fitted, form-hugging look, your true size or even one size down works best.",
	},
	{
		phrases:   []string{"wedding", "formal", "dressy"},
		size:      "TRUE_TO_SIZE",
		rationale: "For formal events like weddings, your true size gives the most flattering, polished fit.",
	},
	{
		phrases:   []string{"not sure", "don't know", "uncertain"},
		size:      "M",
		rationale: "If you're unsure, Medium (M) is the most versatile choice. Most of our M dresses fit sizes 8-10 with some flexibility.",
	},
	{
		phrases:   []string{"xs", "extra small"},
		size:      "XS",
		rationale: "XS suits petite frames, typically fitting sizes 0-2.",
	},
	{
		phrases:   []string{"small", " s "},
		size:      "S",
		rationale: "Small (S) works well for sizes 4-6 and offers a tailored fit.",
	},
	{
		phrases:   []string{"medium", " m "},
		size:      "M",
		rationale: "Medium (M) is our most popular size, fitting sizes 8-10 comfortably.",
	},
	{
		phrases:   []string{"large", " l "},
		size:      "L",
		rationale: "Large (L) provides a comfortable fit for sizes 12-14.",
	},
}

var defaultSizeAdvice = domain.SizeAdvice{
	Size:      "M",
	Rationale: "Consider your usual dress size, the occasion (formal events usually call for true-to-size) and whether you prefer fitted or relaxed. If between sizes, Medium (M) is usually the safer choice.",
}

type sizeRecommender struct{}

func (sizeRecommender) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        SizeRecommender,
		Description: "Recommend a size from the shopper's own description of fit preferences or size dilemma.",
		Parameters: json.RawMessage(`{
			"type":"object",
			"properties":{
				"user_input":{"type":"string","description":"The shopper's sizing question, verbatim."}
			},
			"required":["user_input"]
		}`),
	}
}

func (sizeRecommender) Invoke(_ context.Context, raw map[string]any) (any, error) {
	var args sizeArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return recommendSize(args.UserInput), nil
}

func recommendSize(input string) domain.SizeAdvice {
	// Padding lets single-letter sizes match as standalone words.
	text := " " + strings.ToLower(strings.TrimSpace(input)) + " "
	for _, rule := range sizeRules {
		for _, phrase := range rule.phrases {
			if strings.Contains(text, phrase) {
				return domain.SizeAdvice{Size: rule.size, Rationale: rule.rationale}
			}
		}
	}
	return defaultSizeAdvice
}
