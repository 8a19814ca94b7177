package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Parameter names relative to a deployment prefix.
const (
	ModelParam        = "/config/openai_model"
	PinnedPromptParam = "/pinned_prompt"
)

// Settings are the agent knobs kept in Parameter Store.
type Settings struct {
	Model        string
	PinnedPrompt string
}

// LoadSettings reads Settings under prefix. The model is required; a missing
// pinned prompt means none.
func LoadSettings(ctx context.Context, g Getter, prefix string) (Settings, error) {
	if g == nil {
		return Settings{}, errors.New("paramstore: getter must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")

	model, err := g.GetParameter(ctx, prefix+ModelParam)
	if err != nil {
		return Settings{}, fmt.Errorf("paramstore: load model: %w", err)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return Settings{}, errors.New("paramstore: model parameter is empty")
	}

	pinned, err := g.GetParameter(ctx, prefix+PinnedPromptParam)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Settings{}, fmt.Errorf("paramstore: load pinned prompt: %w", err)
	}
	return Settings{Model: model, PinnedPrompt: strings.TrimSpace(pinned)}, nil
}

// StaticSettings returns a Static that LoadSettings reads back as s.
func StaticSettings(prefix string, s Settings) Static {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	out := Static{prefix + ModelParam: s.Model}
	if s.PinnedPrompt != "" {
		out[prefix+PinnedPromptParam] = s.PinnedPrompt
	}
	return out
}
