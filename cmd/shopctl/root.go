package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"commerce-agent/internal/agent"
	"commerce-agent/internal/integrations/openai"
	"commerce-agent/internal/integrations/paramstore"
	"commerce-agent/internal/repository"
	"commerce-agent/internal/usecase"
)

const localParamPrefix = "/shopctl"

type rootOptions struct {
	catalog       string
	baseURL       string
	apiKey        string
	model         string
	pinnedPrompt  string
	maxIterations int
	noModeration  bool
	logLevel      string
	logFormat     string
}

// NewRootCmd wires the cobra tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "shopctl",
		Short:         "Run the commerce agent locally",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&opts.catalog, "catalog", "data/catalog.yaml", "YAML catalog with products and orders")
	f.StringVar(&opts.baseURL, "base-url", os.Getenv("OPENAI_BASE_URL"), "OpenAI-compatible API base URL (env OPENAI_BASE_URL)")
	f.StringVar(&opts.apiKey, "api-key", os.Getenv("OPENAI_API_KEY"), "API key (env OPENAI_API_KEY)")
	f.StringVar(&opts.model, "model", envOr("OPENAI_MODEL", "gpt-4o-mini"), "chat model (env OPENAI_MODEL)")
	f.StringVar(&opts.pinnedPrompt, "pinned-prompt", "", "extra system prompt text, e.g. brand voice")
	f.IntVar(&opts.maxIterations, "max-iterations", agent.DefaultMaxIterations, "reasoning loop iteration cap")
	f.BoolVar(&opts.noModeration, "no-moderation", false, "skip the moderation pre-check (for providers without /moderations)")
	f.StringVar(&opts.logLevel, "log-level", "warn", "debug, info, warn or error")
	f.StringVar(&opts.logFormat, "log-format", "text", "text or json")

	root.AddCommand(
		newAskCmd(opts),
		newServeCmd(opts),
		newSeedCmd(opts),
	)
	return root
}

// buildService assembles the ask use case over a file-backed store.
func buildService(opts *rootOptions, store *repository.FileStore, observer agent.Observer) (*usecase.AskService, error) {
	if strings.TrimSpace(opts.apiKey) == "" {
		return nil, errors.New("an API key is required: set --api-key or OPENAI_API_KEY")
	}
	params := paramstore.StaticSettings(localParamPrefix, paramstore.Settings{
		Model:        opts.model,
		PinnedPrompt: opts.pinnedPrompt,
	})
	clientOpts := []openai.Option{openai.WithAPIKey(opts.apiKey)}
	if opts.baseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(opts.baseURL))
	}
	client, err := openai.NewClient(params, localParamPrefix, clientOpts...)
	if err != nil {
		return nil, err
	}
	var llm usecase.LLMClient = client
	if opts.noModeration {
		llm = unmoderated{client}
	}
	return usecase.NewAskService(params, llm, store, store, usecase.Options{
		ParamPrefix:   localParamPrefix,
		MaxIterations: opts.maxIterations,
		Observer:      observer,
	})
}

type unmoderated struct {
	*openai.Client
}

func (unmoderated) Moderate(context.Context, string) (bool, error) {
	return false, nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	hopts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return nil, fmt.Errorf("invalid --log-format %q", format)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
