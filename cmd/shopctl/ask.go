package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"commerce-agent/internal/repository"
	"commerce-agent/internal/usecase"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		at        string
		showTrace bool
	)
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send one message through the agent and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := repository.LoadFile(opts.catalog)
			if err != nil {
				return err
			}
			svc, err := buildService(opts, store, nil)
			if err != nil {
				return err
			}
			out, err := svc.Ask(cmd.Context(), usecase.AskInput{
				Message:           strings.Join(args, " "),
				EvaluationInstant: at,
			})
			if err != nil {
				code, reason := usecase.CodeOf(err)
				return fmt.Errorf("ask failed (%s): %s: %w", code, reason, err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, out.Reply)
			if showTrace {
				raw, err := json.MarshalIndent(out.Trace, "", "  ")
				if err != nil {
					return fmt.Errorf("encode trace: %w", err)
				}
				fmt.Fprintf(w, "\n--- trace %s ---\n%s\n", out.RequestID, raw)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "RFC 3339 evaluation instant for cancellation checks (default now)")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "print the execution trace as JSON")
	return cmd
}
