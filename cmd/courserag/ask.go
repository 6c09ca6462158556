package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/courserag/internal/domain/entities"
)

func askCMD(load configLoader) *cobra.Command {
	var sessionID string
	var ask = &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the stored courses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, load)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.Query.Query(ctx, &entities.ChatRequest{
				Query:     strings.Join(args, " "),
				SessionID: sessionID,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.Answer)
			if len(resp.Sources) > 0 {
				fmt.Fprintln(out, "\nSources:")
				for _, s := range resp.Sources {
					if s.URL != nil {
						fmt.Fprintf(out, "  - %s (%s)\n", s.Text, *s.URL)
					} else {
						fmt.Fprintf(out, "  - %s\n", s.Text)
					}
				}
			}
			return nil
		},
	}
	ask.Flags().StringVar(&sessionID, "session", "", "continue an existing session")
	return ask
}
