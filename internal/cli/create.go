package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcopeg/mondo-sub000/internal/relations"
)

var createTitle string

var createCmd = &cobra.Command{
	Use:   "create <host> <key>",
	Short: "Create a note related to a host",
	Long: `Creates a new note through one of the host entity's createRelated actions,
or through the "create" policy of one of its panels, and links it to the host.

The title defaults to the recipe's title template, then to "Untitled <type>".
An existing file is never overwritten; a numeric suffix is added instead.

Examples:
  mondo create companies/acme task
  mondo create companies/acme people --title "Jane Doe"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		ws, err := openWorkspace(ctx)
		if err != nil {
			return report(err)
		}
		defer ws.Close()

		host, err := ws.note(args[0])
		if err != nil {
			return report(err)
		}

		resolver := ws.resolver()
		plan, err := resolver.PlanForAction(ws.entities(), host, args[1])
		if errors.Is(err, relations.ErrUnknownAction) {
			if link, lerr := findPanel(ws.entities(), host, args[1]); lerr == nil && !link.Config.CanCreate() {
				return handleErrorMsg(ErrInvalidInput, fmt.Sprintf("panel %q does not allow creating notes", args[1]), "")
			}
			plan, err = resolver.PlanForPanel(ws.entities(), host, args[1])
		}
		if err != nil {
			return report(err)
		}

		session := relations.NewSession(ws.store, plan, ws.log.Named("session"))
		return finishSession(ctx, func(ctx context.Context) (relations.Result, error) {
			return session.Create(ctx, createTitle)
		})
	},
}

func init() {
	createCmd.Flags().StringVar(&createTitle, "title", "", "Title of the new note")
	rootCmd.AddCommand(createCmd)
}
