package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marcopeg/mondo-sub000/internal/relations"
	"github.com/marcopeg/mondo-sub000/internal/ui"
)

var (
	pickSelect string
	pickCreate string
)

// CandidateJSON is a note a picker may select.
type CandidateJSON struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

var pickCmd = &cobra.Command{
	Use:   "pick <host> <property> [text]",
	Short: "Pick or create a note for a frontmatter property",
	Long: `Runs the picker configured for one of the host's frontmatter fields.

Without --select or --create it lists the candidates, narrowed by the
optional search text. --select links an existing note; --create makes a new
note from the field's recipe and links it.

Examples:
  mondo pick tasks/launch company
  mondo pick tasks/launch company acm
  mondo pick tasks/launch company --select companies/acme
  mondo pick tasks/launch owner --create "Jane Doe"`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if pickSelect != "" && cmd.Flags().Changed("create") {
			return handleErrorMsg(ErrInvalidInput, "--select and --create are mutually exclusive", "")
		}

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
		plan, err := ws.resolver().PlanForField(ws.entities(), host, args[1])
		if err != nil {
			return report(err)
		}
		session := relations.NewSession(ws.store, plan, ws.log.Named("session"))

		switch {
		case pickSelect != "":
			target, err := ws.note(pickSelect)
			if err != nil {
				return report(err)
			}
			return finishSession(ctx, func(ctx context.Context) (relations.Result, error) {
				return session.Select(ctx, target.ID)
			})
		case cmd.Flags().Changed("create"):
			return finishSession(ctx, func(ctx context.Context) (relations.Result, error) {
				return session.Create(ctx, pickCreate)
			})
		}

		text := ""
		if len(args) == 3 {
			text = args[2]
		}
		found := session.Search(text)
		session.Abandon()

		items := make([]CandidateJSON, 0, len(found))
		for _, n := range found {
			items = append(items, CandidateJSON{ID: n.ID, Type: n.Type, Title: n.Title()})
		}
		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"host":       host.ID,
				"property":   plan.Property,
				"multiple":   plan.Multiple,
				"candidates": items,
			}, &Meta{Count: len(items)})
			return nil
		}

		if len(items) == 0 {
			fmt.Printf("No candidates for %s.%s\n", host.Title(), plan.Property)
			fmt.Println(ui.Hint(fmt.Sprintf("Create one with: mondo pick %s %s --create <title>", args[0], args[1])))
			return nil
		}
		table := ui.NewTable(ui.NewDisplayContextFor(os.Stdout), "Title", "ID")
		for _, item := range items {
			table.AddRow(item.Title, item.ID)
		}
		fmt.Println(table.String())
		return nil
	},
}

// finishSession runs one session step and reports its result. A
// LinkingError is reported with the created note so the caller can finish
// the link by hand.
func finishSession(ctx context.Context, step func(context.Context) (relations.Result, error)) error {
	res, err := step(ctx)
	if err != nil {
		return report(err)
	}

	if isJSONOutput() {
		outputSuccess(map[string]interface{}{
			"id":                res.Note.ID,
			"title":             res.Note.Title(),
			"created":           res.Created,
			"open_after_create": res.OpenAfterCreate,
		}, nil)
		return nil
	}
	verb := "Linked"
	if res.Created {
		verb = "Created and linked"
	}
	fmt.Println(ui.Success(fmt.Sprintf("%s %s", verb, ui.NoteID(res.Note.ID))))
	if res.OpenAfterCreate {
		fmt.Println(ui.Hint("open " + filepath.Join(getVaultPath(), filepath.FromSlash(res.Note.ID))))
	}
	return nil
}

// commandContext returns the command's context, or a background context when
// the command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	pickCmd.Flags().StringVar(&pickSelect, "select", "", "Link an existing note")
	pickCmd.Flags().StringVar(&pickCreate, "create", "", "Create a new note with this title (empty uses the recipe title)")
	rootCmd.AddCommand(pickCmd)
}
