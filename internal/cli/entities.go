package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcopeg/mondo-sub000/internal/entity"
	"github.com/marcopeg/mondo-sub000/internal/ui"
)

// EntityJSON summarises one configured entity type.
type EntityJSON struct {
	Type    string   `json:"type"`
	Label   string   `json:"label"`
	Folder  string   `json:"folder"`
	Notes   int      `json:"notes"`
	Fields  []string `json:"fields,omitempty"`
	Panels  []string `json:"panels,omitempty"`
	Actions []string `json:"actions,omitempty"`
}

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List the configured entity types",
	Long: `Lists the entity types declared in the entities file with their
frontmatter pickers, related panels and createRelated actions.

Examples:
  mondo entities
  mondo entities --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace(commandContext(cmd))
		if err != nil {
			return report(err)
		}
		defer ws.Close()

		cfg := ws.entities()
		items := make([]EntityJSON, 0, len(cfg.Entities))
		for _, typ := range cfg.Types() {
			items = append(items, summarizeEntity(cfg.Entities[typ], len(ws.corpus.ByType(typ))))
		}

		if isJSONOutput() {
			outputSuccessWithWarnings(map[string]interface{}{
				"file":     ws.entitiesPath,
				"entities": items,
			}, ws.warnings(), &Meta{Count: len(items)})
			return nil
		}

		if len(items) == 0 {
			fmt.Printf("No entities configured in %s\n", ws.entitiesPath)
			return nil
		}
		table := ui.NewTable(ui.NewDisplayContextFor(os.Stdout), "Type", "Notes", "Fields", "Panels", "Actions")
		for _, item := range items {
			table.AddRow(
				ui.Bold.Render(item.Type),
				fmt.Sprint(item.Notes),
				strings.Join(item.Fields, ", "),
				strings.Join(item.Panels, ", "),
				strings.Join(item.Actions, ", "),
			)
		}
		fmt.Println(table.String())
		return nil
	},
}

func summarizeEntity(e *entity.Entity, notes int) EntityJSON {
	out := EntityJSON{
		Type:   e.Type,
		Label:  e.Label(),
		Folder: e.NoteFolder(),
		Notes:  notes,
	}
	for key := range e.Frontmatter {
		out.Fields = append(out.Fields, key)
	}
	sort.Strings(out.Fields)
	for _, l := range e.Links {
		out.Panels = append(out.Panels, l.Key)
	}
	for _, a := range e.CreateRelated {
		out.Actions = append(out.Actions, a.Key)
	}
	return out
}

func init() {
	rootCmd.AddCommand(entitiesCmd)
}
