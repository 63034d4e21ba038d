package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcopeg/mondo-sub000/internal/entity"
	"github.com/marcopeg/mondo-sub000/internal/model"
	"github.com/marcopeg/mondo-sub000/internal/relations"
	"github.com/marcopeg/mondo-sub000/internal/ui"
)

var relatedCmd = &cobra.Command{
	Use:   "related <note> <panel>",
	Short: "Show a related-items panel for a note",
	Long: `Evaluates one of the panels configured for the note's entity type and
prints the related notes, filtered, sorted and with the panel's columns.

Examples:
  mondo related companies/acme people
  mondo related acme tasks --json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		ws, err := openWorkspace(commandContext(cmd))
		if err != nil {
			return report(err)
		}
		defer ws.Close()

		host, err := ws.note(args[0])
		if err != nil {
			return report(err)
		}
		link, err := findPanel(ws.entities(), host, args[1])
		if err != nil {
			return report(err)
		}
		panel := ws.resolver().Panel(host, link)
		warnings := append(ws.warnings(), ws.ambiguousLinks(host)...)

		if isJSONOutput() {
			outputSuccessWithWarnings(map[string]interface{}{
				"host":  host.ID,
				"panel": panel,
			}, warnings, &Meta{Count: len(panel.Rows), QueryTimeMs: time.Since(start).Milliseconds()})
			return nil
		}
		printPanel(os.Stdout, host, panel)
		printWarnings(os.Stderr, warnings)
		return nil
	},
}

// findPanel returns the panel configured under key for host's entity type.
func findPanel(cfg *entity.Config, host model.Note, key string) (*entity.Link, error) {
	ent, ok := cfg.Entity(host.Type)
	if !ok {
		return nil, fmt.Errorf("%q: %w", host.Type, relations.ErrUnknownEntity)
	}
	link, ok := ent.Link(key)
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", ent.Type, key, relations.ErrUnknownLink)
	}
	return link, nil
}

func printPanel(w io.Writer, host model.Note, panel relations.Panel) {
	fmt.Fprintf(w, "%s %s\n\n", ui.Header(panel.Title), ui.Hint("for "+host.Title()))
	if len(panel.Rows) == 0 {
		fmt.Fprintln(w, ui.Hint("No related notes"))
		return
	}
	table := ui.NewTable(ui.NewDisplayContextFor(os.Stdout), panel.Headers...)
	for _, row := range panel.Rows {
		table.AddRow(row.Cells...)
	}
	fmt.Fprintln(w, table.String())
	fmt.Fprintln(w, ui.Hint(ui.Count(len(panel.Rows), "note", "notes")))
}

// printWarnings writes non-fatal warnings in text mode.
func printWarnings(w io.Writer, warnings []Warning) {
	for _, warn := range warnings {
		if warn.Ref != "" {
			fmt.Fprintln(w, ui.Warningf("%s: %s", warn.Ref, warn.Message))
			continue
		}
		fmt.Fprintln(w, ui.Warningf("%s", warn.Message))
	}
}

func init() {
	rootCmd.AddCommand(relatedCmd)
}
