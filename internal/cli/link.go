package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcopeg/mondo-sub000/internal/links"
	"github.com/marcopeg/mondo-sub000/internal/merge"
	"github.com/marcopeg/mondo-sub000/internal/relations"
	"github.com/marcopeg/mondo-sub000/internal/ui"
)

var linkCmd = &cobra.Command{
	Use:   "link <host> <property> <target>",
	Short: "Add a link to a note property",
	Long: `Adds a link to target into the host's property.

A property configured as a single-valued frontmatter field is replaced;
anything else is promoted to a list and the link appended when missing.
Running the command twice leaves the same file.

Examples:
  mondo link tasks/launch company companies/acme
  mondo link tasks/launch watchers people/alice --json`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLink(cmd, args, false)
	},
}

var unlinkCmd = &cobra.Command{
	Use:   "unlink <host> <property> <target>",
	Short: "Remove a link from a note property",
	Long: `Removes every reference to target from the host's property. A property
left empty is deleted.

Examples:
  mondo unlink tasks/launch company companies/acme`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLink(cmd, args, true)
	},
}

func runLink(cmd *cobra.Command, args []string, remove bool) error {
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
	target, err := ws.note(args[2])
	if err != nil {
		return report(err)
	}
	if target.ID == host.ID && !remove {
		return report(relations.ErrSelfLink)
	}
	property := args[1]

	single := false
	if ent, ok := ws.entities().Entity(host.Type); ok {
		if field, ok := ent.Field(property); ok {
			single = !field.Multiple
		}
	}

	canon := links.New(ws.corpus).WithExtension(ws.store.Extension())
	link := links.Link(target.ID)
	changed := false
	err = ws.store.WriteMetadataAtomic(ctx, host.ID, func(m map[string]any) error {
		switch {
		case remove:
			// Drop every spelling that resolves to the target, not only the
			// canonical one.
			for _, raw := range canon.RawReferences(m[property], host.ID, target.ID) {
				if merge.RemoveLink(m, property, raw) {
					changed = true
				}
			}
		case single:
			if !canon.RefersOnly(m[property], host.ID, target.ID) {
				changed = merge.SetLink(m, property, link)
			}
		case !canon.Refers(m[property], host.ID, target.ID):
			changed = merge.AddLink(m, property, link)
		}
		return nil
	})
	if err != nil {
		return report(err)
	}

	if isJSONOutput() {
		outputSuccess(map[string]interface{}{
			"host":     host.ID,
			"property": property,
			"target":   target.ID,
			"changed":  changed,
		}, nil)
		return nil
	}

	switch {
	case !changed:
		fmt.Println(ui.Hint(fmt.Sprintf("%s.%s already up to date", host.ID, property)))
	case remove:
		fmt.Println(ui.Success(fmt.Sprintf("Unlinked %s from %s.%s", ui.NoteID(target.ID), host.ID, property)))
	default:
		fmt.Println(ui.Success(fmt.Sprintf("Linked %s into %s.%s", ui.NoteID(target.ID), host.ID, property)))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(unlinkCmd)
}
