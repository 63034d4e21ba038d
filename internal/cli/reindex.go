package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marcopeg/mondo-sub000/internal/index"
	"github.com/marcopeg/mondo-sub000/internal/ui"
	"github.com/marcopeg/mondo-sub000/internal/vault"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the note metadata index",
	Long: `Reparses every note in the vault into .mondo/index.db.

Commands keep the index current on their own by reparsing changed files;
reindex is for a fresh start after the index was deleted or corrupted.

Examples:
  mondo reindex
  mondo reindex --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		start := time.Now()

		store, err := vault.Open(getVaultPath(), vault.Options{
			Extension: getConfig().NoteExtension(),
			Logger:    logger.Named("vault"),
		})
		if err != nil {
			return handleError(ErrVaultNotFound, err, "")
		}
		db, err := index.Open(store.Root(), logger.Named("index"))
		if err != nil {
			return handleError(ErrDatabaseError, err, "Delete .mondo/index.db and try again")
		}
		defer db.Close()

		var spinner *ui.Spinner
		if !isJSONOutput() {
			spinner = ui.NewSpinner("Indexing notes...")
			spinner.Start()
		}
		res, err := db.Rebuild(ctx, store)
		if spinner != nil {
			spinner.Stop()
		}
		if err != nil {
			return report(err)
		}
		elapsed := time.Since(start).Milliseconds()

		warnings := make([]Warning, 0, len(res.Skipped))
		for _, id := range res.Skipped {
			warnings = append(warnings, Warning{Code: "NOTE_SKIPPED", Message: "note could not be parsed", Ref: id})
		}
		if snap, err := db.Snapshot(ctx); err == nil {
			warnings = append(warnings, collisionWarnings(snap)...)
		} else {
			logger.Warn("snapshot after reindex failed", zap.Error(err))
		}

		if isJSONOutput() {
			outputSuccessWithWarnings(res, warnings, &Meta{Count: res.Indexed, QueryTimeMs: elapsed})
			return nil
		}
		fmt.Println(ui.Successf("Reindexed vault in %dms %s", elapsed, ui.Count(res.Indexed, "note", "notes")))
		if res.Removed > 0 {
			fmt.Println(ui.Hint(fmt.Sprintf("removed %d stale entries", res.Removed)))
		}
		printWarnings(os.Stdout, warnings)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
