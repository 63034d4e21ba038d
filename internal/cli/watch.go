package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marcopeg/mondo-sub000/internal/entity"
	"github.com/marcopeg/mondo-sub000/internal/ui"
	"github.com/marcopeg/mondo-sub000/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch <note> <panel>",
	Short: "Show a related panel and refresh it as files change",
	Long: `Prints a related-items panel, then watches the vault and prints it again
whenever a note or the entities file changes. Stop with Ctrl-C.

With --json every refresh is written as its own JSON document.

Examples:
  mondo watch companies/acme people`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ws, err := openWorkspace(ctx)
		if err != nil {
			return report(err)
		}
		defer ws.Close()
		if ws.db == nil {
			return handleErrorMsg(ErrDatabaseError, "watch needs the index, which could not be opened", "Run 'mondo reindex' and try again")
		}

		live := &livePanel{ws: ws, hostRef: args[0], panelKey: args[1]}
		if err := live.render(ctx); err != nil {
			return report(err)
		}

		unsubscribe := ws.registry.Subscribe(func(*entity.Config) {
			if err := live.render(ctx); err != nil {
				live.warn(err)
			}
		})
		defer unsubscribe()

		w, err := watcher.New(watcher.Config{
			Store:        ws.store,
			Database:     ws.db,
			EntitiesFile: ws.entitiesPath,
			Logger:       logger,
			OnChange: func(ids []string) {
				ws.log.Debug("notes changed", zap.Strings("ids", ids))
				if err := live.reload(ctx); err != nil {
					live.warn(err)
				}
			},
			OnEntitiesChange: func() {
				// Set notifies the subscription above, which re-renders.
				if err := ws.loadEntities(); err != nil {
					live.warn(err)
				}
			},
		})
		if err != nil {
			return handleError(ErrInternal, err, "")
		}

		if !isJSONOutput() {
			fmt.Fprintln(os.Stderr, ui.Hint("Watching for changes (Ctrl-C to stop)..."))
		}
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return handleError(ErrInternal, err, "")
		}
		return nil
	},
}

// livePanel re-renders one panel against the latest snapshot. Renders are
// serialised; the watcher and the registry call in from different
// goroutines.
type livePanel struct {
	mu       sync.Mutex
	ws       *workspace
	hostRef  string
	panelKey string
}

// reload takes a fresh snapshot from the index and renders.
func (l *livePanel) reload(ctx context.Context) error {
	l.mu.Lock()
	snap, err := l.ws.db.Snapshot(ctx)
	if err == nil {
		l.ws.corpus = snap
	}
	l.mu.Unlock()
	if err != nil {
		return err
	}
	return l.render(ctx)
}

func (l *livePanel) render(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	host, err := l.ws.note(l.hostRef)
	if err != nil {
		return err
	}
	link, err := findPanel(l.ws.entities(), host, l.panelKey)
	if err != nil {
		return err
	}
	panel := l.ws.resolver().Panel(host, link)
	warnings := l.ws.ambiguousLinks(host)

	if isJSONOutput() {
		outputSuccessWithWarnings(map[string]interface{}{
			"host":  host.ID,
			"panel": panel,
		}, warnings, &Meta{Count: len(panel.Rows)})
		return nil
	}
	printPanel(os.Stdout, host, panel)
	printWarnings(os.Stderr, warnings)
	fmt.Println()
	return nil
}

func (l *livePanel) warn(err error) {
	if isJSONOutput() {
		outputError(codeFor(err), err.Error(), nil, "")
		return
	}
	fmt.Fprintln(os.Stderr, ui.Warningf("%v", err))
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
