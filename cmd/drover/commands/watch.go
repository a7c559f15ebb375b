package commands

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	var flags applyFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-apply whenever the inventory or play changes",
		Long: `Apply the play once, then watch the inventory and play files and re-apply
on every change. Edits are debounced; a failing run does not stop the
watch. Interrupt to exit.`,
		Example: `  drover watch -i inventory.yaml -p webserver.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			applyOnce := func() {
				if err := executeApply(ctx, flags, false); err != nil {
					logger.WithError(err).Error("apply failed")
				}
			}
			applyOnce()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()

			// Watch the parent directories: editors replace files on save,
			// which drops watches registered on the files themselves.
			dirs := map[string]bool{}
			for _, path := range []string{flags.inventoryPath, flags.playPath} {
				dirs[filepath.Dir(path)] = true
			}
			for dir := range dirs {
				if err := watcher.Add(dir); err != nil {
					return err
				}
			}

			watched := map[string]bool{
				filepath.Clean(flags.inventoryPath): true,
				filepath.Clean(flags.playPath):      true,
			}

			var debounce *time.Timer
			pending := make(chan struct{}, 1)

			for {
				select {
				case <-ctx.Done():
					return nil

				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if !watched[filepath.Clean(event.Name)] {
						continue
					}
					if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
						continue
					}
					logger.Infof("%s changed, re-applying", event.Name)
					if debounce != nil {
						debounce.Stop()
					}
					debounce = time.AfterFunc(500*time.Millisecond, func() {
						select {
						case pending <- struct{}{}:
						default:
						}
					})

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					logger.WithError(err).Warn("watch error")

				case <-pending:
					applyOnce()
				}
			}
		},
	}

	flags.register(cmd)
	return cmd
}
