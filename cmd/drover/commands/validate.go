package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/droverhq/drover/pkg/run"
)

func newValidateCommand() *cobra.Command {
	var (
		inventoryPath string
		playPath      string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate an inventory and play without connecting anywhere",
		Long: `Parse and schema-check the inventory and play, including notify target
resolution and target group membership. No host is contacted.`,
		Example: `  drover validate -i inventory.yaml -p webserver.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, play, err := loadInputs(inventoryPath, playPath)
			if err != nil {
				return err
			}

			hosts, ok := inv.Group(play.Targets)
			if !ok {
				return run.NewParseError(fmt.Errorf("play %q targets unknown group %q", play.Name, play.Targets))
			}

			fmt.Printf("inventory ok: %d host(s) in %d group(s)\n", inv.Len(), len(inv.Groups()))
			fmt.Printf("play ok: %q, %d task(s), %d handler(s), targets %q (%d host(s))\n",
				play.Name, len(play.Tasks), len(play.Handlers), play.Targets, len(hosts))
			return nil
		},
	}

	cmd.Flags().StringVarP(&inventoryPath, "inventory", "i", "inventory.yaml", "inventory file path")
	cmd.Flags().StringVarP(&playPath, "play", "p", "play.yaml", "play file path")
	return cmd
}
