package commands

import (
	"github.com/spf13/cobra"
)

func newPlanCommand() *cobra.Command {
	var flags applyFlags

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what apply would change, without changing anything",
		Long: `Connect to every host of the target group and evaluate each module's
diff against the host's current state. Tasks that would change are reported
as changed, but nothing is applied and no handler fires.`,
		Example: `  drover plan -i inventory.yaml -p webserver.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeApply(cmd.Context(), flags, true)
		},
	}

	flags.register(cmd)
	return cmd
}
