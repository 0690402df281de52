package cmd

import (
	"strconv"

	"github.com/spf13/cobra"
)

var handlerFields = []string{"id", "regex", "priority"}

// newHandlerCmd creates the 'handler' command group.
func newHandlerCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handler",
		Short: "Retrieves embed handlers.",
	}
	cmd.AddCommand(newHandlerListCmd(c))
	return cmd
}

func newHandlerListCmd(c *cli) *cobra.Command {
	var list listOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lists all available embed handlers.",
		Example: `  # List id,regex,priority fields of available handlers.
  embedctl handler list --fields=id,regex,priority`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			handlers := c.app.Handlers().List()
			items := make([]map[string]string, 0, len(handlers))
			for _, h := range handlers {
				items = append(items, map[string]string{
					"id":       h.ID,
					"regex":    h.Pattern,
					"priority": strconv.Itoa(h.Priority),
				})
			}
			return list.display(cmd.OutOrStdout(), items, handlerFields)
		},
	}
	list.register(cmd)
	return cmd
}
