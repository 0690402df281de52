package cmd

import (
	"github.com/spf13/cobra"
)

// newServeCmd creates the 'serve' command, which exposes the oEmbed proxy over HTTP.
func newServeCmd(c *cli) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the oEmbed proxy endpoint.",
		Long: `Runs an HTTP server exposing /oembed/1.0/proxy together with /healthz, /readyz
and /metrics until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("port") {
				port = c.app.Config().Server.Port
			}
			return c.app.Serve(cmd.Context(), port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default server.port)")
	return cmd
}
