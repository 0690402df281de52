package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/embedctl/internal/embed"
)

var providerFields = []string{"format", "endpoint"}

// newProviderCmd creates the 'provider' command group.
func newProviderCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Retrieves oEmbed providers.",
	}
	cmd.AddCommand(newProviderListCmd(c))
	cmd.AddCommand(newProviderGetCmd(c))
	return cmd
}

func newProviderListCmd(c *cli) *cobra.Command {
	var (
		list       listOptions
		forceRegex bool
		endpoint   string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lists all available oEmbed providers.",
		Example: `  # List format,endpoint fields of available providers.
  embedctl provider list --fields=format,endpoint

  # Get the endpoint of every provider as a regular expression.
  embedctl provider list --field=format --force-regex`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			providers := c.app.Providers().List(forceRegex)
			items := make([]map[string]string, 0, len(providers))
			for _, p := range providers {
				if endpoint != "" && p.Endpoint != endpoint {
					continue
				}
				items = append(items, map[string]string{"format": p.Pattern, "endpoint": p.Endpoint})
			}
			return list.display(cmd.OutOrStdout(), items, providerFields)
		},
	}
	list.register(cmd)
	cmd.Flags().BoolVar(&forceRegex, "force-regex", false, "turn the wildcard format into a regex")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "only list providers with this endpoint")
	return cmd
}

func newProviderGetCmd(c *cli) *cobra.Command {
	var (
		discover bool
		limit    int64
		linkType string
	)
	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Gets the matching provider for a given URL.",
		Example: `  # Get the matching provider for the URL.
  embedctl provider get https://www.youtube.com/watch?v=dQw4w9WgXcQ

  # Find an oEmbed provider through discovery, preferring XML links.
  embedctl provider get https://example.com/post --link-type=xml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("limit-response-size") && !discover {
				return &embed.OptionError{Reason: "The 'limit-response-size' option can only be used with discovery."}
			}
			if linkType != "" && linkType != "json" && linkType != "xml" {
				return fmt.Errorf("Invalid link type: %s", linkType) //nolint:staticcheck // user-facing message
			}
			opts := embed.MatchOptions{
				Discover:          discover,
				ResponseSizeLimit: c.app.Config().Embed.ResponseSizeLimit,
				LinkType:          linkType,
			}
			if cmd.Flags().Changed("limit-response-size") {
				if limit <= 0 {
					return &embed.OptionError{Reason: "The 'limit-response-size' option must be a positive number of bytes."}
				}
				opts.ResponseSizeLimit = limit
			}

			provider, ok, err := c.app.Providers().Match(cmd.Context(), args[0], opts)
			if err != nil {
				c.app.Logger().Debug("Provider discovery failed", zap.String("url", args[0]), zap.Error(err))
			}
			if !ok {
				return &embed.NoProviderError{Discover: discover}
			}
			fmt.Fprintln(cmd.OutOrStdout(), provider.Endpoint)
			return nil
		},
	}
	cmd.Flags().BoolVar(&discover, "discover", true, "enable oEmbed discovery")
	cmd.Flags().Int64Var(&limit, "limit-response-size", 0, "limit the size of the fetched page when using discovery")
	cmd.Flags().StringVar(&linkType, "link-type", "", "which discovery link type to prefer (json, xml)")
	cmd.Flags().StringVar(&linkType, "format", "", "alias of --link-type")
	_ = cmd.Flags().MarkDeprecated("format", "use --link-type instead")
	return cmd
}
