package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/embedctl/internal/cachekey"
	"github.com/JakeFAU/embedctl/internal/embed"
)

// newCacheCmd creates the 'cache' command group.
func newCacheCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Finds, triggers, and deletes oEmbed caches.",
	}
	cmd.AddCommand(newCacheClearCmd(c))
	cmd.AddCommand(newCacheFindCmd(c))
	cmd.AddCommand(newCacheTriggerCmd(c))
	cmd.AddCommand(newCacheExportCmd(c))
	return cmd
}

func newCacheClearCmd(c *cli) *cobra.Command {
	var all, export bool
	cmd := &cobra.Command{
		Use:   "clear [<post_id>]",
		Short: "Deletes all oEmbed caches for a given post, or every cache with --all.",
		Example: `  # Remove the oEmbed cache for post ID 123.
  embedctl cache clear 123

  # Back up, then remove every oEmbed cache.
  embedctl cache clear --all --export`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case all && len(args) > 0:
				return errors.New("The --all flag cannot be combined with a post ID.") //nolint:staticcheck // user-facing message
			case !all && len(args) == 0:
				return errors.New("Please specify a post ID or use the --all flag.") //nolint:staticcheck // user-facing message
			case export && !all:
				return errors.New("The --export flag can only be used with --all.") //nolint:staticcheck // user-facing message
			}

			if all {
				report, uri, err := c.app.Manager().ClearAll(cmd.Context(), export)
				if err != nil {
					return err
				}
				if uri != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Exported oEmbed caches to %s\n", uri)
				}
				if report.Total() == 0 {
					return warn(cmd, "No oEmbed caches to clear!")
				}
				success(cmd.OutOrStdout(), fmt.Sprintf("Cleared %d oEmbed caches.", report.Total()))
				return nil
			}

			postID, err := parsePostID(args[0])
			if err != nil {
				return err
			}
			n, err := c.app.Manager().ClearPost(cmd.Context(), postID)
			var postErr *embed.PostError
			switch {
			case errors.As(err, &postErr):
				return warn(cmd, postErr.Error())
			case err != nil:
				return err
			case n == 0:
				return warn(cmd, fmt.Sprintf("No oEmbed cache to clear for post %d!", postID))
			}
			success(cmd.OutOrStdout(), "Cleared oEmbed cache.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "clear all oEmbed caches")
	cmd.Flags().BoolVar(&export, "export", false, "write a backup of every cache entry before clearing")
	return cmd
}

func newCacheFindCmd(c *cli) *cobra.Command {
	var (
		width, height int
		discover      bool
	)
	cmd := &cobra.Command{
		Use:   "find <url>",
		Short: "Finds the oEmbed cache post ID for a given URL.",
		Long: `Finds the oEmbed cache post ID for a given URL.

Keep in mind that oEmbed caches are only stored in the posts table for embeds
outside a post context. Use the same --width, --height and --discover values
that were used when the embed was cached.`,
		Example: `  # Find cache post ID for a given URL.
  embedctl cache find https://www.youtube.com/watch?v=dQw4w9WgXcQ --width=500`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var supplied cachekey.Supplied
			if cmd.Flags().Changed("width") {
				supplied.Width = &width
			}
			if cmd.Flags().Changed("height") {
				supplied.Height = &height
			}
			if cmd.Flags().Changed("discover") {
				supplied.Discover = &discover
			}
			id, err := c.app.Manager().Find(cmd.Context(), args[0], supplied)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().IntVar(&width, "width", 0, "width of the embed in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "height of the embed in pixels")
	cmd.Flags().BoolVar(&discover, "discover", true, "whether discovery was used for the cached embed")
	return cmd
}

func newCacheTriggerCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <post_id>",
		Short: "Triggers the caching of all oEmbed results for a given post.",
		Example: `  # Trigger cache for post ID 123.
  embedctl cache trigger 123`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := parsePostID(args[0])
			if err != nil {
				return err
			}
			n, err := c.app.Manager().Trigger(cmd.Context(), postID)
			if errors.Is(err, embed.ErrPostNotFound) || errors.Is(err, embed.ErrUncacheablePostType) {
				return warn(cmd, err.Error())
			}
			if err != nil {
				return err
			}
			c.logger.Debug("Triggered oEmbed caching", zap.Int64("post_id", postID), zap.Int("resolved", n))
			success(cmd.OutOrStdout(), "Caching triggered!")
			return nil
		},
	}
}

func newCacheExportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Writes every oEmbed cache entry to the configured export backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uri, err := c.app.Manager().Export(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), uri)
			return nil
		},
	}
}

func parsePostID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("Invalid post ID: %s", raw) //nolint:staticcheck // user-facing message
	}
	return id, nil
}
