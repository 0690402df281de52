package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/embedctl/internal/embed"
	"github.com/JakeFAU/embedctl/internal/rawcodec"
)

type fetchOptions struct {
	width            int
	height           int
	postID           int64
	skipCache        bool
	raw              bool
	rawFormat        string
	discover         bool
	limit            int64
	doShortcode      bool
	skipSanitization bool
	linkType         string
}

// newFetchCmd creates the 'fetch' command, which resolves one URL to embed HTML or
// the provider's raw payload.
func newFetchCmd(c *cli) *cobra.Command {
	opts := &fetchOptions{}
	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Attempts to convert a URL into embed HTML.",
		Long: `Resolves a URL through the embed handlers, the oEmbed cache, local posts and
the provider registry (with discovery unless disabled) and prints the result.`,
		Example: `  # Get embed HTML for a given URL.
  embedctl fetch https://www.youtube.com/watch?v=dQw4w9WgXcQ

  # Get raw oEmbed data as XML.
  embedctl fetch https://www.youtube.com/watch?v=dQw4w9WgXcQ --raw --raw-format=xml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(cmd, args[0])
			if err != nil {
				return err
			}
			resp, err := c.app.Resolver().Resolve(cmd.Context(), req)
			if err != nil {
				var fetchErr *embed.FetchError
				if errors.As(err, &fetchErr) && fetchErr.Cause != nil {
					c.logger.Debug("oEmbed fetch failed", zap.String("url", req.URL), zap.Error(fetchErr.Cause))
				}
				return err
			}
			for _, w := range resp.Warnings {
				warning(cmd.ErrOrStderr(), w)
			}
			out := resp.HTML
			if req.Raw {
				out = resp.Raw
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSuffix(out, "\n"))
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.width, "width", 0, "width of the embed in pixels")
	f.IntVar(&opts.height, "height", 0, "height of the embed in pixels")
	f.Int64Var(&opts.postID, "post-id", 0, "cache the oEmbed response for a given post")
	f.BoolVar(&opts.skipCache, "skip-cache", false, "ignore already cached oEmbed responses")
	f.BoolVar(&opts.raw, "raw", false, "return the raw oEmbed response instead of the resulting HTML")
	f.StringVar(&opts.rawFormat, "raw-format", "", "render raw oEmbed data in a particular format (json, xml)")
	f.BoolVar(&opts.discover, "discover", true, "enable oEmbed discovery")
	f.Int64Var(&opts.limit, "limit-response-size", 0, "limit the size of the resulting HTML when using discovery")
	f.BoolVar(&opts.doShortcode, "do-shortcode", false, "expand the result if it is a shortcode")
	f.BoolVar(&opts.skipSanitization, "skip-sanitization", false, "remove the filter that sanitizes discovered embeds")
	f.StringVar(&opts.linkType, "link-type", "", "which discovery link type to prefer (json, xml)")
	return cmd
}

// request maps flags to an embed request. Only flags the operator set contribute to
// the cache key.
func (o *fetchOptions) request(cmd *cobra.Command, url string) (embed.Request, error) {
	f := cmd.Flags()
	req := embed.Request{
		URL:              url,
		SkipCache:        o.skipCache,
		Raw:              o.raw,
		DoShortcode:      o.doShortcode,
		SkipSanitization: o.skipSanitization,
		Format:           o.linkType,
	}
	if f.Changed("width") {
		req.Width = &o.width
	}
	if f.Changed("height") {
		req.Height = &o.height
	}
	if f.Changed("discover") {
		req.Discover = &o.discover
	}
	if f.Changed("post-id") {
		req.PostID = &o.postID
	}
	if f.Changed("limit-response-size") {
		req.ResponseSizeLimit = &o.limit
	}
	if o.rawFormat != "" {
		format, err := rawcodec.ParseFormat(o.rawFormat)
		if err != nil {
			return embed.Request{}, fmt.Errorf("Invalid raw format: %s", o.rawFormat) //nolint:staticcheck // user-facing message
		}
		req.RawFormat = format
	}
	return req, nil
}
