package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

// maxURLExpiry is the longest lifetime SigV4 presigning accepts.
const maxURLExpiry = 7 * 24 * time.Hour

var urlCmd = &cobra.Command{
	Use:   "url <path>",
	Short: "Print the public or a temporary signed URL",
	Long: `Print the URL of an object.

Without --expires the public URL is printed; it goes through the disk's
CDN domain when one is configured. With --expires a provider-signed URL
valid for that duration is printed.

Examples:
  nimbusfs url images/logo.png
  nimbusfs url reports/q3.pdf --expires 15m --disposition 'attachment; filename="q3.pdf"'`,
	Args: cobra.ExactArgs(1),
	RunE: runURL,
}

var (
	urlExpires     time.Duration
	urlContentType string
	urlDisposition string
)

func init() {
	rootCmd.AddCommand(urlCmd)

	urlCmd.Flags().DurationVar(&urlExpires, "expires", 0, "Lifetime of a signed URL (e.g. 15m, 24h)")
	urlCmd.Flags().StringVar(&urlContentType, "content-type", "", "Response Content-Type override for signed URLs")
	urlCmd.Flags().StringVar(&urlDisposition, "disposition", "", "Response Content-Disposition override for signed URLs")
}

func runURL(cmd *cobra.Command, args []string) error {
	path := args[0]
	if urlExpires < 0 || urlExpires > maxURLExpiry {
		return exitError(foundry.ExitInvalidArgument, "Invalid expiry",
			fmt.Errorf("--expires must be between 0 and %s", maxURLExpiry))
	}
	if urlExpires == 0 && (urlContentType != "" || urlDisposition != "") {
		return exitError(foundry.ExitInvalidArgument, "Response overrides need a signed URL",
			errors.New("set --expires"))
	}

	return withDisk(cmd, func(ctx context.Context, _ string, a provider.Adapter) error {
		if urlExpires == 0 {
			return printf(cmd.OutOrStdout(), "%s\n", a.URL(path))
		}

		signed, ok := a.TemporaryURL(ctx, path, time.Now().Add(urlExpires), provider.URLOptions{
			ResponseContentType:        urlContentType,
			ResponseContentDisposition: urlDisposition,
		})
		if !ok {
			return exitError(foundry.ExitExternalServiceUnavailable, "Failed to sign URL",
				fmt.Errorf("temporary url for %s failed", path))
		}
		return printf(cmd.OutOrStdout(), "%s\n", signed)
	})
}
