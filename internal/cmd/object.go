package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/nimbusfs/pkg/output"
	"github.com/3leaps/nimbusfs/pkg/provider"
)

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Print an object's metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runStat,
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Write an object's content to stdout",
	Args:  cobra.ExactArgs(1),
	RunE:  runCat,
}

var statOutput string

func init() {
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(catCmd)

	statCmd.Flags().StringVarP(&statOutput, "output", "o", string(output.FormatJSONL), "Output format (jsonl|yaml|table)")
}

func runStat(cmd *cobra.Command, args []string) error {
	path := args[0]
	return withDisk(cmd, func(ctx context.Context, disk string, a provider.Adapter) error {
		w, err := output.New(statOutput, cmd.OutOrStdout(), output.NewJobID(), disk)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid output format", err)
		}
		defer func() { _ = w.Close() }()

		rec, ok := a.Metadata(ctx, path)
		if !ok {
			return objectFailure(ctx, a, "stat", path)
		}
		if err := w.WriteObject(ctx, rec); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
		}
		return nil
	})
}

func runCat(cmd *cobra.Command, args []string) error {
	path := args[0]
	return withDisk(cmd, func(ctx context.Context, _ string, a provider.Adapter) error {
		body, ok := a.ReadStream(ctx, path)
		if !ok {
			return objectFailure(ctx, a, "read", path)
		}
		defer func() { _ = body.Close() }()

		if _, err := io.Copy(cmd.OutOrStdout(), body); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to write content", err)
		}
		return nil
	})
}

// objectFailure turns a failed point operation into an exit error,
// telling a missing object apart from a provider failure.
func objectFailure(ctx context.Context, a provider.Adapter, op, path string) error {
	if !a.Exists(ctx, path) {
		return exitError(foundry.ExitFileNotFound, "Object not found",
			fmt.Errorf("%s: %w", path, provider.ErrNotFound))
	}
	return exitError(foundry.ExitExternalServiceUnavailable, "Storage operation failed",
		fmt.Errorf("%s %s failed", op, path))
}
