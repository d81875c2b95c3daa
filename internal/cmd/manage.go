package cmd

import (
	"context"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

var cpCmd = &cobra.Command{
	Use:   "cp <src> <dst>",
	Short: "Copy an object server-side",
	Args:  cobra.ExactArgs(2),
	RunE:  runCp,
}

var mvCmd = &cobra.Command{
	Use:   "mv <src> <dst>",
	Short: "Move an object (copy, then delete the source)",
	Long: `Move an object by copying it and deleting the source.

The move is not atomic on object stores. When the copy succeeds and the
delete fails, both objects remain and the command exits non-zero.`,
	Args: cobra.ExactArgs(2),
	RunE: runMv,
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete an object, or a directory with --recursive",
	Args:  cobra.ExactArgs(1),
	RunE:  runRm,
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory placeholder",
	Args:  cobra.ExactArgs(1),
	RunE:  runMkdir,
}

var (
	rmRecursive     bool
	mkdirVisibility string
)

func init() {
	rootCmd.AddCommand(cpCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(mkdirCmd)

	rmCmd.Flags().BoolVarP(&rmRecursive, "recursive", "r", false, "Delete every object under the prefix")
	mkdirCmd.Flags().StringVar(&mkdirVisibility, "visibility", "", "Placeholder visibility (public|private)")
}

func runCp(cmd *cobra.Command, args []string) error {
	if err := requireWritable("cp"); err != nil {
		return err
	}
	src, dst := args[0], args[1]
	return withDisk(cmd, func(ctx context.Context, _ string, a provider.Adapter) error {
		if !a.Copy(ctx, src, dst) {
			return objectFailure(ctx, a, "copy", src)
		}
		return printf(cmd.OutOrStdout(), "Copied %s -> %s\n", src, dst)
	})
}

func runMv(cmd *cobra.Command, args []string) error {
	if err := requireWritable("mv"); err != nil {
		return err
	}
	src, dst := args[0], args[1]
	return withDisk(cmd, func(ctx context.Context, _ string, a provider.Adapter) error {
		if !a.Rename(ctx, src, dst) {
			return objectFailure(ctx, a, "move", src)
		}
		return printf(cmd.OutOrStdout(), "Moved %s -> %s\n", src, dst)
	})
}

func runRm(cmd *cobra.Command, args []string) error {
	if err := requireWritable("rm"); err != nil {
		return err
	}
	path := args[0]
	return withDisk(cmd, func(ctx context.Context, _ string, a provider.Adapter) error {
		if rmRecursive {
			if !a.DeleteDirectory(ctx, path) {
				return exitError(foundry.ExitExternalServiceUnavailable, "Delete failed",
					fmt.Errorf("delete directory %s failed", path))
			}
			return printf(cmd.OutOrStdout(), "Deleted %s/\n", path)
		}

		if !a.Exists(ctx, path) {
			return exitError(foundry.ExitFileNotFound, "Object not found",
				fmt.Errorf("%s: %w", path, provider.ErrNotFound))
		}
		if !a.Delete(ctx, path) {
			return exitError(foundry.ExitExternalServiceUnavailable, "Delete failed",
				fmt.Errorf("delete %s failed", path))
		}
		return printf(cmd.OutOrStdout(), "Deleted %s\n", path)
	})
}

func runMkdir(cmd *cobra.Command, args []string) error {
	if err := requireWritable("mkdir"); err != nil {
		return err
	}
	var opts provider.UploadOptions
	if mkdirVisibility != "" {
		v, err := provider.ParseVisibility(mkdirVisibility)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid visibility", err)
		}
		opts.Visibility = v
	}

	path := args[0]
	return withDisk(cmd, func(ctx context.Context, _ string, a provider.Adapter) error {
		rec, ok := a.CreateDirectory(ctx, path, opts)
		if !ok {
			return exitError(foundry.ExitFileWriteError, "Create directory failed",
				fmt.Errorf("mkdir %s failed", path))
		}
		return printf(cmd.OutOrStdout(), "Created %s\n", describe(rec))
	})
}
