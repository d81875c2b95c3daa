package cmd

import (
	"context"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

var visibilityCmd = &cobra.Command{
	Use:   "visibility",
	Short: "Read or change an object's visibility",
	Long: `Read or change whether an object is public or private.

Visibility maps onto the provider ACL, or onto file permissions for the
file driver. Qiniu has no per-object ACL and reports the operation as
failed.`,
}

var visibilityGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Print public or private",
	Args:  cobra.ExactArgs(1),
	RunE:  runVisibilityGet,
}

var visibilitySetCmd = &cobra.Command{
	Use:       "set <path> <public|private>",
	Short:     "Set the object ACL",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{string(provider.VisibilityPublic), string(provider.VisibilityPrivate)},
	RunE:      runVisibilitySet,
}

func init() {
	rootCmd.AddCommand(visibilityCmd)
	visibilityCmd.AddCommand(visibilityGetCmd)
	visibilityCmd.AddCommand(visibilitySetCmd)
}

func runVisibilityGet(cmd *cobra.Command, args []string) error {
	path := args[0]
	return withDisk(cmd, func(ctx context.Context, _ string, a provider.Adapter) error {
		v, ok := a.Visibility(ctx, path)
		if !ok {
			return objectFailure(ctx, a, "get visibility", path)
		}
		return printf(cmd.OutOrStdout(), "%s\n", v)
	})
}

func runVisibilitySet(cmd *cobra.Command, args []string) error {
	if err := requireWritable("visibility set"); err != nil {
		return err
	}
	path := args[0]
	v, err := provider.ParseVisibility(args[1])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid visibility", err)
	}

	return withDisk(cmd, func(ctx context.Context, _ string, a provider.Adapter) error {
		if !a.SetVisibility(ctx, path, v) {
			return objectFailure(ctx, a, "set visibility", path)
		}
		return printf(cmd.OutOrStdout(), "%s is now %s\n", path, v)
	})
}
