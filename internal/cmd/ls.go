package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/nimbusfs/internal/observability"
	"github.com/3leaps/nimbusfs/pkg/match"
	"github.com/3leaps/nimbusfs/pkg/output"
	"github.com/3leaps/nimbusfs/pkg/provider"
)

var lsCmd = &cobra.Command{
	Use:   "ls [prefix]",
	Short: "List objects under a prefix",
	Long: `List the files and directories under a prefix on the selected disk.

Without --recursive only the immediate children are listed. Include and
exclude globs use doublestar syntax (**, *, ?, [abc], {a,b}) against the
full object path. When includes are given without a prefix, the listing
starts at their longest common literal prefix.

Examples:
  nimbusfs ls
  nimbusfs ls docs/ -r --include '**/*.pdf' --exclude 'docs/tmp/**'
  nimbusfs ls logs/ -r --min-size 1MiB --after 2024-01-01 -o table`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

var (
	lsRecursive bool
	lsIncludes  []string
	lsExcludes  []string
	lsHidden    bool
	lsMinSize   string
	lsMaxSize   string
	lsAfter     string
	lsBefore    string
	lsOutput    string
)

func init() {
	rootCmd.AddCommand(lsCmd)

	lsCmd.Flags().BoolVarP(&lsRecursive, "recursive", "r", false, "List every nested entry")
	lsCmd.Flags().StringArrayVar(&lsIncludes, "include", nil, "Glob a path must match (repeatable)")
	lsCmd.Flags().StringArrayVar(&lsExcludes, "exclude", nil, "Glob a path must not match (repeatable)")
	lsCmd.Flags().BoolVar(&lsHidden, "hidden", false, "Include dot-prefixed paths")
	lsCmd.Flags().StringVar(&lsMinSize, "min-size", "", "Minimum file size (e.g. 1KB, 10MiB)")
	lsCmd.Flags().StringVar(&lsMaxSize, "max-size", "", "Maximum file size")
	lsCmd.Flags().StringVar(&lsAfter, "after", "", "Modified at or after (2006-01-02 or RFC 3339)")
	lsCmd.Flags().StringVar(&lsBefore, "before", "", "Modified before (2006-01-02 or RFC 3339)")
	lsCmd.Flags().StringVarP(&lsOutput, "output", "o", string(output.FormatJSONL), "Output format (jsonl|yaml|table)")
}

func runLs(cmd *cobra.Command, args []string) error {
	matcher, err := match.New(match.Config{
		Includes:      lsIncludes,
		Excludes:      lsExcludes,
		IncludeHidden: lsHidden,
		Filter: &match.FilterConfig{
			MinSize: lsMinSize,
			MaxSize: lsMaxSize,
			After:   lsAfter,
			Before:  lsBefore,
		},
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid filter", err)
	}

	prefix := matcher.ListPrefix()
	if len(args) == 1 {
		prefix = args[0]
	}
	// Patterns below the prefix's first level need a recursive walk.
	recursive := lsRecursive || (len(args) == 0 && len(lsIncludes) > 0)

	return withDisk(cmd, func(ctx context.Context, disk string, a provider.Adapter) error {
		w, err := output.New(lsOutput, cmd.OutOrStdout(), output.NewJobID(), disk)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid output format", err)
		}
		defer func() { _ = w.Close() }()

		start := time.Now()
		records, err := a.ListDirectory(ctx, prefix, recursive)
		if err != nil {
			_ = w.WriteError(ctx, &output.ErrorRecord{
				Code:    output.ErrorCode(err),
				Message: err.Error(),
				Path:    prefix,
			})
			return exitError(foundry.ExitExternalServiceUnavailable, "Listing failed", err)
		}

		summary := &output.SummaryRecord{}
		for i := range records {
			rec := &records[i]
			if !matcher.Match(rec) {
				continue
			}
			if err := w.WriteObject(ctx, rec); err != nil {
				return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
			}
			summary.Add(rec)
		}
		summary.Duration = time.Since(start)
		summary.DurationHuman = summary.Duration.String()

		observability.CLILogger.Debug("Listing complete",
			zap.String("prefix", prefix),
			zap.Bool("recursive", recursive),
			zap.Int("listed", len(records)),
			zap.Int64("files", summary.Files),
			zap.Int64("dirs", summary.Dirs))

		if err := w.WriteSummary(ctx, summary); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to write summary", err)
		}
		return nil
	})
}

func describe(rec *provider.ObjectRecord) string {
	if rec.IsDir() {
		return rec.Path + "/"
	}
	return fmt.Sprintf("%s (%s)", rec.Path, output.FormatSize(sizeOf(rec)))
}

func sizeOf(rec *provider.ObjectRecord) int64 {
	if rec.Size == nil {
		return 0
	}
	return *rec.Size
}
