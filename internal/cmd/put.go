package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/nimbusfs/internal/observability"
	"github.com/3leaps/nimbusfs/pkg/provider"
)

var putCmd = &cobra.Command{
	Use:   "put <path>",
	Short: "Upload a local file or stdin to an object",
	Long: `Upload content to path on the selected disk, replacing any existing object.

Content comes from --file, or from stdin when --file is omitted or "-".
The content type is detected from the object path unless --content-type
is given.

Examples:
  nimbusfs put reports/q3.pdf --file ./q3.pdf --visibility private
  echo hello | nimbusfs put notes/hello.txt
  nimbusfs put data/x.bin --file x.bin --param owner=ops --encrypt`,
	Args: cobra.ExactArgs(1),
	RunE: runPut,
}

var (
	putFile        string
	putContentType string
	putVisibility  string
	putParams      map[string]string
	putEncrypt     bool
)

func init() {
	rootCmd.AddCommand(putCmd)

	putCmd.Flags().StringVarP(&putFile, "file", "f", "", "Local file to upload (default stdin)")
	putCmd.Flags().StringVar(&putContentType, "content-type", "", "Content type (default detected from path)")
	putCmd.Flags().StringVar(&putVisibility, "visibility", "", "Object visibility (public|private)")
	putCmd.Flags().StringToStringVar(&putParams, "param", nil, "Provider-specific metadata key=value (repeatable)")
	putCmd.Flags().BoolVar(&putEncrypt, "encrypt", false, "Request server-side encryption")
}

func runPut(cmd *cobra.Command, args []string) error {
	if err := requireWritable("put"); err != nil {
		return err
	}
	path := args[0]

	opts := provider.UploadOptions{
		ContentType: putContentType,
		Params:      putParams,
		Encrypt:     putEncrypt,
	}
	if putVisibility != "" {
		v, err := provider.ParseVisibility(putVisibility)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid visibility", err)
		}
		opts.Visibility = v
	}

	src := cmd.InOrStdin()
	if putFile != "" && putFile != "-" {
		f, err := os.Open(putFile)
		if err != nil {
			return exitError(foundry.ExitFileNotFound, "Failed to open source file", err)
		}
		defer func() { _ = f.Close() }()
		src = f
	}

	return withDisk(cmd, func(ctx context.Context, _ string, a provider.Adapter) error {
		rec, ok := a.UpdateStream(ctx, path, src, opts)
		if !ok {
			return exitError(foundry.ExitFileWriteError, "Upload failed", fmt.Errorf("put %s failed", path))
		}
		observability.CLILogger.Debug("Object written", zap.String("path", rec.Path))
		return printf(cmd.OutOrStdout(), "Wrote %s\n", describe(rec))
	})
}

func printf(w io.Writer, format string, args ...any) error {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
	}
	return nil
}
