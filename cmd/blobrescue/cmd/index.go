package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/blobrescue/internal/config"
	"github.com/dbsmedya/blobrescue/internal/logger"
	"github.com/dbsmedya/blobrescue/internal/lostfound"
)

var indexLostFoundDir string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Show the digest index of a lost+found directory",
	Long: `Index hashes every file directly inside the lost+found directory and
prints one line per distinct digest. Nothing is sent to the mail server.

Use it to check what a rescue would be able to restore.

Example:
  blobrescue index --lostfound-dir /opt/zimbra/lost+found`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexLostFoundDir, "lostfound-dir", "",
		"Directory holding recovered blob files (required here or in config)")

	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(config.Overrides{LostFoundDir: indexLostFoundDir})
	if err != nil {
		return err
	}
	if err := cfg.ValidateLostFound(); err != nil {
		return err
	}
	cmd.SilenceUsage = true

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ix, err := lostfound.NewBuilder(nil, log).Build(cfg.Rescue.LostFoundDir)
	if err != nil {
		return fmt.Errorf("failed to index lost+found directory: %w", err)
	}

	printIndex(cmd.OutOrStdout(), ix)
	return nil
}

// printIndex writes one aligned row per index entry followed by a total line.
func printIndex(w io.Writer, ix *lostfound.Index) {
	entries := ix.Entries()

	sizes := make([]string, len(entries))
	sizeWidth := runewidth.StringWidth("SIZE")
	for i, e := range entries {
		sizes[i] = humanize.IBytes(uint64(e.Size))
		if sw := runewidth.StringWidth(sizes[i]); sw > sizeWidth {
			sizeWidth = sw
		}
	}

	digestWidth := runewidth.StringWidth("DIGEST")
	for _, e := range entries {
		if dw := runewidth.StringWidth(e.Digest); dw > digestWidth {
			digestWidth = dw
		}
	}

	fmt.Fprintf(w, "%s  %s  %s\n",
		runewidth.FillRight("DIGEST", digestWidth),
		runewidth.FillLeft("SIZE", sizeWidth),
		"PATH")
	for i, e := range entries {
		fmt.Fprintf(w, "%s  %s  %s\n",
			runewidth.FillRight(e.Digest, digestWidth),
			runewidth.FillLeft(sizes[i], sizeWidth),
			e.Path)
	}

	fmt.Fprintf(w, "\n%d file(s) in %s, %d distinct digest(s), %s\n",
		ix.ScannedFiles(), ix.Dir(), ix.Len(), humanize.IBytes(uint64(ix.ScannedBytes())))
}
