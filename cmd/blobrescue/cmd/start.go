package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/blobrescue/internal/config"
	"github.com/dbsmedya/blobrescue/internal/database"
	"github.com/dbsmedya/blobrescue/internal/digest"
	"github.com/dbsmedya/blobrescue/internal/lock"
	"github.com/dbsmedya/blobrescue/internal/logger"
	"github.com/dbsmedya/blobrescue/internal/lostfound"
	"github.com/dbsmedya/blobrescue/internal/mailstore"
	"github.com/dbsmedya/blobrescue/internal/rescue"
	"github.com/dbsmedya/blobrescue/internal/zimbra"
)

var (
	startMailboxes       string
	startVolumes         string
	startSkipSizeCheck   bool
	startRepairFile      string
	startUsedBlobList    string
	startLostFoundDir    string
	startContinueOnError bool
	startForce           bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Check mailboxes and suggest repairs for missing blobs",
	Long: `Start runs the rescue.

Steps:
  1. Hash every file directly inside the lost+found directory
  2. Ask the admin service for missing blobs, one mailbox at a time
  3. Look up each item's recorded digest in the lost+found index
  4. Print one repair command per missing blob

Without --mailboxes every mailbox on the server is checked.

Example:
  blobrescue start --lostfound-dir /opt/zimbra/lost+found \
    --mailboxes 12,40 --suggested-repair-commands-file repair.sh`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVarP(&startMailboxes, "mailboxes", "m", "",
		"Comma-separated mailbox ids to check (default: all mailboxes)")
	startCmd.Flags().StringVar(&startVolumes, "volumes", "",
		"Comma-separated volume ids to check (default: all volumes)")
	startCmd.Flags().BoolVar(&startSkipSizeCheck, "skip-size-check", false,
		"Do not compare blob sizes with the database")
	startCmd.Flags().StringVar(&startRepairFile, "suggested-repair-commands-file", "",
		"Write repair commands to this file")
	startCmd.Flags().StringVar(&startUsedBlobList, "used-blob-list", "",
		"Write the path of every referenced blob to this file")
	startCmd.Flags().StringVar(&startLostFoundDir, "lostfound-dir", "",
		"Directory holding recovered blob files (required here or in config)")
	startCmd.Flags().BoolVar(&startContinueOnError, "continue-on-error", false,
		"Record a failed mailbox and continue with the next one")
	startCmd.Flags().BoolVar(&startForce, "force", false,
		"Run even if the rescue lock cannot be acquired (use with caution)")

	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	mailboxes, err := parseMailboxIDs(startMailboxes)
	if err != nil {
		return err
	}
	volumes, err := parseVolumeIDs(startVolumes)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(config.Overrides{
		LostFoundDir:                startLostFoundDir,
		SuggestedRepairCommandsFile: startRepairFile,
		UsedBlobListFile:            startUsedBlobList,
		Mailboxes:                   mailboxes,
		Volumes:                     volumes,
		SkipSizeCheck:               startSkipSizeCheck,
		ContinueOnError:             startContinueOnError,
	})
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	enc, err := digest.ParseEncoding(cfg.Rescue.DigestEncoding)
	if err != nil {
		return err
	}

	// Arguments are valid; later failures are not usage errors.
	cmd.SilenceUsage = true

	baseLog, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer baseLog.Sync()
	log := baseLog.WithRun(uuid.NewString())

	if err := rescueMailboxes(context.Background(), cmd, cfg, enc, log); err != nil {
		log.Errorw("Rescue failed", "error", err)
		return err
	}
	return nil
}

func rescueMailboxes(ctx context.Context, cmd *cobra.Command, cfg *config.Config, enc digest.Encoding, log *logger.Logger) error {
	log.Infow("Starting blob rescue",
		"config", GetConfigFile(),
		"lostfound_dir", cfg.Rescue.LostFoundDir,
		"check_size", cfg.Rescue.CheckSize(),
	)

	sink, err := rescue.OpenSink(cmd.OutOrStdout(), cfg.Rescue.SuggestedRepairCommandsFile, cfg.Rescue.UsedBlobListFile, log)
	if err != nil {
		return err
	}
	defer sink.Close()

	index, err := lostfound.NewBuilder(nil, log).Build(cfg.Rescue.LostFoundDir)
	if err != nil {
		return fmt.Errorf("failed to index lost+found directory: %w", err)
	}

	client, err := zimbra.NewClient(&cfg.Admin, log)
	if err != nil {
		return err
	}
	if err := client.Authenticate(ctx); err != nil {
		return fmt.Errorf("failed to authenticate to admin service: %w", err)
	}

	mailboxIDs := cfg.Rescue.Mailboxes
	if len(mailboxIDs) == 0 {
		mailboxIDs, err = client.AllMailboxIDs(ctx)
		if err != nil {
			return fmt.Errorf("failed to list mailboxes: %w", err)
		}
		log.Infow("Checking all mailboxes", "count", len(mailboxIDs))
	}

	dbManager := database.NewManager(&cfg.Store)
	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to mail store database: %w", err)
	}
	defer dbManager.Close()

	if !startForce {
		runLock := lock.NewRunLock(dbManager.Store, cfg.Store.Database)
		if err := runLock.AcquireOrFail(ctx); err != nil {
			if errors.Is(err, lock.ErrLockTimeout) {
				return fmt.Errorf("another rescue is already running against %q (use --force to override)", cfg.Store.Database)
			}
			return fmt.Errorf("failed to acquire rescue lock: %w", err)
		}
		defer releaseRunLock(runLock, log)
		log.Infow("Acquired rescue lock", "lock", runLock.LockName())
	} else {
		log.Warn("Skipping rescue lock acquisition (--force flag used)")
	}

	store, err := mailstore.NewStore(dbManager.Store, mailstore.Options{
		Database:       cfg.Store.Database,
		DigestEncoding: enc,
		GroupCacheSize: cfg.Rescue.MailboxGroupCacheSize,
	}, log)
	if err != nil {
		return err
	}

	rescuer := rescue.NewRescuer(client, rescue.NewSynthesizer(store, log), log, rescue.Options{
		VolumeIDs:       cfg.Rescue.Volumes,
		CheckSize:       cfg.Rescue.CheckSize(),
		ContinueOnError: cfg.Rescue.ContinueOnError,
	})

	result, err := rescuer.Execute(ctx, &rescue.Run{Index: index, Sink: sink}, mailboxIDs)
	printSummary(cmd.ErrOrStderr(), result)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%d mailbox(es) failed", len(result.Errors))
	}
	return nil
}

func printSummary(w io.Writer, result *rescue.RescueResult) {
	status := color.Green.Sprint("completed")
	if !result.Success {
		status = color.Red.Sprint("completed with errors")
	}

	fmt.Fprintf(w, "\nRescue %s in %s\n", status, result.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Mailboxes checked:  %d\n", result.MailboxesChecked)
	fmt.Fprintf(w, "  Missing blobs:      %d\n", result.MissingBlobs)
	fmt.Fprintf(w, "  Recovered copies:   %s\n", color.Green.Sprintf("%d", result.CopySuggestions))
	fmt.Fprintf(w, "  Placeholders:       %s\n", color.Yellow.Sprintf("%d", result.PlaceholderBlobs))
	if result.UsedBlobsRecorded > 0 {
		fmt.Fprintf(w, "  Used blobs listed:  %d\n", result.UsedBlobsRecorded)
	}
	for _, err := range result.Errors {
		fmt.Fprintf(w, "  %s %v\n", color.Red.Sprint("error:"), err)
	}
}

// parseMailboxIDs parses a comma-separated list of positive mailbox ids.
func parseMailboxIDs(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		id, err := strconv.Atoi(part)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid mailbox id: %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseVolumeIDs parses a comma-separated list of volume ids.
func parseVolumeIDs(s string) ([]int16, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var ids []int16
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		id, err := strconv.ParseInt(part, 10, 16)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("invalid volume id: %q", part)
		}
		ids = append(ids, int16(id))
	}
	return ids, nil
}

// releaseRunLock frees a held rescue lock. A failed release is logged only;
// the server drops the lock with the connection anyway.
func releaseRunLock(l *lock.AdvisoryLock, log *logger.Logger) {
	if !l.IsHeld() {
		return
	}
	if _, err := l.ReleaseLock(context.Background()); err != nil {
		log.Warnw("Failed to release rescue lock", "lock", l.LockName(), "error", err)
	}
}
