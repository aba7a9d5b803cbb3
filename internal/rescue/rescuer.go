package rescue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dbsmedya/blobrescue/internal/logger"
	"github.com/dbsmedya/blobrescue/internal/types"
)

// ConsistencyChecker runs the server-side blob consistency check.
type ConsistencyChecker interface {
	CheckBlobConsistency(ctx context.Context, req types.ConsistencyRequest) ([]types.MailboxReport, error)
}

// MailboxError is a failure that aborted the processing of one mailbox.
type MailboxError struct {
	MailboxID int
	Err       error
}

func (e *MailboxError) Error() string {
	return fmt.Sprintf("mailbox %d: %v", e.MailboxID, e.Err)
}

func (e *MailboxError) Unwrap() error {
	return e.Err
}

// OutputError is a failure writing suggestions. It always stops the run.
type OutputError struct {
	Err error
}

func (e *OutputError) Error() string {
	return e.Err.Error()
}

func (e *OutputError) Unwrap() error {
	return e.Err
}

// Options controls a Rescuer.
type Options struct {
	VolumeIDs       []int16
	CheckSize       bool
	ContinueOnError bool
}

// RescueResult contains statistics and status of a rescue run.
type RescueResult struct {
	StartedAt         time.Time
	CompletedAt       time.Time
	Duration          time.Duration
	MailboxesChecked  int
	MissingBlobs      int
	CopySuggestions   int
	PlaceholderBlobs  int
	UsedBlobsRecorded int
	Errors            []error
	Success           bool
}

// Rescuer walks mailboxes in order and emits a suggestion for every missing blob.
type Rescuer struct {
	checker ConsistencyChecker
	synth   *Synthesizer
	opts    Options
	logger  *logger.Logger
}

// NewRescuer creates a Rescuer.
func NewRescuer(checker ConsistencyChecker, synth *Synthesizer, log *logger.Logger, opts Options) *Rescuer {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Rescuer{
		checker: checker,
		synth:   synth,
		opts:    opts,
		logger:  log,
	}
}

// Execute processes mailboxIDs sequentially. The returned result is never nil
// and reflects the work done up to any failure.
//
// A mailbox that fails stops the run unless ContinueOnError is set, in which
// case the failure is recorded and the next mailbox runs. Output failures
// always stop the run.
func (r *Rescuer) Execute(ctx context.Context, run *Run, mailboxIDs []int) (*RescueResult, error) {
	result := &RescueResult{StartedAt: time.Now()}
	defer func() {
		result.CompletedAt = time.Now()
		result.Duration = result.CompletedAt.Sub(result.StartedAt)
	}()

	if run == nil || run.Index == nil || run.Sink == nil {
		return result, fmt.Errorf("rescue run is not initialized")
	}

	r.logger.Infow("Starting rescue",
		"mailboxes", len(mailboxIDs),
		"recovery_candidates", run.Index.Len(),
		"check_size", r.opts.CheckSize,
		"volumes", r.opts.VolumeIDs,
	)

	for _, mboxID := range mailboxIDs {
		err := r.processMailbox(ctx, run, mboxID, result)
		result.MailboxesChecked++
		if err == nil {
			continue
		}

		var outErr *OutputError
		if errors.As(err, &outErr) || !r.opts.ContinueOnError {
			result.Errors = append(result.Errors, err)
			return result, err
		}

		r.logger.WithMailbox(mboxID).Errorw("Mailbox failed, continuing with next mailbox", "error", err)
		result.Errors = append(result.Errors, err)
	}

	result.Success = len(result.Errors) == 0
	return result, nil
}

func (r *Rescuer) processMailbox(ctx context.Context, run *Run, mboxID int, result *RescueResult) error {
	log := r.logger.WithMailbox(mboxID)
	log.Debug("Checking blob consistency")

	reports, err := r.checker.CheckBlobConsistency(ctx, types.ConsistencyRequest{
		MailboxID:       mboxID,
		VolumeIDs:       r.opts.VolumeIDs,
		CheckSize:       r.opts.CheckSize,
		ReportUsedBlobs: run.Sink.WantsUsedBlobs(),
	})
	if err != nil {
		return &MailboxError{MailboxID: mboxID, Err: err}
	}

	for _, report := range reports {
		for _, blob := range report.MissingBlobs {
			sug, err := r.synth.Synthesize(ctx, run, report.MailboxID, blob)
			if err != nil {
				return &MailboxError{MailboxID: report.MailboxID, Err: err}
			}
			if err := run.Sink.Emit(sug); err != nil {
				return &OutputError{Err: err}
			}

			result.MissingBlobs++
			if sug.Action == ActionCopy {
				result.CopySuggestions++
			} else {
				result.PlaceholderBlobs++
			}
		}

		for _, blob := range report.UsedBlobs {
			if err := run.Sink.RecordUsedBlob(blob.Path); err != nil {
				return &OutputError{Err: err}
			}
			result.UsedBlobsRecorded++
		}
	}

	log.Debugw("Mailbox checked", "reports", len(reports))
	return nil
}
