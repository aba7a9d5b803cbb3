package rescue

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/dbsmedya/blobrescue/internal/logger"
)

// Sink writes suggestions to stdout and the optional output files.
//
// stdout receives every command prefixed with "#" so that piping it to a
// shell executes nothing. The repair file receives the commands verbatim.
type Sink struct {
	stdout io.Writer
	repair *outputFile
	used   *outputFile
	lines  int
	closed bool
	logger *logger.Logger
}

type outputFile struct {
	path string
	file *os.File
	w    *bufio.Writer
}

func createOutputFile(path string) (*outputFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &outputFile{path: path, file: f, w: bufio.NewWriter(f)}, nil
}

func (o *outputFile) writeLine(line string) error {
	if _, err := o.w.WriteString(line + "\n"); err != nil {
		return err
	}
	return o.w.Flush()
}

func (o *outputFile) close() error {
	flushErr := o.w.Flush()
	closeErr := o.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// OpenSink creates (truncating) the configured output files. An empty path
// disables that file.
func OpenSink(stdout io.Writer, repairPath, usedBlobPath string, log *logger.Logger) (*Sink, error) {
	if log == nil {
		log = logger.NewDefault()
	}
	s := &Sink{stdout: stdout, logger: log}

	if repairPath != "" {
		f, err := createOutputFile(repairPath)
		if err != nil {
			return nil, fmt.Errorf("create suggested repair commands file: %w", err)
		}
		s.repair = f
	}

	if usedBlobPath != "" {
		f, err := createOutputFile(usedBlobPath)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("create used blob list file: %w", err)
		}
		s.used = f
	}
	return s, nil
}

// Emit writes one suggestion, first to stdout and then to the repair file.
// Lines counts a suggestion only once every destination has it, so after a
// repair file failure stdout holds one line more than Lines reports.
func (s *Sink) Emit(sug Suggestion) error {
	if s.closed {
		return fmt.Errorf("sink is closed")
	}
	if _, err := fmt.Fprintf(s.stdout, "#%s\n", sug.Command); err != nil {
		return fmt.Errorf("write suggestion to stdout: %w", err)
	}
	if s.repair != nil {
		if err := s.repair.writeLine(sug.Command); err != nil {
			return fmt.Errorf("write suggestion to %s: %w", s.repair.path, err)
		}
	}
	s.lines++
	return nil
}

// RecordUsedBlob appends a blob path to the used blob list. It is a no-op
// when no list is configured.
func (s *Sink) RecordUsedBlob(path string) error {
	if s.used == nil {
		return nil
	}
	if s.closed {
		return fmt.Errorf("sink is closed")
	}
	if err := s.used.writeLine(path); err != nil {
		return fmt.Errorf("write used blob to %s: %w", s.used.path, err)
	}
	return nil
}

// WantsUsedBlobs reports whether a used blob list is configured.
func (s *Sink) WantsUsedBlobs() bool {
	return s.used != nil
}

// Lines returns the number of suggestions fully written so far.
func (s *Sink) Lines() int {
	return s.lines
}

// Close closes the output files. It is safe to call more than once.
func (s *Sink) Close() {
	if s.closed {
		return
	}
	s.closed = true
	for _, f := range []*outputFile{s.repair, s.used} {
		if f == nil {
			continue
		}
		if err := f.close(); err != nil {
			s.logger.Warnw("Failed to close output file", "path", f.path, "error", err)
		}
	}
}
