package build

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
	"github.com/klauspost/compress/zstd"
	"github.com/lightningnetwork/chanrescue/lnutils"
)

// RotatingLogWriter writes log lines into a size capped log file. Once the
// file is full it's compressed and a new one is started.
type RotatingLogWriter struct {
	pipe    *io.PipeWriter
	rotator *rotator.Rotator
}

// NewRotatingLogWriter returns a writer that drops everything until
// InitLogRotator has been called.
func NewRotatingLogWriter() *RotatingLogWriter {
	return &RotatingLogWriter{}
}

// newCompressor returns the rotator compressor for the named algorithm along
// with the suffix of the files it produces.
func newCompressor(name string) (rotator.Compressor, string, error) {
	suffix, ok := logCompressors[name]
	if !ok {
		return nil, "", fmt.Errorf("unknown log compressor: %v", name)
	}

	switch name {
	case Zstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create zstd "+
				"compressor: %w", err)
		}

		return enc, suffix, nil

	default:
		return gzip.NewWriter(nil), suffix, nil
	}
}

// InitLogRotator starts rotating logFile according to cfg. Rolled files are
// kept next to logFile. The writer must be closed on shutdown.
func (r *RotatingLogWriter) InitLogRotator(cfg *FileLoggerConfig,
	logFile string) error {

	compressor, suffix, err := newCompressor(cfg.Compressor)
	if err != nil {
		return err
	}

	if err := lnutils.CreateDir(filepath.Dir(logFile), 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	// The rotator takes the threshold in KB.
	thresholdKB := int64(cfg.MaxLogFileSize) * 1024
	r.rotator, err = rotator.New(
		logFile, thresholdKB, false, cfg.MaxLogFiles,
	)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}
	r.rotator.SetCompressor(compressor, suffix)

	pr, pw := io.Pipe()
	r.pipe = pw

	go func() {
		// A failing rotator can't log through itself, so stderr is
		// the only place left to complain.
		if err := r.rotator.Run(pr); err != nil {
			fmt.Fprintf(os.Stderr, "log rotator stopped: %v\n", err)
		}
	}()

	return nil
}

// Write passes b to the rotator, or drops it if the rotator isn't running.
func (r *RotatingLogWriter) Write(b []byte) (int, error) {
	if r.rotator == nil {
		return len(b), nil
	}

	return r.rotator.Write(b)
}

// Close stops the rotator, if it was started.
func (r *RotatingLogWriter) Close() error {
	if r.pipe != nil {
		r.pipe.Close()
	}
	if r.rotator == nil {
		return nil
	}

	return r.rotator.Close()
}
