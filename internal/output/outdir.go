// Package output writes calculator results, TMC metadata and run metadata to
// a timestamped directory and optionally uploads it to object storage.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "output")

const (
	dirPrefix       = "npmrds_measures_calculator_"
	timestampLayout = "20060102T150405"
	mkdirRetryLimit = 3
)

var mkdirRetryDelay = time.Second

// MkOutputDir creates <baseDir>/npmrds_measures_calculator_<timestamp>. A
// name collision is retried with a fresh timestamp.
func MkOutputDir(baseDir string, now func() time.Time) (dir, timestamp string, err error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create output base dir: %w", err)
	}
	for attempt := 0; attempt <= mkdirRetryLimit; attempt++ {
		if attempt > 0 {
			time.Sleep(mkdirRetryDelay)
		}
		timestamp = now().Format(timestampLayout)
		dir = filepath.Join(baseDir, dirPrefix+timestamp)
		err = os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, timestamp, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", "", fmt.Errorf("create output dir: %w", err)
		}
		log.Warnf("Output dir %s exists, retrying", dir)
	}
	return "", "", fmt.Errorf("failed to create the output dir after %d attempts: %w", mkdirRetryLimit+1, err)
}
