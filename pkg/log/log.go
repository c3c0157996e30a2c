// Package log provides tagged logrus loggers sharing one configured sink.
//
// Packages declare a logger once:
//
//	var logger = log.NewLogger("executor")
package log

import (
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// Formats accepted by Setup.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ErrUnknownFormat is returned by Setup for unsupported formats.
var ErrUnknownFormat = errors.New("unknown log format")

const tagKey = "tag"

var (
	mu   sync.Mutex
	root = newRoot()
)

func newRoot() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return l
}

// NewLogger returns an entry tagged with the component name.
func NewLogger(tag string) *logrus.Entry {
	return root.WithField(tagKey, tag)
}

// Setup configures level and format of every logger.
func Setup(level, format string) error {
	mu.Lock()
	defer mu.Unlock()

	lvl := logrus.InfoLevel
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return errors.Wrapf(err, "log level %q", level)
		}
		lvl = parsed
	}

	switch format {
	case "", FormatText:
		root.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	case FormatJSON:
		root.SetFormatter(&logrus.JSONFormatter{})
	default:
		return errors.Wrapf(ErrUnknownFormat, "%q", format)
	}

	root.SetLevel(lvl)
	return nil
}

// SetOutput redirects every logger.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	root.SetOutput(w)
}

// Level returns the current level name.
func Level() string {
	return root.GetLevel().String()
}
