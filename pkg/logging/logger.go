package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var Log *logrus.Logger

// InitLogger configures the package-level logger. level is one of
// logrus's level names ("debug", "info", "warn", ...); format is
// either "text" or "json".
func InitLogger(level, format string) {
	Log = logrus.New()
	Log.Out = os.Stdout

	parsedLevel, err := logrus.ParseLevel(level)
	if err != nil {
		parsedLevel = logrus.InfoLevel
	}
	Log.SetLevel(parsedLevel)

	if format == "json" {
		Log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// WithComponent returns an entry tagged with a "component" field so a
// line's origin is visible without a caller prefix. cmd/storagecli
// logs through it; the internal packages log through their own
// *logrus.Logger and do not call it.
func WithComponent(name string) *logrus.Entry {
	if Log == nil {
		InitLogger("info", "text")
	}
	return Log.WithField("component", name)
}