package logger

import (
	"fmt"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
)

const logFileName = "walker.log"

type Options struct {
	// Verbose enables debug level logging
	Verbose bool
	// LogDir, when set, also writes every entry to a daily rotated file in this directory
	LogDir string
}

// Init configures the standard logrus logger
func Init(options Options) error {
	if options.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if options.LogDir != "" {
		fh, err := NewFileHook(options.LogDir)
		if err != nil {
			return fmt.Errorf("failed to init log file hook: %w", err)
		}
		logrus.AddHook(fh)
	}

	return nil
}

// NewFileHook returns a hook writing all levels to dir/walker.log.<date>
func NewFileHook(dir string) (logrus.Hook, error) {
	path := filepath.Join(dir, logFileName)
	writer, err := rotatelogs.New(
		path+".%Y%m%d",
		rotatelogs.WithLinkName(path),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return nil, err
	}

	return lfshook.NewHook(lfshook.WriterMap{
		logrus.DebugLevel: writer,
		logrus.InfoLevel:  writer,
		logrus.WarnLevel:  writer,
		logrus.ErrorLevel: writer,
		logrus.FatalLevel: writer,
		logrus.PanicLevel: writer,
	}, &logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	}), nil
}
