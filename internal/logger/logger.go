package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the process logger: human readable text in development, JSON
// everywhere else.
func New(appName, env string) *logrus.Logger {
	return newWithOutput(appName, env, os.Stdout)
}

func newWithOutput(appName, env string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if env == "development" || env == "test" {
		log.SetLevel(logrus.DebugLevel)
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	log.WithFields(logrus.Fields{"app": appName, "env": env}).Info("logger initialized")
	return log
}
