// Package logrus adapts a *logrus.Entry to the tagcache Logger interface.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/tagcache"
)

var _ tagcache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

func New(e *logrus.Entry) Logger { return Logger{E: e} }

func (l Logger) Debug(msg string, f tagcache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}
func (l Logger) Info(msg string, f tagcache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Info(msg)
}
func (l Logger) Warn(msg string, f tagcache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Warn(msg)
}
func (l Logger) Error(msg string, f tagcache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}
