package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

const timeFormat = "2006-01-02T15:04:05.000Z0700"

// Appender is an output for log entries. It is the writing half of a zapcore.Core, so an
// observer core can be added as one.
type Appender interface {
	Write(zapcore.Entry, []zapcore.Field) error
	Sync() error
}

// lineEncoder renders an entry as one tab separated line: time, level, logger name, caller,
// message and the fields as a JSON object.
func lineEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		FunctionKey:   zapcore.OmitKey,
		MessageKey:    "msg",
		StacktraceKey: zapcore.OmitKey,
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format(timeFormat))
		},
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	})
}

// ConsoleAppender writes human readable lines to a stream such as stdout or a rotating file.
type ConsoleAppender struct {
	mu      *sync.Mutex
	w       io.Writer
	encoder zapcore.Encoder
}

// NewStdoutAppender creates an appender that writes to stdout.
func NewStdoutAppender() ConsoleAppender {
	return NewWriterAppender(os.Stdout)
}

// NewWriterAppender creates an appender that writes to w.
func NewWriterAppender(w io.Writer) ConsoleAppender {
	return ConsoleAppender{mu: &sync.Mutex{}, w: w, encoder: lineEncoder()}
}

// Write outputs one line for the entry.
func (appender ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := appender.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()
	appender.mu.Lock()
	defer appender.mu.Unlock()
	_, err = appender.w.Write(buf.Bytes())
	return err
}

// Sync is a no-op.
func (appender ConsoleAppender) Sync() error {
	return nil
}

// appenderSet is shared by a logger and its subloggers so an appender added to any of them
// reaches all of them.
type appenderSet struct {
	mu        sync.RWMutex
	appenders []Appender
}

func (s *appenderSet) add(appender Appender) {
	s.mu.Lock()
	s.appenders = append(s.appenders, appender)
	s.mu.Unlock()
}

func (s *appenderSet) snapshot() []Appender {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appenders[:len(s.appenders):len(s.appenders)]
}

// fanoutCore is the zapcore.Core behind every logger. It hands each enabled entry to all the
// appenders of its set.
type fanoutCore struct {
	zapcore.LevelEnabler
	set    *appenderSet
	fields []zapcore.Field
	inUTC  bool
}

func (c *fanoutCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = make([]zapcore.Field, 0, len(c.fields)+len(fields))
	clone.fields = append(append(clone.fields, c.fields...), fields...)
	return &clone
}

func (c *fanoutCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *fanoutCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if c.inUTC {
		entry.Time = entry.Time.UTC()
	}
	if len(c.fields) > 0 {
		fields = append(append(make([]zapcore.Field, 0, len(c.fields)+len(fields)), c.fields...), fields...)
	}
	var errs error
	for _, appender := range c.set.snapshot() {
		errs = multierr.Append(errs, appender.Write(entry, fields))
	}
	return errs
}

func (c *fanoutCore) Sync() error {
	var errs error
	for _, appender := range c.set.snapshot() {
		errs = multierr.Append(errs, appender.Sync())
	}
	return errs
}
