package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

// testAppender writes through tb.Log so lines stay attached to the test that logged them, even
// when tests run in parallel.
type testAppender struct {
	tb      testing.TB
	encoder zapcore.Encoder
}

func newTestAppender(tb testing.TB) Appender {
	return &testAppender{tb: tb, encoder: lineEncoder()}
}

func (tapp *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tapp.tb.Helper()
	buf, err := tapp.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()
	tapp.tb.Log(strings.TrimSuffix(buf.String(), "\n"))
	return nil
}

func (tapp *testAppender) Sync() error {
	return nil
}
