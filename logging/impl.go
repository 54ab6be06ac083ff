package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// impl adapts a zap sugared logger over a fanoutCore to Logger.
type impl struct {
	sugar *zap.SugaredLogger
	name  string
	level zap.AtomicLevel
	core  *fanoutCore
}

func newLogger(name string, level Level, inUTC bool, appenders ...Appender) *impl {
	set := &appenderSet{}
	for _, appender := range appenders {
		set.add(appender)
	}
	return build(name, level, &fanoutCore{set: set, inUTC: inUTC})
}

// build wires a logger at level over a copy of core.
func build(name string, level Level, core *fanoutCore) *impl {
	atomicLevel := zap.NewAtomicLevelAt(level.AsZap())
	own := *core
	own.LevelEnabler = atomicLevel
	base := zap.New(&own,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	if name != "" {
		base = base.Named(name)
	}
	return &impl{sugar: base.Sugar(), name: name, level: atomicLevel, core: &own}
}

func (imp *impl) SetLevel(level Level) {
	imp.level.SetLevel(level.AsZap())
}

func (imp *impl) GetLevel() Level {
	return Level(imp.level.Level())
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return build(name, imp.GetLevel(), imp.core)
}

func (imp *impl) AddAppender(appender Appender) {
	imp.core.set.add(appender)
}

func (imp *impl) Sync() error {
	return imp.sugar.Sync()
}

func (imp *impl) Debug(args ...interface{}) { imp.sugar.Debug(args...) }

func (imp *impl) Debugf(template string, args ...interface{}) { imp.sugar.Debugf(template, args...) }

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.sugar.Debugw(msg, keysAndValues...)
}

func (imp *impl) Info(args ...interface{}) { imp.sugar.Info(args...) }

func (imp *impl) Infof(template string, args ...interface{}) { imp.sugar.Infof(template, args...) }

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.sugar.Infow(msg, keysAndValues...)
}

func (imp *impl) Warn(args ...interface{}) { imp.sugar.Warn(args...) }

func (imp *impl) Warnf(template string, args ...interface{}) { imp.sugar.Warnf(template, args...) }

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.sugar.Warnw(msg, keysAndValues...)
}

func (imp *impl) Error(args ...interface{}) { imp.sugar.Error(args...) }

func (imp *impl) Errorf(template string, args ...interface{}) { imp.sugar.Errorf(template, args...) }

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.sugar.Errorw(msg, keysAndValues...)
}
