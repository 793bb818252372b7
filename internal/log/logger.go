package log

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var global atomic.Pointer[zap.Logger]

// Init builds the process logger and installs it as the package global.
func Init(production bool) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if production {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	global.Store(l)
	return l, nil
}

// L returns the global logger, or a no-op logger before Init.
func L() *zap.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

func Infof(format string, args ...any)  { L().Sugar().Infof(format, args...) }
func Errorf(format string, args ...any) { L().Sugar().Errorf(format, args...) }
