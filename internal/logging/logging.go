// Package logging holds klog verbosity levels and helpers shared by the service.
package logging

import (
	"context"
	"flag"
	"strconv"

	"k8s.io/klog/v2"
)

const (
	ERROR   = 1
	WARNING = 2
	INFO    = 3
	DEBUG   = 4
	TRACE   = 5
)

// Verbosity maps a configured log level name to a klog -v value.
func Verbosity(level string) int {
	switch level {
	case "trace":
		return TRACE
	case "debug":
		return DEBUG
	case "warn":
		return WARNING
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Init registers klog flags on fs and applies the configured verbosity.
func Init(fs *flag.FlagSet, level string) {
	klog.InitFlags(fs)
	_ = fs.Set("v", strconv.Itoa(Verbosity(level)))
}

// FromContext returns the request-scoped logger, falling back to the global one.
func FromContext(ctx context.Context) klog.Logger {
	return klog.FromContext(ctx)
}

// WithValues attaches key/value pairs to the logger stored in ctx.
func WithValues(ctx context.Context, kv ...interface{}) context.Context {
	return klog.NewContext(ctx, klog.FromContext(ctx).WithValues(kv...))
}
