// Package log provides the leveled logger used by threadgraph.
//
// The Logger interface is printf-style with four levels. The default
// implementation is backed by kataras/golog; level filtering happens in
// GologLogger so one golog instance can serve loggers at different levels.
//
//	logger := log.New(os.Stderr, log.LogLevelDebug)
//	logger.Info("thread %s: %d messages", threadID, n)
//
// A package-level logger is available through Debug, Info, Warn and Error,
// and can be replaced with SetDefaultLogger or SetLogLevel.
package log
