// Package log is the agistme logging wrapper around the standard library
// logger.
//
// Every component asks for a named logger once and keeps it:
//
//	var logger = log.ForService("loader")
//
//	logger.Infof("fetched %d listings", n)
//	logger.With("token", tok).Debugf("cache hit")
//
// Lines look like `INFO [loader>] fetched 12 listings token=eyJ2...`.
//
// Debug output is off by default. It can be enabled for everything
// (SetGlobalDebug, the --debug flag) or for selected components
// (EnableDebugFor, the --debug-services flag).
//
// Tests redirect output with SetOutput and assert on the buffer.
package log
