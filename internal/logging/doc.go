// Package logger provides leveled logging for securelock commands.
//
// Verbosity is controlled by two flags:
//
//   - -verbose: shows info messages
//   - -debug: shows info and debug messages
//
// Warnings and errors are always printed to stderr. Commands create a
// logger from the global flags and pass it to the engine, which reports
// each file conversion through it.
package logger
