// Package errs defines the closed set of error kinds reported by the
// securelock engine, plus the Partial type for operations that succeed
// for some targets and fail for others.
package errs
