package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies every failure the engine can report. The set is closed:
// presentation layers switch on kinds and must not meet a value outside it.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidPath
	KindAlreadyTracked
	KindNotTracked
	KindAlreadyLocked
	KindAlreadyUnlocked
	KindWrongPassword
	KindWrongMasterPassword
	KindCorruptMetadata
	KindNoRecoveryAvailable
	KindMasterNotConfigured
	KindMasterAlreadyConfigured
	KindMasterNotUnlocked
	KindRecoveryFailed
	KindPartialFailure
	KindIoFailure
	KindAuthenticationFailure
)

var kindNames = map[Kind]string{
	KindUnknown:                 "unknown",
	KindInvalidPath:             "invalid path",
	KindAlreadyTracked:          "already tracked",
	KindNotTracked:              "not tracked",
	KindAlreadyLocked:           "already locked",
	KindAlreadyUnlocked:         "already unlocked",
	KindWrongPassword:           "wrong password",
	KindWrongMasterPassword:     "wrong master password",
	KindCorruptMetadata:         "corrupt metadata",
	KindNoRecoveryAvailable:     "no recovery available",
	KindMasterNotConfigured:     "master password not configured",
	KindMasterAlreadyConfigured: "master password already configured",
	KindMasterNotUnlocked:       "master password not unlocked",
	KindRecoveryFailed:          "recovery failed",
	KindPartialFailure:          "partial failure",
	KindIoFailure:               "io failure",
	KindAuthenticationFailure:   "authentication failure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error carries a kind, an optional folder path, and a human-readable message.
type Error struct {
	Kind Kind
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind with a plain message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Path creates an error of the given kind scoped to a folder path.
func Path(kind Kind, path, msg string) error {
	return &Error{Kind: kind, Path: path, Msg: msg}
}

// Wrap attaches a kind and path to an underlying error. IO errors from the
// filesystem typically arrive here with KindIoFailure.
func Wrap(kind Kind, path string, err error) error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// KindOf extracts the kind from any error produced by this module.
// Errors from outside the engine report KindUnknown. Partial is matched
// before Error: its cause chain usually ends in an *Error, and a partial
// outcome must report as such rather than as its first cause.
func KindOf(err error) Kind {
	var p *Partial
	if errors.As(err, &p) {
		return KindPartialFailure
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Partial reports a multi-file or multi-folder operation that completed for
// some targets and failed for others. Succeeded and Failed hold the two
// outcomes by name; Cause is the first underlying failure.
type Partial struct {
	Op        string // "unlock", "recover", "lock all"
	Path      string // folder path for per-file partials, empty for lock all
	Succeeded []string
	Failed    []string
	Cause     error
}

func (p *Partial) Error() string {
	var b strings.Builder
	b.WriteString(p.Op)
	if p.Path != "" {
		b.WriteString(" ")
		b.WriteString(p.Path)
	}
	fmt.Fprintf(&b, ": %d succeeded, %d failed", len(p.Succeeded), len(p.Failed))
	if p.Cause != nil {
		b.WriteString(": ")
		b.WriteString(p.Cause.Error())
	}
	return b.String()
}

func (p *Partial) Unwrap() error {
	return p.Cause
}
