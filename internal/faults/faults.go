// Package faults defines the error taxonomy shared by the stores, the
// overlay renderer and the workspace.
//
// Detection misses are not errors and have no type here; they are reported
// as the boolean half of a (segment, found) pair.
//
//   - InputError: bad or missing image, malformed polygon. Nothing is written.
//   - StoreBusyError: a backing file is locked or not writable. Surfaced to
//     the user verbatim together with a remediation hint, never retried.
//   - CorruptDataError: a persisted table or key/value file cannot be
//     parsed. Reads degrade to empty results; writes fail only when the
//     structure cannot be re-established.
package faults

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// InputError reports a request that can never succeed as given.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Input is shorthand for building an *InputError.
func Input(field, format string, args ...interface{}) error {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StoreBusyError wraps an OS-level lock or permission failure on a backing
// file.
type StoreBusyError struct {
	Path string
	Err  error
}

func (e *StoreBusyError) Error() string {
	return fmt.Sprintf("could not write to %s (%v). Please close the file and try again", e.Path, e.Err)
}

func (e *StoreBusyError) Unwrap() error { return e.Err }

// CorruptDataError reports a persisted file whose contents or structure
// cannot be interpreted.
type CorruptDataError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptDataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt data in %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt data in %s: %s", e.Path, e.Reason)
}

func (e *CorruptDataError) Unwrap() error { return e.Err }

// IsLockError reports whether err looks like another process holding the
// file or the file being read-only for us.
func IsLockError(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETXTBSY) ||
		errors.Is(err, syscall.EAGAIN)
}

// ClassifyWrite turns a write failure on path into a StoreBusyError when it
// is a lock/permission problem and otherwise wraps it with context.
func ClassifyWrite(path string, err error) error {
	if err == nil {
		return nil
	}
	if IsLockError(err) {
		return &StoreBusyError{Path: path, Err: err}
	}
	return fmt.Errorf("failed to write %s: %w", path, err)
}

// IsInput reports whether err is, or wraps, an *InputError.
func IsInput(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// IsBusy reports whether err is, or wraps, a *StoreBusyError.
func IsBusy(err error) bool {
	var be *StoreBusyError
	return errors.As(err, &be)
}

// IsCorrupt reports whether err is, or wraps, a *CorruptDataError.
func IsCorrupt(err error) bool {
	var ce *CorruptDataError
	return errors.As(err, &ce)
}
