package shelf

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrReadOnly is returned when mutating a shelf opened read-only.
	ErrReadOnly = errors.New("shelf is read-only")

	// ErrClosed is returned by any operation on a closed shelf or on a
	// cursor whose shelf has been closed.
	ErrClosed = errors.New("shelf is closed")

	// ErrUnsupportedType is returned when a value has no encoded form.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrCorrupted is returned when encoded data is malformed or truncated.
	ErrCorrupted = errors.New("corrupted data")

	// ErrAlreadyOpen is returned when opening a path for writing that this
	// process already holds open for writing.
	ErrAlreadyOpen = errors.New("already open for writing")
)

// DataError describes malformed encoded data.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// Is makes every DataError match ErrCorrupted.
func (e *DataError) Is(target error) bool {
	return target == ErrCorrupted
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x", e.Msg, e.Off, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x", e.Msg, e.Off, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x...%x", e.Msg, e.Off, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x...%x", e.Msg, e.Off, n, p, s)
		}
	}
}

// EncodeError reports a value that could not be marshaled. Path locates the
// offending value inside nested tables, e.g. ["config"]["hook"].
type EncodeError struct {
	Path string
	Kind Kind
	Err  error
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

func (e *EncodeError) Error() string {
	var buf strings.Builder
	buf.WriteString("cannot encode ")
	buf.WriteString(e.Kind.String())
	if e.Path != "" {
		buf.WriteString(" at ")
		buf.WriteString(e.Path)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// OpenError is returned by Open when the engine cannot open or create the
// backing store. It wraps the engine or OS error.
type OpenError struct {
	Path string
	Mode Mode
	Err  error
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("shelf: open %s (%s): %v", e.Path, e.Mode, e.Err)
}

// CorruptionError is returned by Get when a stored value fails to decode.
type CorruptionError struct {
	Key []byte
	Err error
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("shelf: value of %q is corrupted: %v", e.Key, e.Err)
}
