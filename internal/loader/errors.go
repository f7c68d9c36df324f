package loader

import "fmt"

// SizeLimitError reports input larger than the configured ceiling. It is
// returned before any parsing starts.
type SizeLimitError struct {
	Size  int64 // bytes seen; for streamed input this is Limit+1
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("input of %d bytes exceeds the %d byte limit", e.Size, e.Limit)
}

// FormatError reports a file whose header or data section cannot be recovered.
type FormatError struct {
	Line   int // zero-based line in the file, -1 when not tied to a line
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := "invalid station file"
	if e.Line >= 0 {
		msg = fmt.Sprintf("%s at line %d", msg, e.Line+1)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }
