package errcoll

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"
)

// WriterErrorCollector is an [Interface] implementation that writes errors to
// an io.Writer, usually stderr.
type WriterErrorCollector struct {
	w io.Writer
}

// NewWriterErrorCollector returns a new WriterErrorCollector.
func NewWriterErrorCollector(w io.Writer) (c *WriterErrorCollector) {
	return &WriterErrorCollector{
		w: w,
	}
}

// type check
var _ Interface = (*WriterErrorCollector)(nil)

// Collect implements the [Interface] interface for *WriterErrorCollector.
func (c *WriterErrorCollector) Collect(ctx context.Context, err error) {
	_, _ = fmt.Fprintf(c.w, "%s: %s: caught error: %s\n", time.Now(), caller(2), err)
}

// caller returns the file name and line of the caller at the given depth.
func caller(depth int) (pos string) {
	_, file, line, ok := runtime.Caller(depth)
	if !ok {
		return "<position unknown>"
	}

	return fmt.Sprintf("%s:%d", file, line)
}
