// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package types

import "fmt"

// MaxBufferSize bounds the auxiliary data region attached to a record.
const MaxBufferSize = 4096

// BufferIndex references a slice of a record's auxiliary buffer.
type BufferIndex struct {
	Start uint16
	Len   uint16
}

// IndexError reports a buffer reference that does not fit the buffer it
// points into, typically because the kernel truncated the capture.
type IndexError struct {
	Index BufferIndex
	Size  int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("buffer index [%d:+%d] out of range for %d byte buffer",
		e.Index.Start, e.Index.Len, e.Size)
}

// Resolve returns the bytes referenced by idx. The returned slice aliases buf.
func (idx BufferIndex) Resolve(buf []byte) ([]byte, error) {
	end := int(idx.Start) + int(idx.Len)
	if end > len(buf) {
		return nil, &IndexError{Index: idx, Size: len(buf)}
	}
	return buf[idx.Start:end], nil
}
