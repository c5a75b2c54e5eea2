package utils

import (
	"io"
	"sync"
)

// flushableWriter is the optional flushing surface of buffered writers.
type flushableWriter interface {
	Flush() error
}

// FlushingWriter forces buffered output through after every write so the
// summary stream stays visible even when the process exits immediately
// afterwards.
type FlushingWriter struct {
	destination io.Writer
	writeMutex  sync.Mutex
}

// NewFlushingWriter wraps destination with per-write flushing. Writers that
// do not buffer are unaffected; an already wrapped writer is returned as is.
func NewFlushingWriter(destination io.Writer) io.Writer {
	if destination == nil {
		return nil
	}
	if _, alreadyWrapped := destination.(*FlushingWriter); alreadyWrapped {
		return destination
	}
	return &FlushingWriter{destination: destination}
}

// Write forwards data to the destination and flushes it when supported.
func (flushingWriter *FlushingWriter) Write(data []byte) (int, error) {
	if flushingWriter == nil || flushingWriter.destination == nil {
		return 0, nil
	}

	flushingWriter.writeMutex.Lock()
	defer flushingWriter.writeMutex.Unlock()

	bytesWritten, writeError := flushingWriter.destination.Write(data)
	if writeError != nil {
		return bytesWritten, writeError
	}

	if bufferedDestination, destinationFlushes := flushingWriter.destination.(flushableWriter); destinationFlushes {
		if flushError := bufferedDestination.Flush(); flushError != nil {
			return bytesWritten, flushError
		}
	}

	return bytesWritten, nil
}
