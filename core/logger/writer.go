package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

var errWriterClosed = errors.New("logger: writer closed")

type entry struct {
	data  []byte
	isErr bool
	ack   chan error
}

// asyncWriter moves line writes off the caller's goroutine. Every line goes
// to the main sinks; lines marked isErr are copied to the error sinks too.
type asyncWriter struct {
	queue  chan entry
	done   chan struct{}
	gate   sync.RWMutex
	closed bool

	main []*bufio.Writer
	errs []*bufio.Writer

	mu    sync.Mutex
	first error
}

func newAsyncWriter(main, errs []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	wrap := func(ws []io.Writer) []*bufio.Writer {
		out := make([]*bufio.Writer, 0, len(ws))
		for _, w := range ws {
			if w != nil {
				out = append(out, bufio.NewWriterSize(w, bufSize))
			}
		}
		return out
	}
	w := &asyncWriter{
		queue: make(chan entry, 256),
		done:  make(chan struct{}),
		main:  wrap(main),
		errs:  wrap(errs),
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for e := range w.queue {
		if e.ack != nil {
			e.ack <- w.flush()
			continue
		}
		w.record(w.emit(e))
	}
	w.record(w.flush())
}

func (w *asyncWriter) emit(e entry) error {
	targets := w.main
	if e.isErr && len(w.errs) > 0 {
		targets = append(append([]*bufio.Writer(nil), w.main...), w.errs...)
	}
	for _, bw := range targets {
		if _, err := bw.Write(e.data); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flush() error {
	var errs []error
	for _, bw := range append(append([]*bufio.Writer(nil), w.main...), w.errs...) {
		if err := bw.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Write queues a copy of p. It blocks while the queue is full.
func (w *asyncWriter) Write(p []byte, isErr bool) error {
	if err := w.err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	return w.send(entry{data: append([]byte(nil), p...), isErr: isErr})
}

func (w *asyncWriter) send(e entry) error {
	w.gate.RLock()
	defer w.gate.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.queue <- e
	return nil
}

// Flush returns once every line queued before it has reached the sinks.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	if err := w.send(entry{ack: ack}); err != nil {
		return err
	}
	return <-ack
}

// Close drains the queue and returns the first write error seen.
func (w *asyncWriter) Close() error {
	w.gate.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.gate.Unlock()
	<-w.done
	return w.err()
}

func (w *asyncWriter) record(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	if w.first == nil {
		w.first = err
	}
	w.mu.Unlock()
}

func (w *asyncWriter) err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.first
}
