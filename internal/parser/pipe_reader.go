package parser

import (
	"errors"
	"io"
	"os"
	"sync/atomic"
)

// readChunkSize is the size of a single read from a child pipe.
const readChunkSize = 32 * 1024

// PipeReader reads raw chunks from one child channel and emits complete
// lines through a Demuxer. It never drops output: emit is called inline.
type PipeReader struct {
	reader    io.Reader
	channel   Channel
	demux     *Demuxer
	emit      func(line string)

	bytesRead atomic.Int64
	linesRead atomic.Int64
}

// NewPipeReader creates a reader for one channel.
//
// The reader is typically the stdout or stderr pipe of an exec.Cmd.
func NewPipeReader(r io.Reader, ch Channel, emit func(line string)) *PipeReader {
	return &PipeReader{
		reader:  r,
		channel: ch,
		demux:   NewDemuxer(),
		emit:    emit,
	}
}

// Run reads until EOF. A pipe closed underneath the reader counts as EOF.
func (p *PipeReader) Run() error {
	buf := make([]byte, readChunkSize)
	for {
		n, err := p.reader.Read(buf)
		if n > 0 {
			p.bytesRead.Add(int64(n))
			p.demux.Push(buf[:n], false, p.emitLine)
		}
		if err == nil {
			continue
		}

		p.demux.Push(nil, true, p.emitLine)
		if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
			return nil
		}
		return err
	}
}

func (p *PipeReader) emitLine(line string) {
	p.linesRead.Add(1)
	if p.emit != nil {
		p.emit(line)
	}
}

// Channel returns the channel this reader serves.
func (p *PipeReader) Channel() Channel {
	return p.channel
}

// Stats returns the bytes read and the lines emitted so far.
func (p *PipeReader) Stats() (bytesRead int64, linesRead int64) {
	return p.bytesRead.Load(), p.linesRead.Load()
}
