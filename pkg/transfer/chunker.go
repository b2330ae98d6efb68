package transfer

import (
	"fmt"
	"io"
	"os"
)

// Chunker reads a file in fixed-size chunks. The slice returned by Next is
// reused on the following call.
type Chunker struct {
	file      *os.File
	chunkSize int
	total     int64
	read      int64
	seq       int
	buffer    []byte
}

func NewChunker(path string, size int64, chunkSize int) (*Chunker, error) {
	if chunkSize < MinChunkSize || chunkSize > MaxChunkSize {
		return nil, fmt.Errorf("chunk size must be between %d and %d", MinChunkSize, MaxChunkSize)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Chunker{
		file:      file,
		chunkSize: chunkSize,
		total:     size,
		buffer:    make([]byte, chunkSize),
	}, nil
}

// Next returns the next chunk, or io.EOF once size bytes were produced. A
// file that shrank since it was offered fails with io.ErrUnexpectedEOF.
func (c *Chunker) Next() ([]byte, error) {
	remaining := c.total - c.read
	if remaining <= 0 {
		return nil, io.EOF
	}

	want := c.chunkSize
	if remaining < int64(want) {
		want = int(remaining)
	}
	n, err := io.ReadFull(c.file, c.buffer[:want])
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read chunk %d: %w", c.seq+1, err)
	}
	c.read += int64(n)
	c.seq++
	return c.buffer[:n], nil
}

// Seq is the number of chunks produced so far.
func (c *Chunker) Seq() int { return c.seq }

func (c *Chunker) Close() error {
	return c.file.Close()
}
