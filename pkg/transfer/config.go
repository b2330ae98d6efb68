package transfer

import (
	"errors"
	"time"

	"github.com/rescp17/lanpeer/pkg/protocol"
)

const (
	DefaultChunkSize = protocol.BlockSize
	MaxChunkSize     = 256 * 1024
	MinChunkSize     = 1024
)

// Config holds the tunables of the handshake and the bulk phase.
type Config struct {
	ChunkSize   int           `json:"chunk_size"`
	ChunkPacing time.Duration `json:"chunk_pacing"` // pause between chunks

	OfferTimeout    time.Duration `json:"offer_timeout"`    // sender waits this long for a reply; receiver decides within it
	DialTimeout     time.Duration `json:"dial_timeout"`     // sender connect to the receiver's TCP port
	AcceptTimeout   time.Duration `json:"accept_timeout"`   // receiver waits for the sender to connect
	ReadTimeout     time.Duration `json:"read_timeout"`     // per-frame I/O deadline
	ResponseTimeout time.Duration `json:"response_timeout"` // sender waits for the final ACK or ERR

	MaxConcurrentReceives int    `json:"max_concurrent_receives"`
	MaxFrameSize          int    `json:"max_frame_size"`
	DownloadDir           string `json:"download_dir"`
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:             DefaultChunkSize,
		ChunkPacing:           time.Millisecond,
		OfferTimeout:          30 * time.Second,
		DialTimeout:           10 * time.Second,
		AcceptTimeout:         30 * time.Second,
		ReadTimeout:           10 * time.Second,
		ResponseTimeout:       30 * time.Second,
		MaxConcurrentReceives: 4,
		MaxFrameSize:          protocol.DefaultMaxFrameSize,
		DownloadDir:           "./downloads",
	}
}

func (c Config) Validate() error {
	if c.ChunkSize < MinChunkSize || c.ChunkSize > MaxChunkSize {
		return errors.New("chunk_size must be between 1 KiB and 256 KiB")
	}
	if c.ChunkPacing < 0 {
		return errors.New("chunk_pacing cannot be negative")
	}
	if c.OfferTimeout <= 0 {
		return errors.New("offer_timeout must be positive")
	}
	if c.DialTimeout <= 0 {
		return errors.New("dial_timeout must be positive")
	}
	if c.AcceptTimeout <= 0 {
		return errors.New("accept_timeout must be positive")
	}
	if c.ReadTimeout <= 0 {
		return errors.New("read_timeout must be positive")
	}
	if c.ResponseTimeout <= 0 {
		return errors.New("response_timeout must be positive")
	}
	if c.MaxConcurrentReceives <= 0 {
		return errors.New("max_concurrent_receives must be positive")
	}
	if c.MaxFrameSize < c.ChunkSize {
		return errors.New("max_frame_size cannot be smaller than chunk_size")
	}
	if c.DownloadDir == "" {
		return errors.New("download_dir cannot be empty")
	}
	return nil
}

// TotalChunks is the number of chunks a file of size bytes is split into.
func (c Config) TotalChunks(size int64) int {
	return protocol.TotalBlocks(size, c.ChunkSize)
}
