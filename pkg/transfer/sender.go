package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rescp17/lanpeer/pkg/fileInfo"
	"github.com/rescp17/lanpeer/pkg/protocol"
)

// Sender offers local files to peers over the control socket and streams
// accepted ones over TCP. Every offer that is not superseded by a newer offer
// to the same target gets exactly one callback.
type Sender struct {
	cfg        Config
	conn       PacketSender
	localIP    string
	localPort  int
	onProgress ProgressFunc

	mu      sync.Mutex
	pending map[string]*TransferOffer
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type SenderOptions struct {
	// LocalIP and LocalPort are advertised as sender_ip and sender_port.
	LocalIP    string
	LocalPort  int
	OnProgress ProgressFunc
}

func NewSender(cfg Config, conn PacketSender, opts SenderOptions) *Sender {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sender{
		cfg:        cfg,
		conn:       conn,
		localIP:    opts.LocalIP,
		localPort:  opts.LocalPort,
		onProgress: opts.OnProgress,
		pending:    make(map[string]*TransferOffer),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SendOffer inspects path and offers it to target. Local failures are
// returned before anything is sent; the outcome of the offer itself is
// reported through cb.
func (s *Sender) SendOffer(target *net.UDPAddr, path string, cb Callback) (OfferID, error) {
	if target == nil {
		return "", errors.New("send offer: nil target")
	}
	node, err := fileInfo.CreateNode(path)
	if err != nil {
		return "", fmt.Errorf("prepare %s: %w", path, err)
	}

	p := &TransferOffer{
		ID:     OfferID(newID()),
		Target: target,
		File:   node,
		Offer:  protocol.NewOffer(s.localIP, s.localPort, node.Name, node.Size, node.Checksum),
		SentAt: time.Now(),
		State:  OfferIdle,
		cb:     cb,
	}
	key := target.String()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return "", ErrStopped
	}
	if old, ok := s.pending[key]; ok {
		old.timer.Stop()
		slog.Info("Superseding pending offer", "target", key, "old", old.ID, "new", p.ID)
	}
	p.transition(OfferSent)
	s.pending[key] = p
	p.timer = time.AfterFunc(s.cfg.OfferTimeout, func() { s.expire(key, p.ID) })
	s.mu.Unlock()

	if err := sendDatagram(s.conn, p.Offer, target); err != nil {
		if s.claimID(key, p.ID) != nil {
			p.timer.Stop()
		}
		return "", err
	}

	slog.Info("Offer sent", "id", p.ID, "target", key, "fileName", node.Name, "size", node.Size)
	return p.ID, nil
}

// HandleResponse routes an Accept or Reject datagram to its pending offer.
func (s *Sender) HandleResponse(msg protocol.Message, from *net.UDPAddr) {
	if from == nil {
		return
	}
	switch msg.(type) {
	case protocol.Accept, protocol.Reject:
	default:
		return
	}

	p := s.claimFrom(from)
	if p == nil {
		slog.Debug("Response without pending offer", "from", from.String(), "type", msg.Type())
		return
	}
	p.timer.Stop()

	switch m := msg.(type) {
	case protocol.Reject:
		p.transition(OfferRejected)
		slog.Info("Offer rejected", "id", p.ID, "peer", from.String())
		s.finish(p, p.result().withRejected(ErrRejected))
	case protocol.Accept:
		p.transition(OfferAccepted)
		if m.TCPPort <= 0 || m.TCPPort > 65535 {
			s.finish(p, p.result().withFailure(fmt.Errorf("%w: accept without tcp port", ErrInvalidOffer)))
			return
		}
		addr := net.JoinHostPort(from.IP.String(), strconv.Itoa(m.TCPPort))
		slog.Info("Offer accepted", "id", p.ID, "peer", from.String(), "tcp", addr)

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			s.finish(p, p.result().withFailure(ErrStopped))
			return
		}
		s.wg.Add(1)
		s.mu.Unlock()
		go func() {
			defer s.wg.Done()
			s.finish(p, s.transmit(s.ctx, p, addr))
		}()
	}
}

// Pending reports how many offers await a reply.
func (s *Sender) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop fails outstanding offers, cancels running streams and waits for them.
func (s *Sender) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	pending := s.pending
	s.pending = make(map[string]*TransferOffer)
	s.mu.Unlock()

	for _, p := range pending {
		p.timer.Stop()
		s.finish(p, p.result().withFailure(ErrStopped))
	}
	s.cancel()
	s.wg.Wait()
}

func (s *Sender) expire(key string, id OfferID) {
	p := s.claimID(key, id)
	if p == nil {
		return
	}
	p.transition(OfferTimedOut)
	slog.Warn("Offer timed out", "id", id, "target", key)
	s.finish(p, p.result().withTimeout())
}

// claimID removes the pending offer under key only if it is still id.
func (s *Sender) claimID(key string, id OfferID) *TransferOffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[key]
	if !ok || p.ID != id {
		return nil
	}
	delete(s.pending, key)
	return p
}

// claimFrom matches a response by exact address, falling back to the only
// pending offer towards the same IP.
func (s *Sender) claimFrom(from *net.UDPAddr) *TransferOffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := from.String()
	if p, ok := s.pending[key]; ok {
		delete(s.pending, key)
		return p
	}

	var match string
	for k, p := range s.pending {
		if p.Target.IP.Equal(from.IP) {
			if match != "" {
				return nil
			}
			match = k
		}
	}
	if match == "" {
		return nil
	}
	p := s.pending[match]
	delete(s.pending, match)
	return p
}

func (s *Sender) finish(p *TransferOffer, r Result) {
	r.Elapsed = time.Since(p.SentAt)
	if p.cb != nil {
		p.cb(r)
	}
}

func (s *Sender) transmit(ctx context.Context, p *TransferOffer, addr string) Result {
	res := p.result()

	dialer := net.Dialer{Timeout: s.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return res.withFailure(fmt.Errorf("dial %s: %w", addr, err))
	}
	defer conn.Close() //nolint:errcheck
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	slog.Info("Started sending file", "fileName", p.File.Name, "size", p.File.Size, "peer", addr)

	meta := protocol.NewFileMeta(p.File.Name, p.File.Size, s.cfg.ChunkSize)
	if err := writeMessage(conn, meta, s.cfg.ReadTimeout); err != nil {
		return res.withFailure(err)
	}

	chunker, err := NewChunker(p.File.Path, p.File.Size, s.cfg.ChunkSize)
	if err != nil {
		return res.withFailure(err)
	}
	defer chunker.Close() //nolint:errcheck

	for {
		chunk, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res.withFailure(err)
		}
		if err := writeChunk(conn, chunk, s.cfg.ReadTimeout); err != nil {
			return res.withFailure(fmt.Errorf("write chunk %d: %w", chunker.Seq(), err))
		}
		res.Bytes += int64(len(chunk))
		s.progress(p, res.Bytes, chunker.Seq(), meta.TotalBlocks)

		if err := pace(ctx, s.cfg.ChunkPacing); err != nil {
			return res.withFailure(err)
		}
	}

	if err := writeMessage(conn, protocol.NewComplete(p.File.Checksum), s.cfg.ReadTimeout); err != nil {
		return res.withFailure(err)
	}

	data, err := readFrame(conn, s.cfg.MaxFrameSize, s.cfg.ResponseTimeout)
	if err != nil {
		return res.withFailure(fmt.Errorf("read final response: %w", err))
	}
	reply, err := protocol.Decode(data)
	if err != nil {
		return res.withFailure(err)
	}

	switch m := reply.(type) {
	case protocol.Ack:
		return res.withSuccess()
	case protocol.Error:
		if m.Error == ReasonHashMismatch {
			return res.withHashMismatch()
		}
		return res.withFailure(fmt.Errorf("receiver: %s", m.Error))
	default:
		return res.withFailure(fmt.Errorf("%w: %s after complete", protocol.ErrUnexpectedType, reply.Type()))
	}
}

func (s *Sender) progress(p *TransferOffer, sent int64, chunks, total int) {
	if s.onProgress == nil {
		return
	}
	s.onProgress(Progress{
		ID:          string(p.ID),
		Direction:   Outgoing,
		FileName:    p.File.Name,
		Bytes:       sent,
		Total:       p.File.Size,
		Chunks:      chunks,
		TotalChunks: total,
	})
}
