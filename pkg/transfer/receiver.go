package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rescp17/lanpeer/internal/util"
	"github.com/rescp17/lanpeer/pkg/concurrency"
	"github.com/rescp17/lanpeer/pkg/fileInfo"
	"github.com/rescp17/lanpeer/pkg/protocol"
)

type Decision int

const (
	Reject Decision = iota
	Accept
)

func (d Decision) String() string {
	if d == Accept {
		return "accept"
	}
	return "reject"
}

// Decider decides whether an incoming offer is accepted. Decide must return
// once ctx is done.
type Decider interface {
	Decide(ctx context.Context, offer protocol.Offer) (Decision, error)
}

type DeciderFunc func(ctx context.Context, offer protocol.Offer) (Decision, error)

func (f DeciderFunc) Decide(ctx context.Context, offer protocol.Offer) (Decision, error) {
	return f(ctx, offer)
}

type ReceiverOptions struct {
	Decider Decider
	// ListenIP is where per-transfer TCP listeners bind; empty means all
	// interfaces.
	ListenIP   string
	OnResult   Callback
	OnProgress ProgressFunc
}

// Receiver answers incoming offers and stores accepted files in the
// download directory.
type Receiver struct {
	cfg        Config
	conn       PacketSender
	decider    Decider
	listenIP   string
	limiter    *concurrency.Limiter
	onResult   Callback
	onProgress ProgressFunc

	// verifyHook runs after the file is written and before it is verified.
	verifyHook func(path string)

	mu      sync.Mutex
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewReceiver(cfg Config, conn PacketSender, opts ReceiverOptions) *Receiver {
	ctx, cancel := context.WithCancel(context.Background())
	return &Receiver{
		cfg:        cfg,
		conn:       conn,
		decider:    opts.Decider,
		listenIP:   opts.ListenIP,
		limiter:    concurrency.NewLimiter(cfg.MaxConcurrentReceives),
		onResult:   opts.OnResult,
		onProgress: opts.OnProgress,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// HandleOffer runs the receiving side of the handshake for one offer. It
// blocks while the decider runs; the bulk phase runs in the background.
func (r *Receiver) HandleOffer(ctx context.Context, offer protocol.Offer, from *net.UDPAddr) {
	s := newSession(offer, from)
	s.transition(SessionOfferReceived)
	slog.Info("Offer received", "id", s.ID, "from", s.replyAddr().String(),
		"fileName", offer.FileName, "size", offer.FileSize)

	if err := validateOffer(offer); err != nil {
		r.reject(s, err)
		return
	}
	if r.isStopped() {
		r.reject(s, ErrStopped)
		return
	}
	if err := r.limiter.TryAcquire(); err != nil {
		r.reject(s, err)
		return
	}
	release := true
	defer func() {
		if release {
			r.limiter.Release()
		}
	}()

	decision, err := r.decide(ctx, offer)
	if err != nil || decision != Accept {
		if err == nil {
			err = ErrRejected
		}
		r.reject(s, err)
		return
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(r.listenIP, "0"))
	if err != nil {
		r.fail(s, fmt.Errorf("open transfer listener: %w", err), true)
		return
	}
	port := ln.Addr().(*net.TCPAddr).Port

	if err := sendDatagram(r.conn, protocol.NewAccept(port), s.replyAddr()); err != nil {
		_ = ln.Close()
		r.fail(s, err, false)
		return
	}
	s.transition(SessionAcceptSent)

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		_ = ln.Close()
		r.fail(s, ErrStopped, false)
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	release = false
	go func() {
		defer r.wg.Done()
		defer r.limiter.Release()
		r.serve(s, ln)
	}()
}

// Active reports how many offers are being decided or transferred.
func (r *Receiver) Active() int { return r.limiter.Active() }

// Stop aborts running transfers and waits for them to clean up.
func (r *Receiver) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

func (r *Receiver) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func (r *Receiver) decide(ctx context.Context, offer protocol.Offer) (Decision, error) {
	if r.decider == nil {
		return Reject, errors.New("no decider configured")
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.OfferTimeout)
	defer cancel()
	stop := context.AfterFunc(r.ctx, cancel)
	defer stop()

	type answer struct {
		d   Decision
		err error
	}
	ch := make(chan answer, 1)
	go func() {
		d, err := r.decider.Decide(ctx, offer)
		ch <- answer{d, err}
	}()

	select {
	case a := <-ch:
		if ctx.Err() != nil {
			return Reject, fmt.Errorf("decision: %w", ctx.Err())
		}
		return a.d, a.err
	case <-ctx.Done():
		return Reject, fmt.Errorf("decision: %w", ctx.Err())
	}
}

func (r *Receiver) reject(s *TransferSession, cause error) {
	s.transition(SessionRejectSent)
	slog.Info("Rejecting offer", "id", s.ID, "fileName", s.Offer.FileName, "cause", cause)
	if addr := s.replyAddr(); addr != nil {
		if err := sendDatagram(r.conn, protocol.NewReject(), addr); err != nil {
			slog.Warn("Failed to send reject", "id", s.ID, "error", err)
		}
	}
	r.report(s, s.result().withRejected(cause))
}

// fail reports a handshake failure after the offer was accepted locally.
// When notify is set the sender is told through a reject.
func (r *Receiver) fail(s *TransferSession, err error, notify bool) {
	s.transition(SessionFailed)
	if notify {
		if addr := s.replyAddr(); addr != nil {
			_ = sendDatagram(r.conn, protocol.NewReject(), addr)
		}
	}
	r.report(s, s.result().withFailure(err))
}

func (r *Receiver) report(s *TransferSession, res Result) {
	res.Elapsed = time.Since(s.CreatedAt)
	if r.onResult != nil {
		r.onResult(res)
	}
}

// serve accepts exactly one connection on ln and receives the file on it.
func (r *Receiver) serve(s *TransferSession, ln net.Listener) {
	defer ln.Close() //nolint:errcheck

	stop := context.AfterFunc(r.ctx, func() { _ = ln.Close() })
	if tl, ok := ln.(*net.TCPListener); ok {
		_ = tl.SetDeadline(time.Now().Add(r.cfg.AcceptTimeout))
	}
	conn, err := ln.Accept()
	stop()
	_ = ln.Close()
	if err != nil {
		r.fail(s, fmt.Errorf("wait for sender: %w", err), false)
		return
	}
	defer conn.Close() //nolint:errcheck
	stopConn := context.AfterFunc(r.ctx, func() { _ = conn.Close() })
	defer stopConn()

	s.transition(SessionTransferring)
	res := r.receive(s, conn)
	if res.Succeeded() {
		s.transition(SessionCompleted)
	} else {
		s.transition(SessionFailed)
	}
	r.report(s, res)
}

func (r *Receiver) receive(s *TransferSession, conn net.Conn) Result {
	res := s.result()
	offer := s.Offer

	abort := func(path string, err error) Result {
		if path != "" {
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				slog.Warn("Failed to remove partial file", "path", path, "error", rmErr)
			}
		}
		msg := err.Error()
		if errors.Is(err, ErrHashMismatch) {
			msg = ReasonHashMismatch
		}
		_ = writeMessage(conn, protocol.NewError(msg), r.cfg.ReadTimeout)
		if errors.Is(err, ErrHashMismatch) {
			return res.withHashMismatch()
		}
		return res.withFailure(err)
	}

	meta, err := readMessageAs[protocol.FileMeta](conn, r.cfg.MaxFrameSize, r.cfg.ReadTimeout)
	if err != nil {
		return abort("", err)
	}
	if meta.BlockSize <= 0 || meta.BlockSize > r.cfg.MaxFrameSize {
		return abort("", fmt.Errorf("%w: block size %d", ErrInvalidOffer, meta.BlockSize))
	}
	if want := protocol.TotalBlocks(offer.FileSize, meta.BlockSize); meta.TotalBlocks != want {
		return abort("", fmt.Errorf("%w: %d blocks announced for %d bytes", ErrInvalidOffer, meta.TotalBlocks, offer.FileSize))
	}
	if meta.FileName != offer.FileName {
		slog.Warn("File name differs from offer", "id", s.ID, "offer", offer.FileName, "meta", meta.FileName)
	}

	if err := util.EnsureDir(r.cfg.DownloadDir); err != nil {
		return abort("", err)
	}
	f, path, err := util.CreateUnique(r.cfg.DownloadDir, offer.FileName)
	if err != nil {
		return abort("", err)
	}
	res.Path = path
	slog.Info("Started receiving file", "fileName", offer.FileName, "path", path, "size", offer.FileSize)

	for i := 0; i < meta.TotalBlocks; i++ {
		data, err := readBodyFrame(conn, r.cfg.MaxFrameSize, r.cfg.ReadTimeout)
		if err != nil {
			_ = f.Close()
			return abort(path, fmt.Errorf("read chunk %d: %w", i+1, err))
		}
		if res.Bytes+int64(len(data)) > offer.FileSize {
			_ = f.Close()
			return abort(path, ErrOversize)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return abort(path, fmt.Errorf("write %s: %w", path, err))
		}
		res.Bytes += int64(len(data))
		r.progress(s, res.Bytes, i+1, meta.TotalBlocks)
	}
	if err := f.Close(); err != nil {
		return abort(path, err)
	}
	if res.Bytes != offer.FileSize {
		return abort(path, ErrShortTransfer)
	}

	data, err := readBodyFrame(conn, r.cfg.MaxFrameSize, r.cfg.ReadTimeout)
	if err != nil {
		return abort(path, fmt.Errorf("read %s: %w", protocol.TypeTransferComplete, err))
	}
	complete, err := protocol.DecodeAs[protocol.Complete](data)
	if err != nil {
		return abort(path, err)
	}

	if r.verifyHook != nil {
		r.verifyHook(path)
	}

	expected := complete.FileMD5
	if expected == "" {
		expected = offer.FileMD5
	}
	actual, err := fileInfo.CalculateMD5(path)
	if err != nil {
		return abort(path, err)
	}
	if !strings.EqualFold(actual, expected) || !strings.EqualFold(actual, offer.FileMD5) {
		slog.Warn("Checksum mismatch", "id", s.ID, "path", path, "expected", expected, "actual", actual)
		return abort(path, ErrHashMismatch)
	}

	if err := writeMessage(conn, protocol.NewAck(0), r.cfg.ReadTimeout); err != nil {
		slog.Warn("Failed to send ack", "id", s.ID, "error", err)
	}
	res.MimeType = fileInfo.DetectMimeType(path)
	return res.withSuccess()
}

func (r *Receiver) progress(s *TransferSession, received int64, chunks, total int) {
	if r.onProgress == nil {
		return
	}
	r.onProgress(Progress{
		ID:          s.ID,
		Direction:   Incoming,
		FileName:    s.Offer.FileName,
		Bytes:       received,
		Total:       s.Offer.FileSize,
		Chunks:      chunks,
		TotalChunks: total,
	})
}

func validateOffer(o protocol.Offer) error {
	switch {
	case net.ParseIP(o.SenderIP) == nil:
		return fmt.Errorf("%w: sender_ip %q", ErrInvalidOffer, o.SenderIP)
	case o.SenderPort <= 0 || o.SenderPort > 65535:
		return fmt.Errorf("%w: sender_port %d", ErrInvalidOffer, o.SenderPort)
	case o.FileSize < 0:
		return fmt.Errorf("%w: file_size %d", ErrInvalidOffer, o.FileSize)
	case o.FileMD5 == "":
		return fmt.Errorf("%w: missing file_md5", ErrInvalidOffer)
	}
	if name, err := util.SanitizeFileName(o.FileName); err != nil || name != o.FileName {
		return fmt.Errorf("%w: file_name %q", ErrInvalidOffer, o.FileName)
	}
	return nil
}
