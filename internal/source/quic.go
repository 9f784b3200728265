package source

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/zsiec/framescope/internal/certs"
)

// QUICProto is the ALPN protocol spoken by QUIC media servers. The client
// opens one bidirectional stream, writes the resource name terminated by a
// newline, closes its send side and reads the media bytes until EOF.
const QUICProto = "framescope"

// QUICConfig describes a QUIC media server and the resource to fetch.
type QUICConfig struct {
	Address string
	Name    string
	// Fingerprint is the base64 SHA-256 fingerprint of the server
	// certificate. When empty the certificate is not verified.
	Fingerprint string
}

// QUIC is a sequential source reading one resource from a QUIC stream.
type QUIC struct {
	conn      quic.Connection
	stream    quic.Stream
	log       *slog.Logger
	stats     *readCounter
	closed    atomic.Bool
	eof       atomic.Bool
	stopWatch func()
}

// DialQUIC connects to the server, requests cfg.Name and returns a source
// positioned at the first media byte. If log is nil, slog.Default() is used.
func DialQUIC(ctx context.Context, cfg QUICConfig, log *slog.Logger) (*QUIC, error) {
	if cfg.Address == "" {
		return nil, errors.New("source: quic address is required")
	}
	if cfg.Name == "" {
		return nil, errors.New("source: quic resource name is required")
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "quic-source", "address", cfg.Address)

	var tlsConf *tls.Config
	if cfg.Fingerprint != "" {
		fp, err := certs.ParseFingerprint(cfg.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
		tlsConf = certs.PinnedClientConfig(fp, QUICProto)
	} else {
		log.Warn("no certificate fingerprint, server identity is not verified")
		tlsConf = &tls.Config{InsecureSkipVerify: true, NextProtos: []string{QUICProto}}
	}

	conn, err := quic.DialAddr(ctx, cfg.Address, tlsConf, &quic.Config{
		KeepAlivePeriod: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("source: quic dial: %w", err)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "")
		return nil, fmt.Errorf("source: quic open stream: %w", err)
	}
	if _, err := io.WriteString(stream, cfg.Name+"\n"); err != nil {
		conn.CloseWithError(0, "")
		return nil, fmt.Errorf("source: quic request: %w", err)
	}
	if err := stream.Close(); err != nil {
		conn.CloseWithError(0, "")
		return nil, fmt.Errorf("source: quic request: %w", err)
	}

	q := &QUIC{conn: conn, stream: stream, log: log, stats: newReadCounter()}
	q.stats.setRemoteAddr(conn.RemoteAddr().String())

	watchCtx, cancel := context.WithCancel(ctx)
	q.stopWatch = cancel
	go func() {
		<-watchCtx.Done()
		q.Close()
	}()

	log.Info("connected", "name", cfg.Name)
	return q, nil
}

func (q *QUIC) Read(p []byte) (int, error) {
	n, err := q.stream.Read(p)
	q.stats.record(n)
	if errors.Is(err, io.EOF) {
		q.eof.Store(true)
	}
	return n, err
}

// OKToRead reports true until Close. Reaching the end of the stream is
// reported through Read, not through the liveness flag.
func (q *QUIC) OKToRead() bool { return !q.closed.Load() }

// Stats returns a snapshot of the read counters.
func (q *QUIC) Stats() Stats { return q.stats.snapshot() }

// Close tears down the connection. It is safe to call more than once.
func (q *QUIC) Close() error {
	if q.closed.Swap(true) {
		return nil
	}
	q.stopWatch()
	if !q.eof.Load() {
		q.stream.CancelRead(0)
	}
	st := q.stats.snapshot()
	q.log.Info("closed", "bytes", st.BytesReceived, "reads", st.ReadCount, "uptime_ms", st.UptimeMs)
	return q.conn.CloseWithError(0, "")
}
