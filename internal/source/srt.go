package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	srtgo "github.com/zsiec/srtgo"
)

// srtLatencyNs is the SRT latency setting in nanoseconds (120ms).
const srtLatencyNs = 120_000_000

const defaultSRTDialTimeout = 10 * time.Second

// SRTConfig describes a remote SRT listener to pull from.
type SRTConfig struct {
	Address     string
	StreamID    string
	DialTimeout time.Duration
}

// SRT is a sequential source reading MPEG-TS from an SRT caller
// connection.
type SRT struct {
	conn      *srtgo.Conn
	log       *slog.Logger
	stats     *readCounter
	closed    atomic.Bool
	stopWatch func()
}

// DialSRT dials the remote SRT listener synchronously, bounded by the dial
// timeout and ctx. Once connected, the source stops being readable when ctx
// is done or Close is called. If log is nil, slog.Default() is used.
func DialSRT(ctx context.Context, cfg SRTConfig, log *slog.Logger) (*SRT, error) {
	if cfg.Address == "" {
		return nil, errors.New("source: srt address is required")
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "srt-source", "address", cfg.Address)

	scfg := srtgo.DefaultConfig()
	scfg.Latency = srtLatencyNs
	if cfg.StreamID != "" {
		scfg.StreamID = cfg.StreamID
	}

	type dialResult struct {
		conn *srtgo.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := srtgo.Dial(cfg.Address, scfg)
		ch <- dialResult{conn, err}
	}()

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultSRTDialTimeout
	}
	timer := time.NewTimer(dialTimeout)
	defer timer.Stop()

	log.Info("dialing", "stream_id", cfg.StreamID)

	var conn *srtgo.Conn
	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("source: srt dial: %w", res.err)
		}
		conn = res.conn
	case <-timer.C:
		// Close any connection that completes after we gave up.
		go func() {
			if res := <-ch; res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, fmt.Errorf("source: srt dial timed out after %s", dialTimeout)
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}

	s := &SRT{conn: conn, log: log, stats: newReadCounter()}
	s.stats.setRemoteAddr(cfg.Address)

	watchCtx, cancel := context.WithCancel(ctx)
	s.stopWatch = cancel
	go func() {
		<-watchCtx.Done()
		s.Close()
	}()

	log.Info("connected")
	return s, nil
}

func (s *SRT) Read(p []byte) (int, error) {
	n, err := s.conn.Read(p)
	s.stats.record(n)
	return n, err
}

// OKToRead reports true until the connection is closed.
func (s *SRT) OKToRead() bool { return !s.closed.Load() }

// Stats returns a snapshot of the read counters.
func (s *SRT) Stats() Stats { return s.stats.snapshot() }

// Close tears down the connection. It is safe to call more than once.
func (s *SRT) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.stopWatch()
	st := s.stats.snapshot()
	s.log.Info("closed", "bytes", st.BytesReceived, "reads", st.ReadCount, "uptime_ms", st.UptimeMs)
	return s.conn.Close()
}
