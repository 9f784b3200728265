package source

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/zsiec/framescope/internal/certs"
)

// serveQUIC starts a loopback server that answers every request with
// payloads[name] and returns its address and certificate.
func serveQUIC(t *testing.T, payloads map[string][]byte) (string, *certs.CertInfo) {
	t.Helper()

	cert, err := certs.Generate(time.Hour)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	ln, err := quic.ListenAddr("127.0.0.1:0", cert.ServerTLSConfig(QUICProto), nil)
	if err != nil {
		t.Fatalf("ListenAddr: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		ln.Close()
	})

	go func() {
		for {
			conn, err := ln.Accept(ctx)
			if err != nil {
				return
			}
			go func() {
				stream, err := conn.AcceptStream(ctx)
				if err != nil {
					return
				}
				line, err := bufio.NewReader(stream).ReadString('\n')
				if err != nil {
					return
				}
				stream.Write(payloads[strings.TrimSpace(line)])
				stream.Close()
			}()
		}
	}()

	return ln.Addr().String(), cert
}

func TestDialQUICPinned(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte{0x47, 1, 2, 3}, 5000)
	addr, cert := serveQUIC(t, map[string][]byte{"live/cam1": payload})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	src, err := DialQUIC(ctx, QUICConfig{
		Address:     addr,
		Name:        "live/cam1",
		Fingerprint: cert.FingerprintBase64(),
	}, nil)
	if err != nil {
		t.Fatalf("DialQUIC: %v", err)
	}
	defer src.Close()

	if !src.OKToRead() {
		t.Fatal("connected source should be readable")
	}
	got, err := io.ReadAll(src)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("read %d bytes, want %d", len(got), len(payload))
	}
	if st := src.Stats(); st.BytesReceived != int64(len(payload)) {
		t.Errorf("BytesReceived = %d, want %d", st.BytesReceived, len(payload))
	}
	if Caps(src).Seekable {
		t.Error("QUIC source must not be seekable")
	}

	src.Close()
	if src.OKToRead() {
		t.Error("closed source should not be readable")
	}
}

func TestDialQUICFingerprintMismatch(t *testing.T) {
	t.Parallel()

	addr, _ := serveQUIC(t, map[string][]byte{"x": []byte("x")})
	other, err := certs.Generate(time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := DialQUIC(ctx, QUICConfig{
		Address:     addr,
		Name:        "x",
		Fingerprint: other.FingerprintBase64(),
	}, nil); err == nil {
		t.Fatal("expected handshake failure with a foreign fingerprint")
	}
}

func TestDialQUICValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if _, err := DialQUIC(ctx, QUICConfig{Name: "x"}, nil); err == nil {
		t.Error("expected error without address")
	}
	if _, err := DialQUIC(ctx, QUICConfig{Address: "127.0.0.1:1"}, nil); err == nil {
		t.Error("expected error without name")
	}
	if _, err := DialQUIC(ctx, QUICConfig{Address: "127.0.0.1:1", Name: "x", Fingerprint: "bad"}, nil); err == nil {
		t.Error("expected error for malformed fingerprint")
	}
}
