package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Open resolves uri to a source and a display name:
//
//	srt://host:port?streamid=live/key
//	quic://host:port/name?fp=<base64 sha-256>
//	file:///path/to/media.ts or a bare path
//	- (standard input)
//
// The caller owns the returned source and must close it when it implements
// io.Closer.
func Open(ctx context.Context, uri string, log *slog.Logger) (ByteSource, string, error) {
	if uri == "-" {
		return NewReader(os.Stdin), "stdin", nil
	}
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Bare paths, including Windows drive letters.
		return openPath(uri)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		p := u.Path
		if u.Host != "" && u.Host != "localhost" {
			p = "//" + u.Host + p
		}
		return openPath(p)
	case "srt":
		streamID := u.Query().Get("streamid")
		src, err := DialSRT(ctx, SRTConfig{Address: u.Host, StreamID: streamID}, log)
		if err != nil {
			return nil, "", err
		}
		name := streamID
		if name == "" {
			name = u.Host
		}
		return src, name, nil
	case "quic":
		name := strings.TrimPrefix(u.Path, "/")
		src, err := DialQUIC(ctx, QUICConfig{
			Address:     u.Host,
			Name:        name,
			Fingerprint: u.Query().Get("fp"),
		}, log)
		if err != nil {
			return nil, "", err
		}
		return src, path.Base(name), nil
	default:
		return nil, "", fmt.Errorf("source: unsupported scheme %q", u.Scheme)
	}
}

func openPath(p string) (ByteSource, string, error) {
	f, err := OpenFile(p)
	if err != nil {
		return nil, "", err
	}
	return f, filepath.Base(p), nil
}
