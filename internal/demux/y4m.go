package demux

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/zsiec/framescope/internal/media"
)

var y4mMagic = []byte("YUV4MPEG2 ")

type y4mFormat struct{}

func (y4mFormat) Name() string { return "y4m" }

func (y4mFormat) Probe(header []byte, ext string) int {
	if bytes.HasPrefix(header, y4mMagic) {
		return 100
	}
	return 0
}

func (y4mFormat) Open(in *Input) (Reader, error) {
	rd, err := in.Reader()
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(rd)
	line, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("y4m: read header: %w", err)
	}
	hdr, err := parseY4MHeader(strings.TrimSuffix(line, "\n"))
	if err != nil {
		return nil, err
	}

	r := &y4mReader{
		br:        br,
		hdr:       hdr,
		frameSize: hdr.format.FrameSize(),
	}
	r.buf = make([]byte, r.frameSize)
	if in.Size > 0 {
		// Frame headers may carry parameters; assume the bare "FRAME\n".
		r.frames = (in.Size - int64(len(line))) / int64(len("FRAME\n")+r.frameSize)
	}
	r.stream = Stream{
		Index:    0,
		Kind:     media.KindVideo,
		Codec:    "rawvideo",
		TimeBase: media.Rational{Num: hdr.fpsDen, Den: hdr.fpsNum},
		Image:    hdr.format,
	}
	return r, nil
}

type y4mHeader struct {
	format media.ImageFormat
	fpsNum int64
	fpsDen int64
}

func parseY4MHeader(line string) (y4mHeader, error) {
	h := y4mHeader{fpsNum: 25, fpsDen: 1}
	h.format.Pixel = media.PixelFormatYUV420P

	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "YUV4MPEG2" {
		return h, errors.New("y4m: bad magic")
	}
	for _, f := range fields[1:] {
		if len(f) < 2 {
			continue
		}
		val := f[1:]
		switch f[0] {
		case 'W':
			w, err := strconv.Atoi(val)
			if err != nil {
				return h, fmt.Errorf("y4m: width: %w", err)
			}
			h.format.Width = w
		case 'H':
			v, err := strconv.Atoi(val)
			if err != nil {
				return h, fmt.Errorf("y4m: height: %w", err)
			}
			h.format.Height = v
		case 'F':
			num, den, ok := strings.Cut(val, ":")
			if !ok {
				return h, fmt.Errorf("y4m: frame rate %q", val)
			}
			n, err1 := strconv.ParseInt(num, 10, 64)
			d, err2 := strconv.ParseInt(den, 10, 64)
			if err1 != nil || err2 != nil || n <= 0 || d <= 0 {
				return h, fmt.Errorf("y4m: frame rate %q", val)
			}
			h.fpsNum, h.fpsDen = n, d
		case 'C':
			switch {
			case strings.HasPrefix(val, "420"):
				h.format.Pixel = media.PixelFormatYUV420P
			case val == "mono":
				h.format.Pixel = media.PixelFormatGray8
			default:
				return h, fmt.Errorf("y4m: unsupported colorspace %q", val)
			}
		}
	}
	if h.format.Width <= 0 || h.format.Height <= 0 {
		return h, errors.New("y4m: missing frame size")
	}
	return h, nil
}

type y4mReader struct {
	br        *bufio.Reader
	hdr       y4mHeader
	stream    Stream
	frameSize int
	buf       []byte
	index     int64
	frames    int64
}

func (r *y4mReader) Streams() []Stream { return []Stream{r.stream} }

func (r *y4mReader) ReadPacket(pkt *RawPacket) error {
	line, err := r.br.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line == "" {
			return io.EOF
		}
		return fmt.Errorf("y4m: frame header: %w", err)
	}
	if !strings.HasPrefix(line, "FRAME") {
		return fmt.Errorf("y4m: bad frame marker %q", strings.TrimSpace(line))
	}
	if _, err := io.ReadFull(r.br, r.buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		return err
	}
	*pkt = RawPacket{
		StreamIndex: 0,
		Data:        r.buf,
		PTS:         r.index,
		DTS:         r.index,
		Keyframe:    true,
	}
	r.index++
	return nil
}

func (r *y4mReader) DurationMicroseconds() int64 {
	if r.frames <= 0 {
		return 0
	}
	return r.frames * r.hdr.fpsDen * 1000000 / r.hdr.fpsNum
}

func (r *y4mReader) BitRate() int64 { return 0 }

func (r *y4mReader) Close() error { return nil }
