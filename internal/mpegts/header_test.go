package mpegts

import (
	"bytes"
	"testing"
)

// tsPacket builds a packet on pid. A non-nil af becomes the adaptation
// field body; with a nil payload the packet is adaptation-only and the field
// is stuffed to fill it. Unused payload bytes are 0xFF.
func tsPacket(pid uint16, cc uint8, unitStart bool, af, payload []byte) []byte {
	pkt := bytes.Repeat([]byte{0xFF}, packetSize)
	pkt[0] = syncByte
	pkt[1] = byte(pid>>8) & 0x1F
	if unitStart {
		pkt[1] |= 0x40
	}
	pkt[2] = byte(pid)
	pkt[3] = cc & 0x0F
	off := 4
	if af != nil {
		pkt[3] |= 0x20
		n := len(af)
		if payload == nil {
			n = packetSize - 5
		}
		pkt[4] = byte(n)
		copy(pkt[5:], af)
		off = 5 + n
	}
	if payload != nil {
		pkt[3] |= 0x10
		copy(pkt[off:], payload)
	}
	return pkt
}

// pcrField encodes a PCR base with a zero extension, behind a PCR flag.
func pcrField(base int64) []byte {
	return []byte{0x10, byte(base >> 25), byte(base >> 17), byte(base >> 9), byte(base >> 1), byte(base<<7) | 0x7E, 0}
}

func TestParseHeader(t *testing.T) {
	t.Parallel()

	overlong := tsPacket(0x100, 0, false, []byte{}, []byte{1})
	overlong[4] = 184

	tests := []struct {
		name       string
		pkt        []byte
		want       header
		payloadLen int
		first      byte
		wantErr    bool
	}{
		{
			name:       "payload only",
			pkt:        tsPacket(0x100, 5, false, nil, []byte{1, 2, 3}),
			want:       header{pid: 0x100, cc: 5, hasPayload: true, pcr: -1},
			payloadLen: 184,
			first:      1,
		},
		{
			name:       "unit start on PAT",
			pkt:        tsPacket(0, 15, true, nil, []byte{0}),
			want:       header{pid: 0, cc: 15, unitStart: true, hasPayload: true, pcr: -1},
			payloadLen: 184,
		},
		{
			name: "adaptation only with PCR",
			pkt:  tsPacket(0x1FF, 3, false, pcrField(90000), nil),
			want: header{pid: 0x1FF, cc: 3, pcr: 90000},
		},
		{
			name:       "random access and discontinuity",
			pkt:        tsPacket(0x101, 0, true, []byte{0xC0}, []byte{9}),
			want:       header{pid: 0x101, unitStart: true, hasPayload: true, discontinuity: true, randomAccess: true, pcr: -1},
			payloadLen: 182,
			first:      9,
		},
		{
			name:       "empty adaptation field",
			pkt:        tsPacket(0x101, 1, false, []byte{}, []byte{7}),
			want:       header{pid: 0x101, cc: 1, hasPayload: true, pcr: -1},
			payloadLen: 183,
			first:      7,
		},
		{name: "bad sync", pkt: append([]byte{0x46}, make([]byte, packetSize-1)...), wantErr: true},
		{name: "short", pkt: []byte{syncByte, 0, 0, 0x10}, wantErr: true},
		{name: "adaptation field overruns packet", pkt: overlong, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, payload, err := parseHeader(tt.pkt)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if h != tt.want {
				t.Errorf("header = %+v, want %+v", h, tt.want)
			}
			if len(payload) != tt.payloadLen {
				t.Fatalf("payload = %d bytes, want %d", len(payload), tt.payloadLen)
			}
			if tt.payloadLen > 0 && payload[0] != tt.first {
				t.Errorf("payload[0] = %d, want %d", payload[0], tt.first)
			}
		})
	}
}

func TestPCRBase(t *testing.T) {
	t.Parallel()
	for _, base := range []int64{0, 1, 90000, 1<<32 + 1, 1<<33 - 1} {
		h, _, err := parseHeader(tsPacket(0x100, 0, false, pcrField(base), nil))
		if err != nil {
			t.Fatal(err)
		}
		if h.pcr != base {
			t.Errorf("pcr = %d, want %d", h.pcr, base)
		}
	}
}
