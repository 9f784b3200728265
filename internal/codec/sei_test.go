package codec

import "testing"

func TestPicTimingTimecode(t *testing.T) {
	t.Parallel()

	withHRD := avcSPS{picStruct: true, hrd: true, cpbDelayLen: 10, dpbDelayLen: 7}
	tests := []struct {
		name string
		nal  []byte
		sps  avcSPS
		want Timecode
		ok   bool
	}{
		{
			name: "emulation prevention in payload",
			nal:  []byte{0x06, 0x01, 0x08, 0x00, 0x02, 0x04, 0x12, 0x00, 0x00, 0x03, 0x00, 0x40, 0x80},
			sps:  withHRD,
			want: Timecode{Hours: 1},
			ok:   true,
		},
		{
			name: "frame one",
			nal:  []byte{0x06, 0x01, 0x08, 0x00, 0x85, 0x04, 0x12, 0x00, 0x80, 0x00, 0x40, 0x80},
			sps:  withHRD,
			want: Timecode{Hours: 1, Frames: 1},
			ok:   true,
		},
		{
			name: "frame two",
			nal:  []byte{0x06, 0x01, 0x08, 0x01, 0x02, 0x04, 0x12, 0x01, 0x00, 0x00, 0x40, 0x80},
			sps:  withHRD,
			want: Timecode{Hours: 1, Frames: 2},
			ok:   true,
		},
		{
			name: "after another message",
			nal:  []byte{0x06, 0x05, 0x02, 0xAA, 0xBB, 0x01, 0x08, 0x00, 0x85, 0x04, 0x12, 0x00, 0x80, 0x00, 0x40, 0x80},
			sps:  withHRD,
			want: Timecode{Hours: 1, Frames: 1},
			ok:   true,
		},
		{
			name: "short delay fields",
			nal:  []byte{0x06, 0x01, 0x08, 0x00, 0x00, 0x08, 0x04, 0x05, 0x10, 0x31, 0x40, 0x80},
			sps:  avcSPS{picStruct: true, hrd: true, cpbDelayLen: 9, dpbDelayLen: 7},
			want: Timecode{Hours: 2, Minutes: 3, Seconds: 4, Frames: 5},
			ok:   true,
		},
		{
			name: "no clock timestamp",
			nal:  []byte{0x06, 0x01, 0x03, 0x00, 0x02, 0x02, 0x80},
			sps:  withHRD,
		},
		{
			name: "too short",
			nal:  []byte{0x06},
			sps:  withHRD,
		},
		{
			name: "size past end",
			nal:  []byte{0x06, 0x01, 0x20, 0x00, 0x02},
			sps:  withHRD,
		},
		{
			name: "no HRD",
			nal:  []byte{0x06, 0x01, 0x08, 0x00, 0x02, 0x04, 0x12, 0x00, 0x00, 0x03, 0x00, 0x40, 0x80},
			sps:  avcSPS{picStruct: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := picTimingTimecode(tt.nal, &tt.sps)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("timecode = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimecodeString(t *testing.T) {
	t.Parallel()
	tc := Timecode{Hours: 1, Minutes: 2, Seconds: 3, Frames: 4}
	if got := tc.String(); got != "01:02:03:04" {
		t.Errorf("String() = %q", got)
	}
}
