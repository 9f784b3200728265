package codec

import (
	"bytes"
	"errors"
	"testing"
)

func TestBitReaderExpGolomb(t *testing.T) {
	t.Parallel()

	// Codes for 0, 1, 2, 3, 4 and 7: 1 010 011 00100 00101 0001000.
	data := []byte{0xA6, 0x42, 0x88}
	wantUE := []uint{0, 1, 2, 3, 4, 7}
	wantSE := []int{0, 1, -1, 2, -2, 4}

	r := &bitReader{buf: data}
	for i, want := range wantUE {
		if got := r.ue(); got != want {
			t.Errorf("ue %d = %d, want %d", i, got, want)
		}
	}
	r = &bitReader{buf: data}
	for i, want := range wantSE {
		if got := r.se(); got != want {
			t.Errorf("se %d = %d, want %d", i, got, want)
		}
	}
	if r.err != nil {
		t.Errorf("err = %v", r.err)
	}
}

func TestBitReaderTruncation(t *testing.T) {
	t.Parallel()

	r := &bitReader{buf: []byte{0xF0}}
	if got := r.u(4); got != 0xF {
		t.Errorf("u(4) = %X", got)
	}
	if got := r.u(8); got != 0 || !errors.Is(r.err, errTruncated) {
		t.Errorf("u(8) past end = %d, err %v", got, r.err)
	}

	r = &bitReader{buf: []byte{0, 0, 0, 0, 0}}
	if got := r.ue(); got != 0 || r.err == nil {
		t.Errorf("ue over zeros = %d, err %v", got, r.err)
	}
}

func TestUnescape(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want []byte
	}{
		{[]byte{1, 0, 0, 3, 1}, []byte{1, 0, 0, 1}},
		{[]byte{0, 0, 3, 0, 0, 3}, []byte{0, 0, 0, 0}},
		{[]byte{0, 3, 0, 0, 2}, []byte{0, 3, 0, 0, 2}},
		{[]byte{0, 0, 0, 3}, []byte{0, 0, 0}},
		{nil, []byte{}},
	}
	for _, tt := range tests {
		if got := unescape(tt.in); !bytes.Equal(got, tt.want) {
			t.Errorf("unescape(% X) = % X, want % X", tt.in, got, tt.want)
		}
	}
}
