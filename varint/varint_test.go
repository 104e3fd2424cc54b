package varint

import (
	"testing"

	"github.com/xtls/quicaccept/internal/qerr"
)

func TestRoundTrip(t *testing.T) {
	cases := []uint64{
		0, 1, 37, 63,
		64, 15293, 16383,
		16384, 494878333, 1073741823,
		1073741824, 151288809941952652, Max,
	}
	for _, v := range cases {
		buf := Append(nil, v)
		got, n, err := Read(buf)
		if err != nil {
			t.Fatalf("Read(%d) error: %v", v, err)
		}
		if n != len(buf) {
			t.Fatalf("Read(%d) consumed %d, want %d", v, n, len(buf))
		}
		if got != v {
			t.Fatalf("round trip %d -> %d", v, got)
		}
	}
}

func TestLenMatchesRFCExamples(t *testing.T) {
	cases := map[uint64]int{
		37:                 1,
		15293:              2,
		494878333:          4,
		151288809941952652: 8,
	}
	for v, want := range cases {
		if got := Len(v); got != want {
			t.Errorf("Len(%d) = %d, want %d", v, got, want)
		}
	}
}

func TestReadShortBuffer(t *testing.T) {
	_, _, err := Read([]byte{0xc0, 0x01})
	if !qerr.Is(err, qerr.InvalidVarint) {
		t.Fatalf("expected INVALID_VARINT, got %v", err)
	}
}

func TestReadEmptyBuffer(t *testing.T) {
	_, _, err := Read(nil)
	if !qerr.Is(err, qerr.InvalidVarint) {
		t.Fatalf("expected INVALID_VARINT, got %v", err)
	}
}

func TestAppendOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range value")
		}
	}()
	Append(nil, Max+1)
}
