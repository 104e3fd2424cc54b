package candidate

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xtls/quicaccept/initial"
	"github.com/xtls/quicaccept/quicversion"
	"github.com/xtls/quicaccept/varint"
)

type fakePromoter struct {
	info    PromotionInfo
	called  bool
	failErr error
}

func (f *fakePromoter) Promote(info PromotionInfo) error {
	f.called = true
	f.info = info
	return f.failErr
}

func cryptoFrame(offset uint64, data []byte) []byte {
	var buf []byte
	buf = varint.Append(buf, 0x06) // CRYPTO
	buf = varint.Append(buf, offset)
	buf = varint.Append(buf, uint64(len(data)))
	buf = append(buf, data...)
	return buf
}

// clientHello returns a complete TLS ClientHello-shaped handshake message
// of the given total (header-included) length.
func clientHello(total int) []byte {
	body := total - 4
	out := make([]byte, total)
	out[0] = 0x01
	out[1] = byte(body >> 16)
	out[2] = byte(body >> 8)
	out[3] = byte(body)
	return out
}

func padTo(payload []byte, n int) []byte {
	if len(payload) >= n {
		return payload
	}
	return append(payload, make([]byte, n-len(payload))...)
}

var testAddr = netip.MustParseAddrPort("203.0.113.9:4433")
var otherAddr = netip.MustParseAddrPort("203.0.113.10:4433")

func TestSingleDatagramValidInitialPromotes(t *testing.T) {
	dcid := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}
	scid := []byte{0xaa, 0xbb}
	ch := clientHello(200)
	payload := padTo(cryptoFrame(0, ch), 1180)

	wire, err := initial.Seal(dcid, scid, nil, quicversion.V1, payload, 1)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(wire), 1200)

	promoter := &fakePromoter{}
	c := New(dcid, promoter, time.Now())
	c.OnDatagram(wire, testAddr, time.Now())

	require.Equal(t, StatePromoted, c.State())
	require.True(t, promoter.called)
	require.Equal(t, ch, promoter.info.ClientHello)
	require.Len(t, promoter.info.InitialPackets, 1)
}

func TestSplitClientHelloOverTwoDatagramsPromotesOnSecond(t *testing.T) {
	dcid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	scid := []byte{9, 9}
	ch := clientHello(2000)

	firstChunk := ch[:1100]
	secondChunk := ch[1100:]

	payload1 := padTo(cryptoFrame(0, firstChunk), 1180)
	payload2 := cryptoFrame(1100, secondChunk)

	wire1, err := initial.Seal(dcid, scid, nil, quicversion.V1, payload1, 1)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(wire1), 1200)

	wire2, err := initial.Seal(dcid, scid, nil, quicversion.V1, payload2, 2)
	require.NoError(t, err)

	promoter := &fakePromoter{}
	c := New(dcid, promoter, time.Now())

	c.OnDatagram(wire1, testAddr, time.Now())
	require.Equal(t, StateBuffering, c.State())
	require.False(t, promoter.called)

	c.OnDatagram(wire2, testAddr, time.Now())
	require.Equal(t, StatePromoted, c.State())
	require.True(t, promoter.called)
	require.Equal(t, ch, promoter.info.ClientHello)
	require.Len(t, promoter.info.InitialPackets, 2)
}

func TestFirstDatagramBelowMinimumSizeDrops(t *testing.T) {
	dcid := []byte{1, 2, 3, 4}
	scid := []byte{5, 6}
	payload := cryptoFrame(0, clientHello(40))

	wire, err := initial.Seal(dcid, scid, nil, quicversion.V1, payload, 1)
	require.NoError(t, err)
	require.Less(t, len(wire), 1200)

	promoter := &fakePromoter{}
	c := New(dcid, promoter, time.Now())
	c.OnDatagram(wire, testAddr, time.Now())

	require.Equal(t, StateDropped, c.State())
	require.False(t, promoter.called)
}

func TestMismatchedSCIDOnSecondDatagramIsIgnored(t *testing.T) {
	dcid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	scid1 := []byte{0xaa, 0xaa}
	scid2 := []byte{0xbb, 0xbb}
	ch := clientHello(2000)

	payload1 := padTo(cryptoFrame(0, ch[:1100]), 1180)
	payload2 := cryptoFrame(1100, ch[1100:])

	wire1, err := initial.Seal(dcid, scid1, nil, quicversion.V1, payload1, 1)
	require.NoError(t, err)
	wire2, err := initial.Seal(dcid, scid2, nil, quicversion.V1, payload2, 2)
	require.NoError(t, err)

	promoter := &fakePromoter{}
	c := New(dcid, promoter, time.Now())
	c.OnDatagram(wire1, testAddr, time.Now())
	require.Equal(t, StateBuffering, c.State())

	c.OnDatagram(wire2, testAddr, time.Now())
	require.Equal(t, StateBuffering, c.State())
	require.False(t, promoter.called)
}

func TestDifferentSourceAddressOnSecondDatagramIsIgnored(t *testing.T) {
	dcid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	scid := []byte{9, 9}
	ch := clientHello(2000)

	payload1 := padTo(cryptoFrame(0, ch[:1100]), 1180)
	payload2 := cryptoFrame(1100, ch[1100:])

	wire1, err := initial.Seal(dcid, scid, nil, quicversion.V1, payload1, 1)
	require.NoError(t, err)
	wire2, err := initial.Seal(dcid, scid, nil, quicversion.V1, payload2, 2)
	require.NoError(t, err)

	promoter := &fakePromoter{}
	c := New(dcid, promoter, time.Now())
	c.OnDatagram(wire1, testAddr, time.Now())
	require.Equal(t, StateBuffering, c.State())

	c.OnDatagram(wire2, otherAddr, time.Now())
	require.Equal(t, StateBuffering, c.State())
	require.False(t, promoter.called)
}

func TestCryptoFrameOffsetBeyondReassemblyBoundIsDropped(t *testing.T) {
	dcid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	scid := []byte{9, 9}
	payload := padTo(cryptoFrame(maxAccumulatorBytes, []byte{0x01}), 1180)

	wire, err := initial.Seal(dcid, scid, nil, quicversion.V1, payload, 1)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(wire), 1200)

	promoter := &fakePromoter{}
	c := New(dcid, promoter, time.Now())
	require.NotPanics(t, func() {
		c.OnDatagram(wire, testAddr, time.Now())
	})

	require.NotEqual(t, StatePromoted, c.State())
	require.False(t, promoter.called)
}

func TestCoalescedTrailingBytesRetainedForPromotion(t *testing.T) {
	dcid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	scid := []byte{9, 9}
	ch := clientHello(200)
	payload := padTo(cryptoFrame(0, ch), 1180)

	wire, err := initial.Seal(dcid, scid, nil, quicversion.V1, payload, 1)
	require.NoError(t, err)

	trailing := []byte{0xde, 0xad, 0xbe, 0xef}
	datagram := append(append([]byte(nil), wire...), trailing...)

	promoter := &fakePromoter{}
	c := New(dcid, promoter, time.Now())
	c.OnDatagram(datagram, testAddr, time.Now())

	require.Equal(t, StatePromoted, c.State())
	require.Equal(t, trailing, promoter.info.Trailing)
}
