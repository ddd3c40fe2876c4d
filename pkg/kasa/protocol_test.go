package kasa

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"io"
	"testing"
	"testing/iotest"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Captured from a HS100 session.
const (
	getSysinfoJSON   = `{"system":{"get_sysinfo":{}}}`
	getSysinfoCipher = "d0f281f88bff9af7d5ef94b6d1b4c09fec95e68fe187e8caf08bf68bf6"
)

func TestEncode_KnownCommand(t *testing.T) {
	assert.Equal(t, getSysinfoCipher, hex.EncodeToString(Encode([]byte(getSysinfoJSON))))
}

func TestDecode_KnownCommand(t *testing.T) {
	cipher, _ := hex.DecodeString(getSysinfoCipher)
	assert.Equal(t, getSysinfoJSON, string(Decode(cipher)))
}

func TestEncode_Empty(t *testing.T) {
	assert.Empty(t, Encode(nil))
	assert.Empty(t, Decode([]byte{}))
}

func TestCodec_RoundTrip(t *testing.T) {
	roundTrip := func(b []byte) bool {
		return bytes.Equal(Decode(Encode(b)), b)
	}
	require.NoError(t, quick.Check(roundTrip, nil))

	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	assert.Equal(t, all, Decode(Encode(all)))
}

func TestEncode_Deterministic(t *testing.T) {
	in := []byte(`{"system":{"set_relay_state":{"state":1}}}`)
	assert.Equal(t, Encode(in), Encode(in))
}

func TestMarshalFrame_Prefix(t *testing.T) {
	for _, n := range []int{0, 1, 29, 255} {
		frame := MarshalFrame(bytes.Repeat([]byte{'x'}, n))
		require.Len(t, frame, HeaderLen+n)
		assert.Equal(t, []byte{0, 0, 0, byte(n)}, frame[:HeaderLen], "length %d", n)
	}
}

func TestMarshalFrame_PrefixKeepsLowByteOnly(t *testing.T) {
	frame := MarshalFrame(bytes.Repeat([]byte{'x'}, 300))
	assert.Equal(t, []byte{0, 0, 0, 300 & 0xFF}, frame[:HeaderLen])
	assert.Len(t, frame, HeaderLen+300)
}

func TestMarshalFrame_Payload(t *testing.T) {
	frame := MarshalFrame([]byte(getSysinfoJSON))
	assert.Equal(t, "0000001d"+getSysinfoCipher, hex.EncodeToString(frame))
}

// chunkReader hands out its chunks one Read at a time.
type chunkReader struct {
	chunks [][]byte
	reads  int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	r.reads++
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func responseFrame(payload []byte) []byte {
	buf := make([]byte, HeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[HeaderLen:], Encode(payload))
	return buf
}

func TestReadFrame_SingleRead(t *testing.T) {
	payload := []byte(`{"system":{"get_sysinfo":{"relay_state":1}}}`)

	got, err := ReadFrame(bytes.NewReader(responseFrame(payload)))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadFrame_SplitAcrossTwoReads(t *testing.T) {
	payload := []byte(`{"system":{"get_sysinfo":{"relay_state":0,"alias":"printer"}}}`)
	frame := responseFrame(payload)

	r := &chunkReader{chunks: [][]byte{frame[:10], frame[10:]}}
	got, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, 2, r.reads)
}

func TestReadFrame_SplitInsideHeader(t *testing.T) {
	payload := []byte(`{"a":1}`)
	frame := responseFrame(payload)

	r := &chunkReader{chunks: [][]byte{frame[:2], frame[2:5], frame[5:]}}
	got, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadFrame_OneByteReads(t *testing.T) {
	payload := bytes.Repeat([]byte(`{"k":"v"}`), 300)

	got, err := ReadFrame(iotest.OneByteReader(bytes.NewReader(responseFrame(payload))))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadFrame_IgnoresTrailingBytes(t *testing.T) {
	payload := []byte(`{"a":1}`)
	frame := append(responseFrame(payload), 0xde, 0xad)

	got, err := ReadFrame(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadFrame_TooShort(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0x00, 0x00}))
	assert.ErrorIs(t, err, ErrMalformedLength)

	_, err = ReadFrame(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrMalformedLength)
}

func TestReadFrame_Truncated(t *testing.T) {
	frame := responseFrame([]byte(`{"system":{}}`))

	_, err := ReadFrame(bytes.NewReader(frame[:len(frame)-3]))
	assert.ErrorIs(t, err, ErrMalformedLength)
	assert.Contains(t, err.Error(), "declared 13 bytes, got 10")
}

func TestReadFrame_TooLarge(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff, 0x00}))
	assert.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestReadFrame_ReaderError(t *testing.T) {
	_, err := ReadFrame(iotest.ErrReader(iotest.ErrTimeout))
	assert.ErrorIs(t, err, iotest.ErrTimeout)
}
