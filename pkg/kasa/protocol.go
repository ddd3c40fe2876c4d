package kasa

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Constants defined by the smart plug local protocol
const (
	// DefaultPort is the TCP port of the command channel.
	DefaultPort = 9999

	// InitialKey seeds the autokey XOR cipher.
	InitialKey = 171

	// HeaderLen is the size of the frame length prefix.
	HeaderLen = 4

	// MaxResponseLen bounds the length a device may declare for a response.
	// Real replies are a few KiB at most (power strips with six children).
	MaxResponseLen = 1 << 20

	readChunk = 1024
)

var (
	ErrResolution       = errors.New("address does not resolve")
	ErrConnection       = errors.New("connection failed")
	ErrSend             = errors.New("send failed")
	ErrTimeout          = errors.New("timeout waiting for response")
	ErrMalformedLength  = errors.New("malformed length prefix")
	ErrResponseTooLarge = errors.New("response length exceeds maximum")
	ErrShapeMismatch    = errors.New("unexpected response shape")
	ErrChildLookup      = errors.New("child outlet lookup failed")
	ErrDevice           = errors.New("device reported error")
)

// Encode obfuscates plaintext. The running key is the previous output byte.
func Encode(plain []byte) []byte {
	out := make([]byte, len(plain))
	key := byte(InitialKey)
	for i, b := range plain {
		key ^= b
		out[i] = key
	}
	return out
}

// Decode reverses Encode. The running key is the previous input byte.
func Decode(cipher []byte) []byte {
	out := make([]byte, len(cipher))
	key := byte(InitialKey)
	for i, b := range cipher {
		out[i] = key ^ b
		key = b
	}
	return out
}

// MarshalFrame builds an outgoing frame for payload.
//
// Devices only look at the low byte of the request length, so the prefix is
// three zero bytes followed by len(payload) mod 256. Responses carry a full
// 32-bit big endian length; see ReadFrame.
func MarshalFrame(payload []byte) []byte {
	buf := make([]byte, HeaderLen+len(payload))
	buf[3] = byte(len(payload) & 0xFF)
	copy(buf[HeaderLen:], Encode(payload))
	return buf
}

// ReadFrame reads one response frame from r and returns the decoded payload.
// Reads are issued in chunks until the declared length has arrived, however
// the device splits its writes.
func ReadFrame(r io.Reader) ([]byte, error) {
	data := make([]byte, 0, readChunk)
	chunk := make([]byte, readChunk)

	want := -1
	for want < 0 || len(data)-HeaderLen < want {
		n, err := r.Read(chunk)
		data = append(data, chunk[:n]...)

		if want < 0 && len(data) >= HeaderLen {
			declared := binary.BigEndian.Uint32(data[:HeaderLen])
			if declared > MaxResponseLen {
				return nil, fmt.Errorf("%w: %d > %d", ErrResponseTooLarge, declared, MaxResponseLen)
			}
			want = int(declared)
		}
		if want >= 0 && len(data)-HeaderLen >= want {
			break
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
			if want < 0 {
				return nil, fmt.Errorf("%w: got %d bytes", ErrMalformedLength, len(data))
			}
			return nil, fmt.Errorf("%w: declared %d bytes, got %d", ErrMalformedLength, want, len(data)-HeaderLen)
		}
	}

	return Decode(data[HeaderLen : HeaderLen+want]), nil
}
