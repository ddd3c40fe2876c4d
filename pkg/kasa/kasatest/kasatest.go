// Package kasatest provides an in-process fake smart plug for tests.
//
// A Server listens on a loopback port and speaks the same framed, obfuscated
// protocol as real devices: it reads a 4 byte big endian length and that many
// cipher bytes, dispatches the decoded command and answers with one response
// frame before closing the connection.
package kasatest

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/zberg/go-kasaplug/pkg/kasa"
)

// Request is one command received by a Server.
type Request struct {
	Raw     []byte
	Command kasa.Command
}

// IsSetRelayState reports whether the request switches a relay.
func (r Request) IsSetRelayState() bool {
	return r.Command.System.SetRelayState != nil
}

// Handler answers a decoded command with a raw JSON reply.
// A nil reply closes the connection without answering.
type Handler func(req Request) []byte

// Server is a fake device listening on 127.0.0.1.
type Server struct {
	// Addr is the "host:port" the server listens on.
	Addr string

	ln      net.Listener
	handler Handler
	wg      sync.WaitGroup

	mu         sync.Mutex
	requests   []Request
	writeChunk int
}

// NewServer starts a server answering with h.
func NewServer(h Handler) *Server {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic("kasatest: failed to listen: " + err.Error())
	}
	s := &Server{
		Addr:    ln.Addr().String(),
		ln:      ln,
		handler: h,
	}
	s.wg.Add(1)
	go s.serve()
	return s
}

// Close stops the listener and waits for in-flight connections.
func (s *Server) Close() {
	s.ln.Close()
	s.wg.Wait()
}

// SetWriteChunk splits every later reply frame into writes of at most n
// bytes. Zero writes each frame at once.
func (s *Server) SetWriteChunk(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeChunk = n
}

// Requests returns the commands received so far, oldest first.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// SetRelayStateRequests returns only the relay switching commands.
func (s *Server) SetRelayStateRequests() []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.IsSetRelayState() {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	header := make([]byte, kasa.HeaderLen)
	if _, err := io.ReadFull(conn, header); err != nil {
		return
	}
	body := make([]byte, binary.BigEndian.Uint32(header))
	if _, err := io.ReadFull(conn, body); err != nil {
		return
	}

	req := Request{Raw: kasa.Decode(body)}
	// Undecodable commands are still recorded and passed to the handler.
	_ = json.Unmarshal(req.Raw, &req.Command)

	s.mu.Lock()
	s.requests = append(s.requests, req)
	chunk := s.writeChunk
	s.mu.Unlock()

	reply := s.handler(req)
	if reply == nil {
		return
	}

	frame := ResponseFrame(reply)
	if chunk <= 0 {
		conn.Write(frame)
		return
	}
	for len(frame) > 0 {
		n := min(chunk, len(frame))
		if _, err := conn.Write(frame[:n]); err != nil {
			return
		}
		frame = frame[n:]
	}
}

// ResponseFrame encodes payload the way devices answer: a full 32-bit big
// endian length followed by the cipher bytes.
func ResponseFrame(payload []byte) []byte {
	buf := make([]byte, kasa.HeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[kasa.HeaderLen:], kasa.Encode(payload))
	return buf
}

// ClosedAddr returns a loopback address nothing listens on.
func ClosedAddr() string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic("kasatest: failed to listen: " + err.Error())
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

var errUnknownCommand = errors.New("module not support")

func errorReply(err error) []byte {
	b, _ := json.Marshal(map[string]any{"err_code": -1, "err_msg": err.Error()})
	return b
}
