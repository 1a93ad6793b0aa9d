// Package wire defines the request/reply grammar shared by the tracker and
// peers, and the length-prefixed framing it travels in.
//
// A request frame is an ASCII command token, optionally followed by a single
// space and an argument. The argument is the remainder of the frame and may
// itself contain spaces. A reply frame is either "OK " followed by a payload
// (possibly empty) or "BAD " followed by a human-readable reason.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Command identifies a parsed request.
type Command uint8

const (
	CmdUnknown Command = iota
	CmdAdd
	CmdRemove
	CmdGetPeer
	CmdListFiles
	CmdGetFile
)

func (c Command) String() string {
	switch c {
	case CmdAdd:
		return "ADD"
	case CmdRemove:
		return "REMOVE"
	case CmdGetPeer:
		return "GET_PEER"
	case CmdListFiles:
		return "LIST_FILES"
	case CmdGetFile:
		return "GET_FILE"
	default:
		return "UNKNOWN"
	}
}

// ListSeparator joins file names in a LIST_FILES payload.
const ListSeparator = "; "

// Canonical BAD reasons. Peers match on these strings, so they are part of
// the protocol, not just diagnostics.
const (
	ReasonNotFound    = "File does not exist"
	ReasonUnsupported = "Method not supported"
	ReasonNotAllowed  = "File not allowed"
)

// MaxFrameSize caps a single frame. File contents travel as one frame, so
// this also bounds the size of a shareable file.
const MaxFrameSize = 1 << 20

// MaxPayloadSize caps the payload of an OK reply so the whole reply still
// fits in one frame.
const MaxPayloadSize = MaxFrameSize - len("OK ")

var (
	// ErrMalformed reports a request that does not match the grammar:
	// unknown command token, or a command missing its required argument.
	ErrMalformed = errors.New("wire: malformed request")

	// ErrFrameTooLarge reports a frame exceeding MaxFrameSize.
	ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")
)

// Request is a validated, tagged request: the command plus its file-name
// argument. Name is empty exactly when the command takes no argument.
type Request struct {
	Name string
	Cmd  Command
}

var commands = map[string]struct {
	cmd     Command
	wantArg bool
}{
	"ADD":        {CmdAdd, true},
	"REMOVE":     {CmdRemove, true},
	"GET_PEER":   {CmdGetPeer, true},
	"LIST_FILES": {CmdListFiles, false},
	"GET_FILE":   {CmdGetFile, true},
}

// ParseRequest validates a request frame against the command table.
func ParseRequest(frame []byte) (Request, error) {
	token, rest, hasArg := bytes.Cut(frame, []byte(" "))

	spec, ok := commands[string(token)]
	if !ok {
		return Request{}, ErrMalformed
	}
	if spec.wantArg != hasArg || (spec.wantArg && len(rest) == 0) {
		return Request{}, ErrMalformed
	}
	return Request{Cmd: spec.cmd, Name: string(rest)}, nil
}

// EncodeRequest builds a request frame. The inverse of ParseRequest.
func EncodeRequest(cmd Command, name string) []byte {
	if name == "" {
		return []byte(cmd.String())
	}
	return []byte(cmd.String() + " " + name)
}

var (
	okPrefix  = []byte("OK ")
	badPrefix = []byte("BAD ")
)

// OK builds a success reply carrying payload (which may be empty).
func OK(payload []byte) []byte {
	reply := make([]byte, 0, len(okPrefix)+len(payload))
	reply = append(reply, okPrefix...)
	return append(reply, payload...)
}

// Bad builds a failure reply carrying a human-readable reason.
func Bad(reason string) []byte {
	reply := make([]byte, 0, len(badPrefix)+len(reason))
	reply = append(reply, badPrefix...)
	return append(reply, reason...)
}

// RemoteError is a BAD reply surfaced to the caller.
type RemoteError struct {
	Reason string
}

func (e *RemoteError) Error() string {
	return "wire: remote replied BAD: " + e.Reason
}

// ParseReply splits a reply frame. An OK reply yields its payload; a BAD
// reply yields a *RemoteError carrying the reason.
func ParseReply(frame []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(frame, okPrefix):
		return frame[len(okPrefix):], nil
	case bytes.HasPrefix(frame, badPrefix):
		return nil, &RemoteError{Reason: string(frame[len(badPrefix):])}
	default:
		return nil, fmt.Errorf("wire: malformed reply %q", frame)
	}
}

// Frame I/O
//
// Each frame is a 4-byte big-endian length followed by that many bytes.
// This replaces the one-read-equals-one-frame assumption of the protocol's
// ancestry: frames survive TCP segmentation and may exceed a single read.

// ReadFrame reads exactly one frame from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(header[:])
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	frame := make([]byte, n)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// WriteFrame writes exactly one frame to w.
func WriteFrame(w io.Writer, frame []byte) error {
	if len(frame) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	var header [4]byte
	//nolint:gosec // G115: length is bounded by MaxFrameSize
	binary.BigEndian.PutUint32(header[:], uint32(len(frame)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(frame)
	return err
}
