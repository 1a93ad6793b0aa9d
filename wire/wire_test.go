package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseRequest_Add(t *testing.T) {
	req, err := ParseRequest([]byte("ADD a.txt"))
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}
	if req.Cmd != CmdAdd {
		t.Errorf("Cmd = %v, want CmdAdd", req.Cmd)
	}
	if req.Name != "a.txt" {
		t.Errorf("Name = %q, want %q", req.Name, "a.txt")
	}
}

func TestParseRequest_ListFiles(t *testing.T) {
	req, err := ParseRequest([]byte("LIST_FILES"))
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}
	if req.Cmd != CmdListFiles {
		t.Errorf("Cmd = %v, want CmdListFiles", req.Cmd)
	}
	if req.Name != "" {
		t.Errorf("Name = %q, want empty", req.Name)
	}
}

func TestParseRequest_ArgumentKeepsSpaces(t *testing.T) {
	// The argument is the remainder of the frame, structure-free.
	req, err := ParseRequest([]byte("GET_FILE my report.txt"))
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}
	if req.Name != "my report.txt" {
		t.Errorf("Name = %q, want %q", req.Name, "my report.txt")
	}
}

func TestParseRequest_UnknownCommand(t *testing.T) {
	for _, frame := range []string{"DELETE a.txt", "add a.txt", "", "OK hi"} {
		if _, err := ParseRequest([]byte(frame)); !errors.Is(err, ErrMalformed) {
			t.Errorf("ParseRequest(%q) err = %v, want ErrMalformed", frame, err)
		}
	}
}

func TestParseRequest_MissingArgument(t *testing.T) {
	for _, frame := range []string{"ADD", "REMOVE", "GET_PEER", "GET_FILE", "ADD "} {
		if _, err := ParseRequest([]byte(frame)); !errors.Is(err, ErrMalformed) {
			t.Errorf("ParseRequest(%q) err = %v, want ErrMalformed", frame, err)
		}
	}
}

func TestParseRequest_UnexpectedArgument(t *testing.T) {
	if _, err := ParseRequest([]byte("LIST_FILES now")); !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestEncodeRequest_RoundTrip(t *testing.T) {
	for _, tc := range []struct {
		cmd  Command
		name string
	}{
		{CmdAdd, "a.txt"},
		{CmdRemove, "b.bin"},
		{CmdGetPeer, "x.txt"},
		{CmdGetFile, "with space.txt"},
		{CmdListFiles, ""},
	} {
		req, err := ParseRequest(EncodeRequest(tc.cmd, tc.name))
		if err != nil {
			t.Fatalf("round trip %v %q failed: %v", tc.cmd, tc.name, err)
		}
		if req.Cmd != tc.cmd || req.Name != tc.name {
			t.Errorf("round trip = {%v %q}, want {%v %q}", req.Cmd, req.Name, tc.cmd, tc.name)
		}
	}
}

func TestOK_EmptyPayload(t *testing.T) {
	if got := string(OK(nil)); got != "OK " {
		t.Errorf("OK(nil) = %q, want %q", got, "OK ")
	}
}

func TestParseReply_OK(t *testing.T) {
	payload, err := ParseReply(OK([]byte("192.168.1.7")))
	if err != nil {
		t.Fatalf("ParseReply failed: %v", err)
	}
	if string(payload) != "192.168.1.7" {
		t.Errorf("payload = %q, want %q", payload, "192.168.1.7")
	}
}

func TestParseReply_OKEmpty(t *testing.T) {
	payload, err := ParseReply([]byte("OK "))
	if err != nil {
		t.Fatalf("ParseReply failed: %v", err)
	}
	if len(payload) != 0 {
		t.Errorf("payload = %q, want empty", payload)
	}
}

func TestParseReply_Bad(t *testing.T) {
	_, err := ParseReply(Bad(ReasonNotFound))

	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("err = %v, want *RemoteError", err)
	}
	if remote.Reason != ReasonNotFound {
		t.Errorf("Reason = %q, want %q", remote.Reason, ReasonNotFound)
	}
}

func TestParseReply_Malformed(t *testing.T) {
	for _, frame := range []string{"", "OK", "BAD", "NOPE x"} {
		if _, err := ParseReply([]byte(frame)); err == nil {
			t.Errorf("ParseReply(%q) succeeded, want error", frame)
		}
	}
}

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer

	frames := [][]byte{
		[]byte("ADD a.txt"),
		{}, // empty frame is legal on the wire
		bytes.Repeat([]byte{0xAB}, 4096), // binary payload
	}
	for _, f := range frames {
		if err := WriteFrame(&buf, f); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}

	for i, want := range frames {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame #%d failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame #%d = %d bytes, want %d bytes", i, len(got), len(want))
		}
	}
}

func TestWriteFrame_TooLarge(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, make([]byte, MaxFrameSize+1))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("err = %v, want ErrFrameTooLarge", err)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes for rejected frame, want 0", buf.Len())
	}
}

func TestReadFrame_TooLarge(t *testing.T) {
	// Header declares a length over the cap; no payload should be read.
	header := []byte{0x7F, 0xFF, 0xFF, 0xFF}
	_, err := ReadFrame(bytes.NewReader(header))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("err = %v, want ErrFrameTooLarge", err)
	}
}

func TestReadFrame_Truncated(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("LIST_FILES")); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	truncated := buf.Bytes()[:buf.Len()-3]
	if _, err := ReadFrame(bytes.NewReader(truncated)); err == nil {
		t.Error("ReadFrame succeeded on truncated input, want error")
	}
}
