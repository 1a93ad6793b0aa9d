package peer

import (
	"bytes"
	"testing"

	"github.com/fabricionaweb/pico-share/wire"
)

func TestServeFrame_GetFile(t *testing.T) {
	s := newStore(t)
	content := []byte("file payload \x00 with binary bytes")
	if err := s.Write("x.txt", content); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	fsrv := NewFileServer(s)
	reply := fsrv.ServeFrame("10.0.0.9", []byte("GET_FILE x.txt"))

	payload, err := wire.ParseReply(reply)
	if err != nil {
		t.Fatalf("reply = %q, want OK: %v", reply, err)
	}
	if !bytes.Equal(payload, content) {
		t.Errorf("payload = %q, want %q", payload, content)
	}
}

func TestServeFrame_GetFileMissing(t *testing.T) {
	fsrv := NewFileServer(newStore(t))

	got := string(fsrv.ServeFrame("10.0.0.9", []byte("GET_FILE missing.txt")))
	want := "BAD " + wire.ReasonNotFound
	if got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestServeFrame_GetFileEscapingName(t *testing.T) {
	// Names that would leave the shared folder read as missing files.
	fsrv := NewFileServer(newStore(t))

	want := "BAD " + wire.ReasonNotFound
	for _, frame := range []string{"GET_FILE ../secret", "GET_FILE .manifest"} {
		if got := string(fsrv.ServeFrame("10.0.0.9", []byte(frame))); got != want {
			t.Errorf("reply to %q = %q, want %q", frame, got, want)
		}
	}
}

func TestServeFrame_GetFileOversized(t *testing.T) {
	// Content that cannot fit in one OK reply frame is refused rather than
	// tearing down the connection on an oversized write.
	s := newStore(t)
	if err := s.Write("big.dat", make([]byte, wire.MaxPayloadSize+1)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	fsrv := NewFileServer(s)
	got := string(fsrv.ServeFrame("10.0.0.9", []byte("GET_FILE big.dat")))
	want := "BAD " + wire.ReasonNotFound
	if got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestServeFrame_NonGetFileUnsupported(t *testing.T) {
	// The file server speaks exactly one command; registry commands and
	// garbage alike are refused.
	fsrv := NewFileServer(newStore(t))

	want := "BAD " + wire.ReasonUnsupported
	for _, frame := range []string{"ADD a.txt", "LIST_FILES", "GET_PEER a.txt", "nonsense", ""} {
		if got := string(fsrv.ServeFrame("10.0.0.9", []byte(frame))); got != want {
			t.Errorf("reply to %q = %q, want %q", frame, got, want)
		}
	}
}
