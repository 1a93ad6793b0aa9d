package peer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"

	"github.com/fabricionaweb/pico-share/mux"
	"github.com/fabricionaweb/pico-share/wire"
)

// DefaultFilePort is the port every peer's file server listens on.
const DefaultFilePort = 12010

// FileServer answers GET_FILE requests against the local store. It runs on
// its own mux instance, independent of the orchestrator's tracker
// connection, and only ever replies on the connection that asked: it never
// dials out and never touches tracker state.
type FileServer struct {
	store *Store
}

// NewFileServer creates a file server over store.
func NewFileServer(store *Store) *FileServer {
	return &FileServer{store: store}
}

// ServeFrame is the file server's mux handler.
func (f *FileServer) ServeFrame(remote string, frame []byte) []byte {
	req, err := wire.ParseRequest(frame)
	if err != nil || req.Cmd != wire.CmdGetFile {
		debug("unsupported frame from %s: %q", remote, frame)
		return wire.Bad(wire.ReasonUnsupported)
	}

	content, err := f.store.Read(req.Name)
	if err != nil {
		// A name the store refuses to touch reads the same as a missing
		// file from the outside.
		if !errors.Is(err, ErrBadName) && !errors.Is(err, fs.ErrNotExist) {
			info("failed to read %q: %v", req.Name, err)
		}
		return wire.Bad(wire.ReasonNotFound)
	}

	if len(content) > wire.MaxPayloadSize {
		info("refusing %q: %d bytes exceeds the frame budget", req.Name, len(content))
		return wire.Bad(wire.ReasonNotFound)
	}

	info("served %q (%d bytes) to %s", req.Name, len(content), remote)
	return wire.OK(content)
}

// Run listens on port and serves files until ctx cancellation.
func (f *FileServer) Run(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	info("File server listening on %s", ln.Addr())
	return f.Serve(ctx, ln)
}

// Serve runs the file server over an existing listener.
func (f *FileServer) Serve(ctx context.Context, ln net.Listener) error {
	return mux.New(f.ServeFrame).Serve(ctx, ln)
}
