package peer

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/fabricionaweb/pico-share/wire"
)

// ErrNoHolder reports that the tracker knows no peer holding the file.
var ErrNoHolder = errors.New("peer: no holder for file")

// ErrDownloadFailed reports that the holder refused or could not serve the
// file; nothing was written locally.
var ErrDownloadFailed = errors.New("peer: download failed")

// Orchestrator drives the outbound side of a peer: one long-lived tracker
// connection used synchronously (one request, block for the full reply),
// plus short-lived connections to other peers for downloads.
//
// The orchestrator is single-caller by design: it belongs to the
// interactive foreground loop and is never shared with the file server's
// mux. Calls have no deadline; a hung tracker or holder hangs the caller.
type Orchestrator struct {
	store    *Store
	conn     net.Conn
	filePort int
}

// Connect dials the tracker and announces every local file. localIP, when
// non-empty, pins the source address of the tracker connection so the
// tracker records this peer under the right interface.
func Connect(trackerAddr string, store *Store, filePort int, localIP string) (*Orchestrator, error) {
	dialer := net.Dialer{}
	if localIP != "" {
		dialer.LocalAddr = &net.TCPAddr{IP: net.ParseIP(localIP)}
	}

	conn, err := dialer.Dial("tcp", trackerAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to reach tracker: %w", err)
	}

	o := &Orchestrator{store: store, conn: conn, filePort: filePort}

	names, err := store.List()
	if err != nil {
		conn.Close()
		return nil, err
	}
	for _, name := range names {
		if size, err := store.Size(name); err == nil && size > int64(wire.MaxPayloadSize) {
			// A file the frame budget cannot carry would be advertised
			// but never served; leave it local-only.
			info("not announcing %q: %d bytes exceeds the frame budget", name, size)
			continue
		}
		if err := o.Announce(name); err != nil {
			// A refused name (whitelist) is not fatal; a dead tracker
			// connection is.
			var remote *wire.RemoteError
			if errors.As(err, &remote) {
				info("tracker refused %q: %s", name, remote.Reason)
				continue
			}
			conn.Close()
			return nil, err
		}
	}
	info("Connected to tracker at %s, announced %d files", trackerAddr, len(names))
	return o, nil
}

// call performs one synchronous request/reply exchange with the tracker.
func (o *Orchestrator) call(req []byte) ([]byte, error) {
	if err := wire.WriteFrame(o.conn, req); err != nil {
		return nil, err
	}
	reply, err := wire.ReadFrame(o.conn)
	if err != nil {
		return nil, err
	}
	return wire.ParseReply(reply)
}

// Announce registers name with the tracker.
func (o *Orchestrator) Announce(name string) error {
	_, err := o.call(wire.EncodeRequest(wire.CmdAdd, name))
	return err
}

// Retract deregisters name with the tracker. Retracting a file the tracker
// never saw us hold is reported as a *wire.RemoteError.
func (o *Orchestrator) Retract(name string) error {
	_, err := o.call(wire.EncodeRequest(wire.CmdRemove, name))
	return err
}

// ListRemote returns the file names known to the tracker that are not in
// the local store.
func (o *Orchestrator) ListRemote() ([]string, error) {
	payload, err := o.call(wire.EncodeRequest(wire.CmdListFiles, ""))
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var wanted []string
	for _, name := range strings.Split(string(payload), wire.ListSeparator) {
		if !o.store.Has(name) {
			wanted = append(wanted, name)
		}
	}
	return wanted, nil
}

// Resolve asks the tracker for a holder of name. A BAD reply means no peer
// holds it and surfaces as ErrNoHolder.
func (o *Orchestrator) Resolve(name string) (string, error) {
	payload, err := o.call(wire.EncodeRequest(wire.CmdGetPeer, name))
	if err != nil {
		var remote *wire.RemoteError
		if errors.As(err, &remote) {
			return "", ErrNoHolder
		}
		return "", err
	}
	return string(payload), nil
}

// Download fetches name from holder over a fresh, short-lived connection,
// writes it to the local store and announces it to the tracker. On failure
// nothing is written.
func (o *Orchestrator) Download(holder, name string) error {
	addr := net.JoinHostPort(holder, strconv.Itoa(o.filePort))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer conn.Close()

	if err := wire.WriteFrame(conn, wire.EncodeRequest(wire.CmdGetFile, name)); err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	reply, err := wire.ReadFrame(conn)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	content, err := wire.ParseReply(reply)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	if err := o.store.Write(name, content); err != nil {
		// A name the store refuses, or a disk that will not take the
		// bytes, fails the download; the tracker connection is fine.
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	info("downloaded %q (%d bytes) from %s", name, len(content), holder)

	// The newly acquired file makes this peer a holder too. A tracker
	// refusal leaves it local-only; only a transport failure propagates.
	if err := o.Announce(name); err != nil {
		var remote *wire.RemoteError
		if errors.As(err, &remote) {
			info("tracker refused %q after download: %s", name, remote.Reason)
			return nil
		}
		return err
	}
	return nil
}

// Fetch resolves a holder for name and downloads from it. There is no
// retry: any failure ends the attempt.
func (o *Orchestrator) Fetch(name string) error {
	holder, err := o.Resolve(name)
	if err != nil {
		return err
	}
	return o.Download(holder, name)
}

// Close retracts every local file from the tracker and closes the tracker
// connection.
func (o *Orchestrator) Close() error {
	defer o.conn.Close()

	names, err := o.store.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := o.Retract(name); err != nil {
			var remote *wire.RemoteError
			if errors.As(err, &remote) {
				debug("tracker did not hold %q for us: %s", name, remote.Reason)
				continue
			}
			return err
		}
	}
	return nil
}
