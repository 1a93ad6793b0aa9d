// Package tracker implements the file registry and the server that exposes
// it over the wire protocol.
package tracker

import (
	"log"
	"math/rand"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fabricionaweb/pico-share/wire"
)

// debugEnabled is an atomic boolean for thread-safe debug toggle
var debugEnabled atomic.Bool

// SetDebug enables or disables debug logging for this package.
func SetDebug(on bool) {
	debugEnabled.Store(on)
}

func debug(format string, v ...any) {
	if debugEnabled.Load() {
		log.Printf("[DEBUG] "+format, v...)
	}
}

func info(format string, v ...any) {
	log.Printf("[INFO] "+format, v...)
}

// Registry maps file names to the set of peer addresses known to hold them.
//
// All mutation and lookup happens through ServeFrame on a single mux loop
// goroutine, so no locking is needed; constructing a Registry and touching
// it from several goroutines is not supported.
//
// A file name stays in the registry once added, even after its holder set
// empties: a holder-less file remains listable, and GET_PEER on it reports
// that no peer has it.
type Registry struct {
	files map[string]map[string]struct{}

	// allow vets file names on ADD. nil means every name is allowed.
	allow func(name string) bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{files: make(map[string]map[string]struct{})}
}

// Add records holder for name. Set semantics: adding the same holder twice
// is a no-op.
func (r *Registry) Add(name, holder string) {
	holders, ok := r.files[name]
	if !ok {
		holders = make(map[string]struct{})
		r.files[name] = holders
	}
	holders[holder] = struct{}{}
}

// Remove forgets holder for name. It reports whether holder was actually
// recorded; the name itself is never deleted.
func (r *Registry) Remove(name, holder string) bool {
	holders, ok := r.files[name]
	if !ok {
		return false
	}
	if _, ok := holders[holder]; !ok {
		return false
	}
	delete(holders, holder)
	return true
}

// Pick returns one of name's holders uniformly at random.
func (r *Registry) Pick(name string) (string, bool) {
	holders := r.files[name]
	if len(holders) == 0 {
		return "", false
	}

	candidates := make([]string, 0, len(holders))
	for h := range holders {
		candidates = append(candidates, h)
	}
	//nolint:gosec // G404: math/rand is fine for holder selection
	return candidates[rand.Intn(len(candidates))], true
}

// Names returns every known file name, sorted byte-wise. Map iteration
// order is randomized in Go, so listings are sorted to stay stable.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.files))
	for name := range r.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServeFrame interprets one request frame on behalf of the peer at remote
// and returns the reply frame. It is the tracker's mux handler.
func (r *Registry) ServeFrame(remote string, frame []byte) []byte {
	req, err := wire.ParseRequest(frame)
	if err != nil {
		debug("malformed frame from %s: %q", remote, frame)
		return wire.Bad(wire.ReasonUnsupported)
	}

	switch req.Cmd {
	case wire.CmdAdd:
		if r.allow != nil && !r.allow(req.Name) {
			info("refused %q from %s: not in whitelist", req.Name, remote)
			return wire.Bad(wire.ReasonNotAllowed)
		}
		r.Add(req.Name, remote)
		info("%q has new peer: %s", req.Name, remote)
		return wire.OK(nil)

	case wire.CmdRemove:
		if !r.Remove(req.Name, remote) {
			return wire.Bad(wire.ReasonNotFound)
		}
		info("%q removed peer: %s", req.Name, remote)
		return wire.OK(nil)

	case wire.CmdGetPeer:
		holder, ok := r.Pick(req.Name)
		if !ok {
			return wire.Bad(wire.ReasonNotFound)
		}
		debug("resolved %q to %s for %s", req.Name, holder, remote)
		return wire.OK([]byte(holder))

	case wire.CmdListFiles:
		return wire.OK([]byte(strings.Join(r.Names(), wire.ListSeparator)))

	default:
		// GET_FILE is a peer-to-peer command; the tracker does not serve
		// file contents.
		return wire.Bad(wire.ReasonUnsupported)
	}
}
