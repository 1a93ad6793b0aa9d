package tracker

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/fabricionaweb/pico-share/mux"
)

// DefaultPort is the port the tracker listens on.
const DefaultPort = 12000

// Config carries the tracker's runtime settings.
type Config struct {
	// WhitelistPath, when non-empty, restricts ADD to the file names
	// listed in that file.
	WhitelistPath string
	Port          int
}

// Server wires a Registry, an accept limiter and the optional whitelist
// into one connection multiplexer.
type Server struct {
	reg       *Registry
	limiter   *ipLimiter
	whitelist atomic.Pointer[map[string]struct{}]
	cfg       Config
}

// NewServer creates and initializes a new server instance.
func NewServer(cfg Config) *Server {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	s := &Server{
		cfg:     cfg,
		reg:     NewRegistry(),
		limiter: newIPLimiter(connRate, connBurst),
	}
	s.reg.allow = s.allowName
	return s
}

// allowName is the registry's ADD filter. It stays permissive until a
// whitelist is configured.
func (s *Server) allowName(name string) bool {
	return s.isWhitelisted(name)
}

// Run listens on the configured port and serves until ctx cancellation.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	info("Tracker listening on %s", ln.Addr())
	return s.Serve(ctx, ln)
}

// Serve runs the tracker over an existing listener, which it takes
// ownership of. Split from Run so tests can listen on an ephemeral port.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.WhitelistPath != "" {
		startWhitelistManager(ctx, s.cfg.WhitelistPath, &s.whitelist)
	}

	done := make(chan struct{})
	defer close(done)
	go s.limiter.pruneLoop(done)

	m := mux.New(s.reg.ServeFrame, mux.WithAcceptFilter(s.acceptConn))
	return m.Serve(ctx, ln)
}

func (s *Server) acceptConn(remote string) bool {
	if !s.limiter.Allow(remote) {
		info("rate limited connection from %s", remote)
		return false
	}
	debug("%s connected", remote)
	return true
}
