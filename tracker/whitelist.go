package tracker

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

const whitelistRefreshInterval = 5 * time.Minute

// loadWhitelistFile reads the whitelist file and returns the set of allowed
// file names. Empty lines and lines starting with # are ignored.
func loadWhitelistFile(path string) map[string]struct{} {
	//nolint:gosec // Path is controlled by admin
	file, err := os.Open(path)
	if err != nil {
		info("failed to open whitelist file: %v", err)
		return make(map[string]struct{}) // Fail-closed: empty set blocks all
	}
	//nolint:errcheck // File close errors ignored during read
	defer file.Close()

	names := make(map[string]struct{})
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names[line] = struct{}{}
	}

	if err := scanner.Err(); err != nil {
		info("error reading whitelist file: %v", err)
	}

	return names
}

// startWhitelistManager loads the whitelist and begins a goroutine that
// reloads it when the file changes. The manager stops when ctx is canceled.
func startWhitelistManager(ctx context.Context, path string, whitelist *atomic.Pointer[map[string]struct{}]) {
	data := loadWhitelistFile(path)
	whitelist.Store(&data)
	info("loaded %d names from whitelist", len(data))

	go func() {
		var lastMod time.Time
		if fi, err := os.Stat(path); err == nil {
			lastMod = fi.ModTime()
		}

		ticker := time.NewTicker(whitelistRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fi, err := os.Stat(path)
				if err != nil {
					info("failed to stat whitelist file: %v", err)
					continue
				}

				if fi.ModTime() != lastMod {
					data := loadWhitelistFile(path)
					whitelist.Store(&data)
					lastMod = fi.ModTime()
					info("reloaded whitelist: %d names", len(data))
				}
			}
		}
	}()
}

// isWhitelisted checks whether a file name may be registered.
// If the whitelist was never configured (pointer is nil), every name is
// allowed (public mode). A configured but empty whitelist blocks all.
func (s *Server) isWhitelisted(name string) bool {
	m := s.whitelist.Load()
	if m == nil {
		return true // Public mode - whitelist not configured
	}
	_, ok := (*m)[name]
	return ok
}
