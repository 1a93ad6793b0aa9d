package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fabricionaweb/pico-share/tracker"
)

var version = "dev"

//nolint:govet // Field alignment is acceptable
type config struct {
	port          int
	whitelistPath string
	showVersion   bool
	debug         bool
}

// parseFlags parses command-line flags and returns configuration.
// Default values are read from environment variables:
//   - PICO_SHARE__PORT: default port (must be > 0)
//   - PICO_SHARE__WHITELIST: path to a file-name whitelist
//   - DEBUG: enables debug mode if set
func parseFlags(args []string) config {
	defaultPort := tracker.DefaultPort
	if p, err := strconv.Atoi(os.Getenv("PICO_SHARE__PORT")); err == nil && p > 0 {
		defaultPort = p
	}

	defaultWhitelist := os.Getenv("PICO_SHARE__WHITELIST")
	debugDefault := os.Getenv("DEBUG") != ""

	fs := flag.NewFlagSet("pico-share-tracker", flag.ExitOnError)
	port := fs.Int("port", defaultPort, "port to listen on [env PICO_SHARE__PORT]")
	fs.IntVar(port, "p", defaultPort, "alias to -port")

	whitelist := fs.String("whitelist", defaultWhitelist,
		"path to whitelist file restricting registrable file names [env PICO_SHARE__WHITELIST]")
	fs.StringVar(whitelist, "w", defaultWhitelist, "alias to -whitelist")

	debug := fs.Bool("debug", debugDefault, "enable debug logs [env DEBUG]")
	fs.BoolVar(debug, "d", debugDefault, "alias to -debug")

	showVersion := fs.Bool("version", false, "print version")
	fs.BoolVar(showVersion, "v", false, "alias to -version")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "\nPico Share Tracker: %s\nPeer-to-peer file-sharing tracker (TCP)\n\n", version)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}

	// With ExitOnError, flag package exits on error
	//nolint:errcheck // Parsing error will exit
	_ = fs.Parse(args)

	return config{
		port:          *port,
		whitelistPath: *whitelist,
		showVersion:   *showVersion,
		debug:         *debug,
	}
}

// setupSignalHandling creates a context that cancels on SIGINT/SIGTERM
func setupSignalHandling() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	cfg := parseFlags(os.Args[1:])

	if cfg.showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	tracker.SetDebug(cfg.debug)
	log.Printf("[INFO] Starting Pico Share Tracker: %s", version)

	srv := tracker.NewServer(tracker.Config{
		Port:          cfg.port,
		WhitelistPath: cfg.whitelistPath,
	})

	ctx, stop := setupSignalHandling()
	defer stop()

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("[ERROR] Tracker error: %v", err)
	}
	log.Printf("[INFO] Tracker stopped")
}
