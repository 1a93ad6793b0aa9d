package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fabricionaweb/pico-share/peer"
	"github.com/fabricionaweb/pico-share/tracker"
)

var version = "dev"

//nolint:govet // Field alignment is acceptable
type config struct {
	trackerHost string
	host        string
	folder      string
	filePort    int
	trackerPort int
	showVersion bool
	debug       bool
}

// parseFlags parses command-line flags and returns configuration.
// Default values are read from environment variables:
//   - PICO_SHARE__TRACKER: tracker host
//   - PICO_SHARE__HOST: local address to pin outbound connections to
//   - PICO_SHARE__FOLDER: shared folder
//   - PICO_SHARE__FILE_PORT: port the file server listens on
//   - DEBUG: enables debug mode if set
func parseFlags(args []string) config {
	defaultTracker := os.Getenv("PICO_SHARE__TRACKER")
	if defaultTracker == "" {
		defaultTracker = "localhost"
	}

	defaultFolder := os.Getenv("PICO_SHARE__FOLDER")
	if defaultFolder == "" {
		defaultFolder = "Files"
	}

	defaultHost := os.Getenv("PICO_SHARE__HOST")

	defaultFilePort := peer.DefaultFilePort
	if p, err := strconv.Atoi(os.Getenv("PICO_SHARE__FILE_PORT")); err == nil && p > 0 {
		defaultFilePort = p
	}

	debugDefault := os.Getenv("DEBUG") != ""

	fs := flag.NewFlagSet("pico-share-peer", flag.ExitOnError)
	trackerHost := fs.String("tracker", defaultTracker, "tracker host [env PICO_SHARE__TRACKER]")
	fs.StringVar(trackerHost, "t", defaultTracker, "alias to -tracker")

	host := fs.String("host", defaultHost,
		"local address to pin the tracker connection to [env PICO_SHARE__HOST]")

	folder := fs.String("folder", defaultFolder, "shared folder [env PICO_SHARE__FOLDER]")
	fs.StringVar(folder, "f", defaultFolder, "alias to -folder")

	filePort := fs.Int("file-port", defaultFilePort,
		"port the file server listens on [env PICO_SHARE__FILE_PORT]")

	trackerPort := fs.Int("tracker-port", tracker.DefaultPort, "tracker port")

	debug := fs.Bool("debug", debugDefault, "enable debug logs [env DEBUG]")
	fs.BoolVar(debug, "d", debugDefault, "alias to -debug")

	showVersion := fs.Bool("version", false, "print version")
	fs.BoolVar(showVersion, "v", false, "alias to -version")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "\nPico Share Peer: %s\nPeer-to-peer file-sharing peer\n\n", version)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}

	// With ExitOnError, flag package exits on error
	//nolint:errcheck // Parsing error will exit
	_ = fs.Parse(args)

	return config{
		trackerHost: *trackerHost,
		host:        *host,
		folder:      *folder,
		filePort:    *filePort,
		trackerPort: *trackerPort,
		showVersion: *showVersion,
		debug:       *debug,
	}
}

func main() {
	cfg := parseFlags(os.Args[1:])

	if cfg.showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	peer.SetDebug(cfg.debug)

	store, err := peer.OpenStore(cfg.folder)
	if err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
	if err := store.WriteManifest(); err != nil {
		log.Printf("[WARN] Failed to write manifest: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The inbound file server runs on its own mux in the background; the
	// foreground belongs to the interactive loop.
	go func() {
		if err := peer.NewFileServer(store).Run(ctx, cfg.filePort); err != nil && ctx.Err() == nil {
			log.Fatalf("[ERROR] File server error: %v", err)
		}
	}()

	trackerAddr := net.JoinHostPort(cfg.trackerHost, strconv.Itoa(cfg.trackerPort))
	orch, err := peer.Connect(trackerAddr, store, cfg.filePort, cfg.host)
	if err != nil {
		log.Fatalf("[ERROR] %v", err)
	}

	if err := interact(orch, os.Stdin); err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
}

// interact runs the command loop: "ls" lists downloadable files and prompts
// for an index to fetch, "close" retracts everything and exits. A tracker
// transport failure is fatal and surfaces as the returned error.
func interact(orch *peer.Orchestrator, in *os.File) error {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return orch.Close()
		}

		switch scanner.Text() {
		case "ls":
			if err := list(orch, scanner); err != nil {
				return err
			}
		case "close":
			return orch.Close()
		default:
			fmt.Println("Invalid command, valid commands are: ls, close")
		}
	}
}

func list(orch *peer.Orchestrator, scanner *bufio.Scanner) error {
	available, err := orch.ListRemote()
	if err != nil {
		return err
	}
	if len(available) == 0 {
		fmt.Println("No new files")
		return nil
	}

	for i, name := range available {
		fmt.Printf("%d\t%s\n", i, name)
	}

	var index int
	for {
		fmt.Print("Index of the file to download> ")
		if !scanner.Scan() {
			return nil
		}
		i, err := strconv.Atoi(scanner.Text())
		if err != nil || i < 0 || i >= len(available) {
			fmt.Printf("Invalid index. Select a number between 0 and %d\n", len(available)-1)
			continue
		}
		index = i
		break
	}

	name := available[index]
	switch err := orch.Fetch(name); {
	case err == nil:
		fmt.Println("The file has been downloaded.")
		return nil
	case errors.Is(err, peer.ErrNoHolder), errors.Is(err, peer.ErrDownloadFailed):
		fmt.Println("Download failed")
		return nil
	default:
		// Anything else is a tracker transport failure.
		return err
	}
}
