// Tracker Benchmark Tool
// Simulates concurrent peers to test tracker performance
//
// Usage: go run benchmark/main.go -target localhost:12000 -duration 30s -concurrency 100

package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fabricionaweb/pico-share/wire"
)

const responseTimeout = 5 * time.Second

// LatencyStats stores latencies for a specific operation type (add/resolve/list)
type LatencyStats struct {
	Latencies []time.Duration
	Mu        sync.Mutex
}

func (l *LatencyStats) Record(d time.Duration) {
	l.Mu.Lock()
	l.Latencies = append(l.Latencies, d)
	l.Mu.Unlock()
}

func (l *LatencyStats) getSorted() []time.Duration {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	if len(l.Latencies) == 0 {
		return nil
	}
	sorted := make([]time.Duration, len(l.Latencies))
	copy(sorted, l.Latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted
}

func (l *LatencyStats) Percentile(p float64) time.Duration {
	sorted := l.getSorted()
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * p / 100.0)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func (l *LatencyStats) Avg() time.Duration {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	if len(l.Latencies) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range l.Latencies {
		sum += d
	}
	return sum / time.Duration(len(l.Latencies))
}

func (l *LatencyStats) Count() int {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	return len(l.Latencies)
}

type Stats struct {
	AddLatency     LatencyStats
	ResolveLatency LatencyStats
	ListLatency    LatencyStats
	TotalRequests  uint64
	SuccessfulReqs uint64
	FailedReqs     uint64
}

type Config struct {
	Target      string
	Duration    time.Duration
	Concurrency int
	NumFiles    int
	RateLimit   int
}

type Benchmark struct {
	StopCh chan struct{}
	Config Config
	Stats  Stats
}

func NewBenchmark(cfg Config) *Benchmark {
	return &Benchmark{
		StopCh: make(chan struct{}),
		Config: cfg,
	}
}

func (b *Benchmark) Run() {
	start := time.Now()

	fmt.Printf("Starting benchmark...\n")
	fmt.Printf("Target: %s\n", b.Config.Target)
	fmt.Printf("Duration: %s\n", b.Config.Duration)
	fmt.Printf("Concurrency: %d\n", b.Config.Concurrency)
	fmt.Printf("Files per worker: %d\n", b.Config.NumFiles)
	fmt.Println()

	var wg sync.WaitGroup
	for i := 0; i < b.Config.Concurrency; i++ {
		wg.Add(1)
		go b.worker(i, &wg)
	}

	time.Sleep(b.Config.Duration)
	close(b.StopCh)
	wg.Wait()
	b.printResults(time.Since(start))
}

func (b *Benchmark) worker(id int, wg *sync.WaitGroup) {
	defer wg.Done()

	// One persistent connection per worker, mirroring how a real peer's
	// orchestrator talks to the tracker.
	conn, err := net.Dial("tcp", b.Config.Target)
	if err != nil {
		log.Printf("Worker %d: failed to connect: %v", id, err)
		return
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			log.Printf("Worker %d: failed to close connection: %v", id, closeErr)
		}
	}()

	if err = conn.SetDeadline(time.Now().Add(b.Config.Duration + responseTimeout)); err != nil {
		log.Printf("Worker %d: failed to set deadline: %v", id, err)
		return
	}

	var rateLimiter *time.Ticker
	if b.Config.RateLimit > 0 {
		rateLimiter = time.NewTicker(time.Second / time.Duration(b.Config.RateLimit))
		defer rateLimiter.Stop()
	}

	files := make([]string, b.Config.NumFiles)
	for i := range files {
		files[i] = fmt.Sprintf("bench-%d-%d.dat", id, i)
	}

	for {
		select {
		case <-b.StopCh:
			return
		default:
		}

		if rateLimiter != nil {
			<-rateLimiter.C
		}

		b.performCycle(conn, files)
	}
}

// performCycle adds every file, resolves a holder for each, then lists once
func (b *Benchmark) performCycle(conn net.Conn, files []string) {
	for _, file := range files {
		select {
		case <-b.StopCh:
			return
		default:
		}

		b.timedCall(conn, wire.EncodeRequest(wire.CmdAdd, file), &b.Stats.AddLatency)
		b.timedCall(conn, wire.EncodeRequest(wire.CmdGetPeer, file), &b.Stats.ResolveLatency)
	}
	b.timedCall(conn, wire.EncodeRequest(wire.CmdListFiles, ""), &b.Stats.ListLatency)
}

func (b *Benchmark) timedCall(conn net.Conn, req []byte, lat *LatencyStats) {
	atomic.AddUint64(&b.Stats.TotalRequests, 1)

	start := time.Now()
	if err := wire.WriteFrame(conn, req); err != nil {
		atomic.AddUint64(&b.Stats.FailedReqs, 1)
		return
	}
	reply, err := wire.ReadFrame(conn)
	if err != nil {
		atomic.AddUint64(&b.Stats.FailedReqs, 1)
		return
	}
	if _, err := wire.ParseReply(reply); err != nil {
		atomic.AddUint64(&b.Stats.FailedReqs, 1)
		return
	}

	lat.Record(time.Since(start))
	atomic.AddUint64(&b.Stats.SuccessfulReqs, 1)
}

func (b *Benchmark) printResults(elapsed time.Duration) {
	total := atomic.LoadUint64(&b.Stats.TotalRequests)
	success := atomic.LoadUint64(&b.Stats.SuccessfulReqs)
	failed := atomic.LoadUint64(&b.Stats.FailedReqs)

	fmt.Println()
	fmt.Println("=== Results ===")
	fmt.Printf("Elapsed: %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Total requests: %d (%.0f req/s)\n", total, float64(total)/elapsed.Seconds())
	fmt.Printf("Successful: %d\n", success)
	fmt.Printf("Failed: %d\n", failed)
	fmt.Println()

	for _, op := range []struct {
		name string
		lat  *LatencyStats
	}{
		{"ADD", &b.Stats.AddLatency},
		{"GET_PEER", &b.Stats.ResolveLatency},
		{"LIST_FILES", &b.Stats.ListLatency},
	} {
		fmt.Printf("%-10s count=%d avg=%s p50=%s p95=%s p99=%s\n",
			op.name, op.lat.Count(), op.lat.Avg().Round(time.Microsecond),
			op.lat.Percentile(50).Round(time.Microsecond),
			op.lat.Percentile(95).Round(time.Microsecond),
			op.lat.Percentile(99).Round(time.Microsecond))
	}
}

func main() {
	target := flag.String("target", "localhost:12000", "tracker address")
	duration := flag.Duration("duration", 30*time.Second, "benchmark duration")
	concurrency := flag.Int("concurrency", 100, "number of concurrent workers")
	numFiles := flag.Int("files", 10, "files announced per worker")
	rateLimit := flag.Int("rate", 0, "request cycles per second per worker (0 = unlimited)")
	flag.Parse()

	NewBenchmark(Config{
		Target:      *target,
		Duration:    *duration,
		Concurrency: *concurrency,
		NumFiles:    *numFiles,
		RateLimit:   *rateLimit,
	}).Run()
}
