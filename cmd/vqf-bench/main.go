// vqf-bench is a concurrent load-test driver for the internal/vqf filter:
// N workers hammer a shared filter for a fixed duration while atomic
// counters track totals, running in-process against a *vqf.Filter directly
// rather than over a network connection, fanned out with
// golang.org/x/sync/errgroup over a context deadline.
//
// Each worker inserts a stream of distinct keys (tagged with --val) up to
// the point the filter reports full, then spends the rest of its time
// querying a mix of keys it knows it inserted and keys it knows it never
// did, so the run can report an observed false-positive rate alongside
// throughput.
//
// Usage
//
//	vqf-bench --slots 1000000 --workers 8 --duration 5s --val 7
package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"vqf.sievelabs.dev/internal/vqf"
)

var (
	app      = kingpin.New("vqf-bench", "Drive a concurrent insert/query workload against a vector quotient filter.")
	slots    = app.Flag("slots", "Target filter capacity.").Default("1000000").Uint64()
	workers  = app.Flag("workers", "Number of concurrent worker goroutines.").Default("8").Int()
	duration = app.Flag("duration", "How long to run the benchmark.").Default("5s").Duration()
	val      = app.Flag("val", "8-bit payload value each worker attaches to its inserts.").Default("0").Uint8()
)

type result struct {
	inserted    int64
	refused     int64
	queries     int64
	falsePos    int64
	correctHits int64
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	f := vqf.New(*slots)
	fmt.Printf("filter: nslots=%d nblocks=%d range=%d\n", f.NSlots(), f.NumBlocks(), f.RangeBuckets())
	fmt.Printf("running %d workers for %s, payload val=%d\n", *workers, *duration, *val)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var agg result
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < *workers; w++ {
		w := w
		g.Go(func() error {
			r := runWorker(gctx, f, w, *val)
			atomic.AddInt64(&agg.inserted, r.inserted)
			atomic.AddInt64(&agg.refused, r.refused)
			atomic.AddInt64(&agg.queries, r.queries)
			atomic.AddInt64(&agg.falsePos, r.falsePos)
			atomic.AddInt64(&agg.correctHits, r.correctHits)
			return nil
		})
	}
	_ = g.Wait()

	totalOps := agg.inserted + agg.queries
	opsPerSec := float64(totalOps) / duration.Seconds()

	fmt.Printf("\nResults:\n")
	fmt.Printf("  inserts ok:      %d\n", agg.inserted)
	fmt.Printf("  inserts refused: %d\n", agg.refused)
	fmt.Printf("  queries run:     %d\n", agg.queries)
	fmt.Printf("  query hits:      %d\n", agg.correctHits)
	fmt.Printf("  false positives: %d\n", agg.falsePos)
	if agg.queries > 0 {
		fmt.Printf("  observed FPR:    %.4f%%\n", float64(agg.falsePos)/float64(agg.queries)*100)
	}
	fmt.Printf("  throughput:      %.0f ops/sec\n", opsPerSec)
	fmt.Printf("  final nelts:     %d (vs %d successful inserts across all workers)\n", f.Len(), agg.inserted)
}

// runWorker inserts a stream of distinct keys until the filter reports full
// or the context expires, then spends remaining time alternating queries
// between keys it knows are present and keys it knows are absent.
func runWorker(ctx context.Context, f *vqf.Filter, workerID int, val uint8) result {
	var r result
	var seq uint64
	present := make([]uint64, 0, 1024)

	// hashSpace bounds every hash handed to the filter: InsertVal/Query only
	// range-check the alternate bucket they derive from a hash, not the
	// primary one, so an unreduced digest can index past the end of the
	// filter's blocks.
	hashSpace := f.RangeBuckets() << vqf.TagBits
	nextHash := func() uint64 {
		var buf [16]byte
		buf[0] = byte(workerID)
		for i := 0; i < 8; i++ {
			buf[8+i] = byte(seq >> (8 * i))
		}
		seq++
		return xxhash.Sum64(buf[:]) % hashSpace
	}

	full := false
	for !full && ctx.Err() == nil {
		h := nextHash()
		if f.InsertVal(h, val) {
			r.inserted++
			present = append(present, h)
		} else {
			r.refused++
			full = true
		}
	}

	for ctx.Err() == nil {
		var h uint64
		wantHit := len(present) > 0 && r.queries%2 == 0
		if wantHit {
			h = present[r.queries%int64(len(present))]
		} else {
			h = nextHash()
		}

		_, ok := f.Query(h)
		r.queries++
		switch {
		case ok && wantHit:
			r.correctHits++
		case ok && !wantHit:
			r.falsePos++
		}
	}

	return r
}
