// handlers.go implements the VQF.* command family. Each handler hashes its
// key argument at this boundary with xxhash: the core filter operates on
// hashes, not keys, so the server owns the key-to-hash mapping.
package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"vqf.sievelabs.dev/internal/vqf"
)

// hashKey turns key into a hash in the filter's addressable range. The
// filter's primary-bucket addressing is unbounded on its own — only the
// alternate bucket gets reduced internally — so every hash reaching
// InsertVal/Remove/IsPresent/Query/QueryAll must already be less than
// RangeBuckets()<<TagBits, or indexing a block panics.
func (app *application) hashKey(key string) uint64 {
	hashSpace := app.filter.RangeBuckets() << vqf.TagBits
	return xxhash.Sum64String(key) % hashSpace
}

// handlePing replies PONG, ignoring any arguments.
func (app *application) handlePing(w io.Writer, args []string) {
	_ = app.writeSimpleStringResponse(w, "PONG")
}

// handleQuit acknowledges the client's intent to disconnect; the
// connection handler closes the socket once this reply is flushed.
func (app *application) handleQuit(w io.Writer, args []string) {
	_ = app.writeSimpleStringResponse(w, "OK")
}

// handleInsert handles VQF.INSERT key.
func (app *application) handleInsert(w io.Writer, args []string) {
	if len(args) != 1 {
		app.wrongNumberOfArgsResponse(w, "VQF.INSERT")
		return
	}
	app.insertVal(w, args[0], 0, "VQF.INSERT")
}

// handleInsertVal handles VQF.INSERTVAL key val.
func (app *application) handleInsertVal(w io.Writer, args []string) {
	if len(args) != 2 {
		app.wrongNumberOfArgsResponse(w, "VQF.INSERTVAL")
		return
	}
	val, err := strconv.ParseUint(args[1], 10, 8)
	if err != nil {
		app.badValueResponse(w, "VQF.INSERTVAL")
		return
	}
	app.insertVal(w, args[0], uint8(val), "VQF.INSERTVAL")
}

func (app *application) insertVal(w io.Writer, key string, val uint8, commandName string) {
	ok := app.filter.InsertVal(app.hashKey(key), val)
	outcome := "full"
	if ok {
		outcome = "ok"
	}
	app.metrics.insertsTotal.WithLabelValues(outcome).Inc()

	if !ok {
		_ = app.writeErrorResponse(w, "ERR filter is full")
		return
	}
	_ = app.writeSimpleStringResponse(w, "OK")
}

// handleRemove handles VQF.REMOVE key.
func (app *application) handleRemove(w io.Writer, args []string) {
	if len(args) != 1 {
		app.wrongNumberOfArgsResponse(w, "VQF.REMOVE")
		return
	}
	if app.filter.Remove(app.hashKey(args[0])) {
		app.metrics.removesTotal.Inc()
		_ = app.writeIntegerResponse64(w, 1)
		return
	}
	_ = app.writeIntegerResponse64(w, 0)
}

// handleExists handles VQF.EXISTS key.
func (app *application) handleExists(w io.Writer, args []string) {
	if len(args) != 1 {
		app.wrongNumberOfArgsResponse(w, "VQF.EXISTS")
		return
	}
	present := app.filter.IsPresent(app.hashKey(args[0]))
	app.recordQueryOutcome(present)
	if present {
		_ = app.writeIntegerResponse64(w, 1)
		return
	}
	_ = app.writeIntegerResponse64(w, 0)
}

// handleQuery handles VQF.QUERY key.
func (app *application) handleQuery(w io.Writer, args []string) {
	if len(args) != 1 {
		app.wrongNumberOfArgsResponse(w, "VQF.QUERY")
		return
	}
	val, ok := app.filter.Query(app.hashKey(args[0]))
	app.recordQueryOutcome(ok)
	if !ok {
		_ = app.writeNilResponse(w)
		return
	}
	_ = app.writeIntegerResponse64(w, int64(val))
}

// handleQueryAll handles VQF.QUERYALL key.
func (app *application) handleQueryAll(w io.Writer, args []string) {
	if len(args) != 1 {
		app.wrongNumberOfArgsResponse(w, "VQF.QUERYALL")
		return
	}
	vals, ok := app.filter.QueryAll(app.hashKey(args[0]))
	app.recordQueryOutcome(ok)
	_ = app.writeIntegerListResponse(w, vals)
}

func (app *application) recordQueryOutcome(found bool) {
	outcome := "miss"
	if found {
		outcome = "hit"
	}
	app.metrics.queriesTotal.WithLabelValues(outcome).Inc()
}

// handleStats handles VQF.STATS: nelts, nslots, nblocks, load factor.
func (app *application) handleStats(w io.Writer, args []string) {
	f := app.filter
	s := fmt.Sprintf("nelts=%d nslots=%d nblocks=%d range=%d fill_factor=%.4f",
		f.Len(), f.NSlots(), f.NumBlocks(), f.RangeBuckets(), f.FillFactor())
	_ = app.writeSimpleStringResponse(w, s)
}
