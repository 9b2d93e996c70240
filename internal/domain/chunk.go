package domain

import "time"

// ChunkState describes the lifecycle stage of a time chunk of the
// price store: open (mutable), compressed (read-optimized, immutable),
// retired (dropped past the retention horizon).
type ChunkState int

const (
	ChunkOpen ChunkState = iota
	ChunkCompressed
	ChunkRetired
)

func (s ChunkState) String() string {
	switch s {
	case ChunkOpen:
		return "open"
	case ChunkCompressed:
		return "compressed"
	case ChunkRetired:
		return "retired"
	default:
		return "unknown"
	}
}

// Chunk is a contiguous time interval of price points. Boundaries are
// aligned to the chunk interval measured from the Unix epoch, so chunk
// assignment is a pure function of timestamp, never of insertion order.
type Chunk struct {
	Start time.Time // inclusive lower bound
	End   time.Time // exclusive upper bound
	State ChunkState
}

// Contains reports whether ts falls inside the chunk interval.
func (c Chunk) Contains(ts time.Time) bool {
	return !ts.Before(c.Start) && ts.Before(c.End)
}

// ChunkStart returns the inclusive lower boundary of the chunk that
// holds ts, for the given chunk interval.
func ChunkStart(ts time.Time, interval time.Duration) time.Time {
	secs := int64(interval / time.Second)
	if secs <= 0 {
		secs = 1
	}
	unix := ts.Unix()
	start := (unix / secs) * secs
	if unix < 0 && unix%secs != 0 {
		start -= secs
	}
	return time.Unix(start, 0).UTC()
}

// ChunkFor returns the chunk interval holding ts with the state it is
// eligible for at now. Eligibility is measured on the chunk's upper
// boundary: a chunk whose newest possible point is older than
// compressAfter is due for compression, older than retainFor for
// retirement. Actual transitions are applied by the lifecycle manager.
func ChunkFor(ts, now time.Time, interval, compressAfter, retainFor time.Duration) Chunk {
	start := ChunkStart(ts, interval)
	end := start.Add(interval)
	c := Chunk{Start: start, End: end, State: ChunkOpen}
	age := now.Sub(end)
	switch {
	case age > retainFor:
		c.State = ChunkRetired
	case age > compressAfter:
		c.State = ChunkCompressed
	}
	return c
}
