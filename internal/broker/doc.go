// Package broker fans session events out to subscribers. The local
// implementation keeps everything in-process; the NATS implementation
// carries the same events across processes so a UI bridge or log sink
// can follow sessions produced elsewhere.
//
// Slow subscribers are evicted rather than allowed to stall a stream:
// a publish that cannot be delivered within the configured window
// unsubscribes the laggard.
package broker
