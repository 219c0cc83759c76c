// Package camera implements the per-camera capture pipeline.
//
// A [Worker] pulls decoded frames from a [Source], re-encodes them with an
// [Encoder] and publishes the newest one into its [FrameBuffer]. Viewers read
// the buffer independently; the worker never waits for them and older frames
// are simply overwritten.
//
// Worker lifecycle:
//
//	connecting -> streaming <-> reconnecting
//	     |                           |
//	     +--------> failed <---------+     (retry ceiling reached)
//	any state -> stopped                   (Stop)
//
// While streaming, a reconnect is forced after [Policy.ReadFailureLimit]
// consecutive failed reads or when nothing was published for
// [Policy.StaleAfter]. The buffer survives reconnects, so viewers keep the
// last good frame and the sequence keeps counting.
package camera
