// Package channel provides a communicating-sequential-process channel:
// an asynchronous, optionally buffered, optionally transforming message
// channel that composes into fan-out/fan-in pipelines.
//
// A [Channel] moves values from put to take, throttling a fast producer
// against a slow consumer through a bounded [fixedQueue] or through
// parked pending-put/pending-take records. Every value may pass through
// a user-supplied transform (see [New]) before it reaches the buffer,
// a waiting take, or a downstream channel in the pipeline.
//
// # Quick start
//
//	ch, _ := channel.New(4)
//	ch.Put(1)
//	ch.Put(2)
//	v := ch.Take().Wait() // 1
//
// # Categories
//
// Construction: [New], [From]
//
// Operations: [Channel.Put], [Channel.Take], [Channel.Tail]
//
// Lifecycle: [Channel.Close], [Channel.Done], [Channel.Empty]
//
// Pipelines: [Channel.Pipe], [Channel.Unpipe], [Channel.Merge], [NewPipeline]
//
// Automation: [Channel.Produce], [Channel.Consume]
package channel
