package channel

import (
	"sync"

	"github.com/fxsml/csp/flow"
)

// Channel is an asynchronous, optionally buffered, optionally
// transforming CSP channel. All field mutation is serialized by mu,
// the single-mutex-per-channel discipline the design calls for on a
// preemptive runtime.
type Channel struct {
	mu sync.Mutex

	state State
	buf   *fixedQueue        // nil iff no buffer size was supplied
	puts  *list[putRecord]   // pending puts parked past buffer capacity
	takes *list[*Future[any]] // pending takes parked on an empty channel
	tail  *list[putRecord]   // late-binding puts drained during CLOSED

	transform transformFunc
	inFlight  int // count of put/tail emissions not yet fully placed

	pipeline         []*Channel
	forwarderStarted bool
	forwarderDone    *Future[struct{}] // resolves once the current forwarder goroutine exits

	errorHandler flow.ErrorHandler // invoked by the pipeline forwarder on a downstream put failure

	waiting []*Future[struct{}]
}

// SetErrorHandler installs the policy the pipeline forwarder invokes
// when a downstream Put fails. It replaces the built-in
// flow.DefaultErrorHandler, which only logs and carries on. A nil
// handler is ignored. Returns c for chaining with Pipe.
func (c *Channel) SetErrorHandler(h flow.ErrorHandler) *Channel {
	if h == nil {
		return c
	}
	c.mu.Lock()
	c.errorHandler = h
	c.mu.Unlock()
	return c
}

func (c *Channel) handleError(v any, err error) {
	c.mu.Lock()
	h := c.errorHandler
	c.mu.Unlock()
	if h == nil {
		h = flow.DefaultErrorHandler
	}
	h(v, err)
}

// putRecord is a parked output: value awaits a resolver that fires
// once the value physically leaves the puts/tail queue (into buf or
// directly to a take).
type putRecord struct {
	value    any
	resolver *Future[struct{}]
}

// PutResult is the value a Put or Tail future resolves to.
type PutResult struct {
	// Accepted reports whether the value was placed. It is false when
	// the channel was not OPEN (a refused put, never an error) or when
	// the transform failed (see Err).
	Accepted bool
	// Err is set when the transform invocation for this put failed.
	Err error
}

// New constructs a Channel. Arguments are positional and optional,
// discriminated by kind: a positive int is a buffer size; any other
// value is resolved as a transform (see resolveTransform). Accepted
// forms: New(), New(size), New(transform), New(size, transform).
func New(args ...any) (*Channel, error) {
	c := &Channel{
		puts:         newList[putRecord](),
		takes:        newList[*Future[any]](),
		tail:         newList[putRecord](),
		transform:    identityTransform(),
		errorHandler: flow.DefaultErrorHandler,
	}
	for _, arg := range args {
		switch v := arg.(type) {
		case int:
			if v <= 0 {
				return nil, &InvalidArgumentError{Arg: arg, Reason: "buffer size must be positive"}
			}
			c.buf = newFixedQueue(v)
		default:
			tf, err := resolveTransform(v)
			if err != nil {
				return nil, err
			}
			c.transform = tf
		}
	}
	return c, nil
}

// From creates a channel whose buffer size equals len(values),
// pre-filled in order. Unless keepOpen is set, the channel begins
// CLOSED and transitions to ENDED once drained.
func From(values []any, keepOpen bool) *Channel {
	c := &Channel{
		puts:         newList[putRecord](),
		takes:        newList[*Future[any]](),
		tail:         newList[putRecord](),
		transform:    identityTransform(),
		errorHandler: flow.DefaultErrorHandler,
	}
	if len(values) > 0 {
		c.buf = newFixedQueue(len(values))
		for _, v := range values {
			c.buf.push(v)
		}
	}
	if !keepOpen {
		c.Close(false)
	}
	return c
}

// State returns the channel's current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Size returns the buffer capacity, or -1 if the channel has no
// buffer.
func (c *Channel) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf == nil {
		return -1
	}
	return c.buf.size()
}

// Len returns puts.length + (buf ? buf.length : 0), matching spec's
// `length` field.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lenLocked()
}

func (c *Channel) lenLocked() int {
	n := c.puts.length()
	if c.buf != nil {
		n += c.buf.length()
	}
	return n
}

// Empty reports whether Len() == 0. The takes queue does not count.
func (c *Channel) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lenLocked() == 0
}

// BufLen, PutsLen, TakesLen, TailLen, and PipelineLen expose the
// internal queue lengths for observability, matching spec's explicit
// call-out that these fields are inspected directly by tests.
func (c *Channel) BufLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf == nil {
		return 0
	}
	return c.buf.length()
}

func (c *Channel) PutsLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts.length()
}

func (c *Channel) TakesLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.takes.length()
}

func (c *Channel) TailLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tail.length()
}

func (c *Channel) PipelineLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pipeline)
}

// Put applies the channel's transform to v and places each emitted
// output into a waiting take, the buffer, or the puts queue. The
// returned future resolves once every output has been fully placed.
func (c *Channel) Put(v any) *Future[PutResult] {
	return c.put(v, func(c *Channel) *list[putRecord] { return c.puts })
}

// Tail passes value through the transform exactly like an ordinary
// put. An output that finds a waiting take or a free buffer slot is
// placed there at once, as Put would place it; only an output that
// would otherwise park goes onto the tail queue, which is drained after
// buf and puts while the channel is CLOSED, before it ends. Tail is
// refused, like Put, once the channel is not OPEN.
func (c *Channel) Tail(v any) *Future[PutResult] {
	return c.put(v, func(c *Channel) *list[putRecord] { return c.tail })
}

func (c *Channel) put(v any, fallback func(*Channel) *list[putRecord]) *Future[PutResult] {
	outer := NewFuture[PutResult]()

	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		outer.Resolve(PutResult{Accepted: false})
		return outer
	}
	c.inFlight++
	tf := c.transform
	c.mu.Unlock()

	var pending sync.WaitGroup
	pending.Add(1) // released once the transform signals completion

	push := func(out any) {
		c.mu.Lock()
		c.deliverLocked(out, fallback(c), &pending)
		c.mu.Unlock()
	}

	emitDone := tf(v, push)

	go func() {
		err := emitDone.Wait()
		pending.Done()
		pending.Wait()

		c.mu.Lock()
		c.inFlight--
		c.checkEndLocked()
		c.mu.Unlock()

		if err != nil {
			outer.Resolve(PutResult{Accepted: false, Err: err})
			return
		}
		outer.Resolve(PutResult{Accepted: true})
	}()

	return outer
}

// deliverLocked implements spec §4.3 steps 1-3 for a single emitted
// output. Must be called with c.mu held.
func (c *Channel) deliverLocked(out any, fallback *list[putRecord], pending *sync.WaitGroup) {
	if !c.takes.empty() {
		taker := c.takes.shift()
		taker.Resolve(out)
		return
	}
	if c.buf != nil && !c.buf.full() {
		c.buf.push(out)
		return
	}
	pending.Add(1)
	resolver := NewFuture[struct{}]()
	fallback.push(putRecord{value: out, resolver: resolver})
	go func() {
		resolver.Wait()
		pending.Done()
	}()
}

// Take dequeues a value per spec §4.4, or parks the caller's resolver
// if none is available yet. On an ENDED channel it resolves
// immediately with Done.
func (c *Channel) Take() *Future[any] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.takeLocked()
}

func (c *Channel) takeLocked() *Future[any] {
	f := NewFuture[any]()

	switch {
	case c.buf != nil && !c.buf.empty():
		v := c.buf.shift()
		if !c.puts.empty() {
			rec := c.puts.shift()
			c.buf.push(rec.value)
			rec.resolver.Resolve(struct{}{})
		}
		f.Resolve(v)
		c.checkEndLocked()
	case !c.puts.empty():
		rec := c.puts.shift()
		rec.resolver.Resolve(struct{}{})
		f.Resolve(rec.value)
		c.checkEndLocked()
	case c.state == StateClosed && !c.tail.empty():
		rec := c.tail.shift()
		rec.resolver.Resolve(struct{}{})
		f.Resolve(rec.value)
		c.checkEndLocked()
	case c.state == StateOpen || c.state == StateClosed:
		c.takes.push(f)
	default: // StateEnded
		f.Resolve(Done)
	}
	return f
}

// checkEndLocked transitions to StateEnded when CLOSED and fully
// drained, per spec §4.4/§4.6. Must be called with c.mu held.
func (c *Channel) checkEndLocked() {
	if c.state != StateClosed || c.inFlight > 0 {
		return
	}
	bufEmpty := c.buf == nil || c.buf.empty()
	if bufEmpty && c.puts.empty() && c.tail.empty() {
		c.transitionToEndedLocked()
	}
}

func (c *Channel) transitionToEndedLocked() {
	c.state = StateEnded
	for !c.takes.empty() {
		c.takes.shift().Resolve(Done)
	}
	for _, w := range c.waiting {
		w.Resolve(struct{}{})
	}
	c.waiting = nil
}

// Close transitions the channel to CLOSED (or directly to ENDED if it
// is already fully drained and idle). If closeAll is true, every
// channel in the pipeline is closed the same way once this channel's
// drain completes.
func (c *Channel) Close(closeAll bool) {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.checkEndLocked()
	downstream := append([]*Channel(nil), c.pipeline...)
	fwDone := c.forwarderDone
	c.mu.Unlock()

	if closeAll && len(downstream) > 0 {
		go func() {
			// Wait for the forwarder itself to exit, not just for c to
			// reach ENDED: c ends the instant its own queues empty,
			// which happens before the forwarder's final fan-out to
			// downstream completes. Cascading close on c.Done() alone
			// could close a downstream channel while its last value is
			// still in flight.
			if fwDone != nil {
				fwDone.Wait()
			} else {
				c.Done().Wait()
			}
			for _, d := range downstream {
				d.Close(true)
			}
		}()
	}
}

// currentForwarderDone returns the future tracking the currently
// running (or most recently started) pipeline forwarder, or nil if
// Pipe has never been called.
func (c *Channel) currentForwarderDone() *Future[struct{}] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forwarderDone
}

// Done returns a future that resolves once the channel reaches ENDED.
// Calling Done on an already-ENDED channel resolves immediately.
func (c *Channel) Done() *Future[struct{}] {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := NewFuture[struct{}]()
	if c.state == StateEnded {
		f.Resolve(struct{}{})
		return f
	}
	c.waiting = append(c.waiting, f)
	return f
}
