package channel

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pipe appends each of chs to the channel's pipeline and starts (or
// leaves running) the background forwarder that repeatedly takes from
// c and puts concurrently on every downstream channel, awaiting all of
// them before advancing — the slowest-consumer gating spec'd for
// fan-out. It returns the last channel passed in, so that a.Pipe(b)
// and further chaining read left to right.
func (c *Channel) Pipe(chs ...*Channel) *Channel {
	if len(chs) == 0 {
		return c
	}
	c.mu.Lock()
	c.pipeline = append(c.pipeline, chs...)
	alreadyRunning := c.forwarderStarted
	var fwDone *Future[struct{}]
	if !alreadyRunning {
		c.forwarderStarted = true
		fwDone = NewFuture[struct{}]()
		c.forwarderDone = fwDone
	}
	c.mu.Unlock()

	if !alreadyRunning {
		go c.runForwarder(fwDone)
	}
	return chs[len(chs)-1]
}

// Unpipe removes ch from the pipeline and returns the receiver. A
// value already parked as a pending put inside ch is not withdrawn —
// once a value has crossed into a downstream channel it stays
// delivered there.
func (c *Channel) Unpipe(ch *Channel) *Channel {
	c.mu.Lock()
	for i, d := range c.pipeline {
		if d == ch {
			c.pipeline = append(c.pipeline[:i:i], c.pipeline[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	return c
}

// Merge returns a new channel that every one of c and chs pipes into.
// The merged channel ends only once every source has ended.
func (c *Channel) Merge(chs ...*Channel) *Channel {
	out, _ := New()
	sources := make([]*Channel, 0, len(chs)+1)
	sources = append(sources, c)
	sources = append(sources, chs...)

	var wg sync.WaitGroup
	wg.Add(len(sources))
	for _, s := range sources {
		s.Pipe(out)
		fwDone := s.currentForwarderDone()
		go func() {
			defer wg.Done()
			// Wait for s's forwarder to actually finish delivering into
			// out, not just for s to reach ENDED (see Close's comment).
			if fwDone != nil {
				fwDone.Wait()
			} else {
				s.Done().Wait()
			}
		}()
	}
	go func() {
		wg.Wait()
		out.Close(false)
	}()
	return out
}

// NewPipeline constructs len(fns)+1 channels c0..cN, each ci carrying
// transform fns[i] for i < N, and pipes c0 -> c1 -> ... -> cN. Closing
// c0 with closeAll propagates through to cN.
func NewPipeline(fns ...any) (*Channel, *Channel, error) {
	n := len(fns) + 1
	stages := make([]*Channel, n)

	c0, err := New()
	if err != nil {
		return nil, nil, err
	}
	stages[0] = c0

	for i, fn := range fns {
		ci, err := New(fn)
		if err != nil {
			return nil, nil, err
		}
		stages[i+1] = ci
	}
	for i := 0; i < n-1; i++ {
		stages[i].Pipe(stages[i+1])
	}
	return stages[0], stages[n-1], nil
}

// runForwarder is the long-running cooperative task owned by c, lazily
// started on first Pipe and single-instanced per channel: it exits and
// clears forwarderStarted once the pipeline is empty or c has ended,
// letting a later Pipe call restart it.
func (c *Channel) runForwarder(done *Future[struct{}]) {
	for {
		c.mu.Lock()
		if len(c.pipeline) == 0 {
			c.forwarderStarted = false
			c.mu.Unlock()
			done.Resolve(struct{}{})
			return
		}
		c.mu.Unlock()

		v := c.Take().Wait()
		if IsDone(v) {
			c.mu.Lock()
			c.forwarderStarted = false
			c.mu.Unlock()
			done.Resolve(struct{}{})
			return
		}

		c.mu.Lock()
		downstream := append([]*Channel(nil), c.pipeline...)
		c.mu.Unlock()

		var g errgroup.Group
		for _, d := range downstream {
			d := d
			g.Go(func() error {
				res := d.Put(v).Wait()
				return res.Err
			})
		}
		if err := g.Wait(); err != nil {
			c.handleError(v, err)
		}
	}
}
