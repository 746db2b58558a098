// Package frames provides disciplined access to decoded video frames. Video
// decode on constrained devices exhausts platform decoder resources when run
// concurrently, so the provider serializes all decodes onto a single slot and
// coalesces concurrent requests for the same timestamp onto one decode.
package frames

import (
	"context"
	"errors"
	"fmt"

	"sync"
)

// ErrDisposed is returned by every provider method after Close.
var ErrDisposed = errors.New("frame provider is disposed")

// Quality selects the decode fidelity for a frame request.
type Quality string

const (
	// QualityPreview is a fast, reduced-resolution decode for scrubbing.
	QualityPreview Quality = "preview"
	// QualityFull is a full-resolution decode for analysis.
	QualityFull Quality = "full"
)

// Decoder produces encoded frame bytes for a timestamp. Implementations do
// the actual codec work; the provider never calls DecodeFrame concurrently.
type Decoder interface {
	DecodeFrame(timeMs int64, quality Quality) ([]byte, error)
}

type frameKey struct {
	timeMs  int64
	quality Quality
}

// pendingFrame is a shared handle for all callers waiting on one decode.
// refs counts the callers sharing it; done is closed when the decode lands.
type pendingFrame struct {
	done chan struct{}
	data []byte
	err  error
	refs int
}

// Provider is the serialized, deduplicating frame-decode queue.
//
// Guarantees the tracking pipeline depends on:
//   - concurrent GetFrame calls for the same (timestamp, quality) share one
//     underlying decode;
//   - decodes for different timestamps never overlap (one in flight at a
//     time);
//   - WaitForIdle returns only once the decode queue has drained;
//   - every method fails with ErrDisposed after Close.
type Provider struct {
	dec Decoder

	// slot is the single decode permit. Holding it means a decode is in
	// flight.
	slot chan struct{}

	mu       sync.Mutex
	pending  map[frameKey]*pendingFrame
	idleCh   chan struct{} // closed while the queue is empty
	closed   bool
	decoded  int64
	coalesce int64
}

// NewProvider wraps a decoder in the serialized queue.
func NewProvider(dec Decoder) *Provider {
	idle := make(chan struct{})
	close(idle)
	return &Provider{
		dec:     dec,
		slot:    make(chan struct{}, 1),
		pending: make(map[frameKey]*pendingFrame),
		idleCh:  idle,
	}
}

// GetFrame returns the encoded bytes for the frame at timeMs. A request for a
// timestamp that is already being decoded joins the in-flight decode instead
// of issuing another. Cancelling ctx abandons the wait (the decode itself is
// left to complete for any other waiters).
func (p *Provider) GetFrame(ctx context.Context, timeMs int64, quality Quality) ([]byte, error) {
	key := frameKey{timeMs: timeMs, quality: quality}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrDisposed
	}
	if h, ok := p.pending[key]; ok {
		h.refs++
		p.coalesce++
		p.mu.Unlock()
		return p.await(ctx, h)
	}

	h := &pendingFrame{done: make(chan struct{}), refs: 1}
	if len(p.pending) == 0 {
		// Leaving idle: replace the closed idle channel with an open one.
		p.idleCh = make(chan struct{})
	}
	p.pending[key] = h
	p.mu.Unlock()

	go p.decode(key, h)
	return p.await(ctx, h)
}

func (p *Provider) decode(key frameKey, h *pendingFrame) {
	p.slot <- struct{}{}
	h.data, h.err = p.dec.DecodeFrame(key.timeMs, key.quality)
	<-p.slot

	p.mu.Lock()
	delete(p.pending, key)
	p.decoded++
	if len(p.pending) == 0 {
		close(p.idleCh)
	}
	p.mu.Unlock()

	close(h.done)
}

func (p *Provider) await(ctx context.Context, h *pendingFrame) ([]byte, error) {
	select {
	case <-h.done:
		if h.err != nil {
			return nil, fmt.Errorf("decode frame: %w", h.err)
		}
		return h.data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitForIdle blocks until no decode is pending or queued, or until ctx is
// cancelled.
func (p *Provider) WaitForIdle(ctx context.Context) error {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return ErrDisposed
		}
		ch := p.idleCh
		p.mu.Unlock()

		select {
		case <-ch:
			// Idle at the time we sampled the channel; confirm nothing new
			// slipped in between sampling and waking.
			p.mu.Lock()
			empty := len(p.pending) == 0
			p.mu.Unlock()
			if empty {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stats reports decode counts: total decodes performed and requests that
// joined an in-flight decode instead of issuing their own.
func (p *Provider) Stats() (decoded, coalesced int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.decoded, p.coalesce
}

// Close disposes the provider. In-flight decodes complete for their waiters;
// all subsequent calls fail fast with ErrDisposed.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrDisposed
	}
	p.closed = true
	return nil
}
