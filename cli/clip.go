package cli

import (
	"context"
	"crypto/sha256"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/pkg/errors"
)

// Clipboard is the system clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// SystemClipboard returns the clipboard of the desktop session.
func SystemClipboard() Clipboard {
	return systemClipboard{}
}

// Clipper copies secrets to the clipboard and clears them after a delay.
// The clear is skipped if the clipboard no longer holds the secret, so text
// the user copied in the meantime survives.
type Clipper struct {
	cb    Clipboard
	after time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	digest  [sha256.Size]byte
	pending bool
	gen     uint64
	done    chan struct{}
}

// NewClipper returns a Clipper that clears after the given delay.
func NewClipper(cb Clipboard, after time.Duration) *Clipper {
	return &Clipper{cb: cb, after: after}
}

func (c *Clipper) After() time.Duration {
	return c.after
}

// Copy writes secret to the clipboard and schedules its removal. A previous
// pending clear is replaced.
func (c *Clipper) Copy(secret []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending {
		c.timer.Stop()
		c.finish()
	}
	if err := c.cb.WriteAll(string(secret)); err != nil {
		return errors.Wrap(err, "write clipboard")
	}
	c.digest = sha256.Sum256(secret)
	c.pending = true
	c.gen++
	c.done = make(chan struct{})
	gen := c.gen
	c.timer = time.AfterFunc(c.after, func() { c.expire(gen) })
	return nil
}

func (c *Clipper) expire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending || gen != c.gen {
		return
	}
	if err := c.clear(); err != nil {
		log.Warnf("Unable to clear clipboard: %v", err)
	}
}

// Pending reports whether a clear is scheduled.
func (c *Clipper) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Clear removes the secret now if it is still on the clipboard and cancels
// the scheduled clear.
func (c *Clipper) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending {
		return nil
	}
	return c.clear()
}

// clear must be called with mu held and a clear pending.
func (c *Clipper) clear() error {
	c.timer.Stop()
	defer c.finish()

	current, err := c.cb.ReadAll()
	if err != nil {
		return errors.Wrap(err, "read clipboard")
	}
	if sha256.Sum256([]byte(current)) != c.digest {
		log.Debugf("Clipboard changed since copy, leaving it alone")
		return nil
	}
	log.Debugf("Clearing clipboard")
	return errors.Wrap(c.cb.WriteAll(""), "clear clipboard")
}

func (c *Clipper) finish() {
	c.pending = false
	c.digest = [sha256.Size]byte{}
	close(c.done)
}

// Wait blocks until the scheduled clear has run. If ctx ends first the
// clipboard is cleared immediately.
func (c *Clipper) Wait(ctx context.Context) error {
	c.mu.Lock()
	if !c.pending {
		c.mu.Unlock()
		return nil
	}
	done := c.done
	c.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return c.Clear()
	}
}
