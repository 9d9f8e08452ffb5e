// Package frame holds decoded video frames shared between the pipeline and the evidence buffers.
package frame

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// ErrEmpty is returned when a payload decodes to an empty image.
var ErrEmpty = errors.New("decoded image is empty")

// Context is one decoded frame. It is reference counted: every holder calls
// Retain once and Release once, and the Mat is closed with the last Release.
type Context struct {
	Image  gocv.Mat
	Width  int
	Height int
	At     time.Time // arrival time, carries a monotonic reading

	refs atomic.Int32
}

// New wraps an already decoded Mat. The caller owns the first reference.
func New(img gocv.Mat, at time.Time) *Context {
	c := &Context{
		Image:  img,
		Width:  img.Cols(),
		Height: img.Rows(),
		At:     at,
	}
	c.refs.Store(1)
	return c
}

// Decode decodes an encoded image (JPEG, PNG...) into a Context.
func Decode(data []byte, at time.Time) (*Context, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, ErrEmpty
	}
	return New(mat, at), nil
}

// Retain adds a reference and returns c.
func (c *Context) Retain() *Context {
	c.refs.Add(1)
	return c
}

// Release drops a reference, closing the Mat when none remain.
func (c *Context) Release() {
	if c.refs.Add(-1) == 0 {
		c.Image.Close()
	}
}

// Refs reports the current reference count.
func (c *Context) Refs() int {
	return int(c.refs.Load())
}
