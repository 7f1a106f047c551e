// Package audio is the hardware device layer: microphone capture and
// speaker playback through miniaudio.
package audio

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// Context owns the miniaudio backend shared by all devices.
type Context struct {
	ctx *malgo.AllocatedContext
}

// NewContext initializes the audio backend.
func NewContext() (*Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio backend init: %w", err)
	}
	return &Context{ctx: ctx}, nil
}

// Close releases the backend. Close all devices first.
func (c *Context) Close() {
	_ = c.ctx.Uninit()
	c.ctx.Free()
}
