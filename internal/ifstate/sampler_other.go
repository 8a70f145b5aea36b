//go:build !linux

package ifstate

import (
	"context"
	"errors"
)

// NetlinkSampler is unavailable outside linux.
type NetlinkSampler struct{}

// NewNetlinkSampler returns a sampler whose Sample always fails.
func NewNetlinkSampler(_ []string) *NetlinkSampler {
	return &NetlinkSampler{}
}

// Sample returns an error.
func (*NetlinkSampler) Sample(context.Context) (Observation, error) {
	return nil, errors.New("ifstate: interface sampling is only supported on linux")
}
