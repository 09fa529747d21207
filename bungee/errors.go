package bungee

import (
	"errors"
	"fmt"
)

// Non-fatal, constructor-time validation errors, in the sentinel-plus-wrap
// style of dsp/window/errors.go: checked once at construction, since
// Stretcher's processing methods expose no recoverable error channel
// (SPEC_FULL.md §7).
var (
	errChannelCount = errors.New("channel count must be >= 1")
	errSampleRate   = errors.New("sample rates must be > 0")
)

func validateConstruction(rates SampleRates, channelCount int) error {
	if channelCount < 1 {
		return fmt.Errorf("%w: %d", errChannelCount, channelCount)
	}
	if rates.Input <= 0 || rates.Output <= 0 {
		return fmt.Errorf("%w: %+v", errSampleRate, rates)
	}
	return nil
}
