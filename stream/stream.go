// Package stream wraps a bungee.Stretcher behind a push/pull FIFO, so a
// caller can request an output frame count and receive it directly instead
// of driving the specify/analyse/synthesise triplet itself. Grounded on
// _examples/original_source/bungee/Stream.h (SPEC_FULL.md §12.1).
package stream

import (
	"github.com/wang1986one/bungee/bungee"
	"github.com/wang1986one/bungee/dsp/delay"
)

// Stream drives a *bungee.Stretcher from push-style input: the caller
// appends input frames as they arrive and calls Process to obtain a fixed
// number of output frames, with the Stretcher's specify/analyse/synthesise
// triplet driven internally as many times as needed.
type Stream struct {
	stretcher *bungee.Stretcher
	rates     bungee.SampleRates
	channels  int

	// input is a per-channel ring buffer, adapted from dsp/delay.Line
	// (kept from the teacher, repurposed here as Stream::InputBuffer's
	// circular backing store; Process reads it at whole-frame delays).
	input []*delay.Line

	inputWritten   int64 // total frames ever written
	inputPosition  float64
	outputPosition float64

	request bungee.Request

	scratchIn []float32
}

// New wraps stretcher for FIFO-style streaming. capacityFrames bounds how
// far behind the write position a read may reach.
func New(stretcher *bungee.Stretcher, rates bungee.SampleRates, channels, capacityFrames int) (*Stream, error) {
	lines := make([]*delay.Line, channels)
	for ch := range lines {
		line, err := delay.New(capacityFrames)
		if err != nil {
			return nil, err
		}
		lines[ch] = line
	}
	s := &Stream{
		stretcher: stretcher,
		rates:     rates,
		channels:  channels,
		input:     lines,
		request:   bungee.Request{Position: 0, Speed: 1, Pitch: 1, Reset: true},
	}
	return s, nil
}

// Write appends one frame (one sample per channel) to the input ring.
func (s *Stream) Write(frame []float32) {
	for ch := 0; ch < s.channels && ch < len(frame); ch++ {
		s.input[ch].Write(float64(frame[ch]))
	}
	s.inputWritten++
}

// InputPosition returns the current read position in the input stream, in
// input frames.
func (s *Stream) InputPosition() float64 { return s.inputPosition }

// OutputPosition returns the total number of output frames produced so
// far.
func (s *Stream) OutputPosition() float64 { return s.outputPosition }

// Latency returns the pipeline's current input-to-output delay, in input
// frames.
func (s *Stream) Latency() float64 {
	return float64(s.inputWritten) - s.inputPosition
}

// Process sets request.Speed to 1 (there is no input frame count to derive
// another speed from) and drives the Stretcher until outputFrameCount output
// frames have been
// produced, appending them (interleaved by channel) to out. pitch
// overrides the stream's pitch control for this call.
func (s *Stream) Process(out []float32, outputFrameCount int, pitch float64) []float32 {
	if outputFrameCount <= 0 {
		return out
	}
	s.request.Speed = 1
	s.request.Pitch = pitch
	if s.request.Pitch <= 0 {
		s.request.Pitch = 1
	}

	produced := 0
	for produced < outputFrameCount {
		chunk := s.stretcher.SpecifyGrain(s.request, s.inputPosition)
		frameCount := chunk.FrameCount()

		if cap(s.scratchIn) < frameCount*s.channels {
			s.scratchIn = make([]float32, frameCount*s.channels)
		}
		data := s.scratchIn[:frameCount*s.channels]
		muteHead, muteTail := 0, 0
		for i := 0; i < frameCount; i++ {
			framePos := chunk.Begin + i
			if framePos < 0 || int64(framePos) >= s.inputWritten {
				if i < frameCount/2 {
					muteHead++
				} else {
					muteTail++
				}
				continue
			}
			delayFrames := int(s.inputWritten) - 1 - framePos
			for ch := 0; ch < s.channels; ch++ {
				data[i*s.channels+ch] = float32(s.input[ch].Read(delayFrames))
			}
		}
		s.stretcher.AnalyseGrain(data, s.channels, muteHead, muteTail)

		var outputChunk bungee.OutputChunk
		s.stretcher.SynthesiseGrain(&outputChunk)

		take := outputChunk.FrameCount
		if produced+take > outputFrameCount {
			take = outputFrameCount - produced
		}
		out = append(out, outputChunk.Data[:take*outputChunk.ChannelStride]...)
		produced += take
		s.outputPosition += float64(take)

		s.stretcher.Next(&s.request)
		s.inputPosition = s.request.Position
	}
	return out
}
