// Command bungee is a thin CLI front-end over the bungee engine: it reads a
// WAV file, time-stretches and/or pitch-shifts it, and writes the result to
// another WAV file. Flag semantics are grounded on
// _examples/original_source/cmd/main.cpp; CLI structure (flag.Usage
// override, flag parsing style) is grounded on
// _examples/CWBudde-algo-dsp/cmd/wininfo/main.go. Out of the core engine's
// scope per SPEC_FULL.md §1/§12.2 — a thin consumer, not part of the
// algorithm under test.
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/wang1986one/bungee/bungee"
	"github.com/wang1986one/bungee/stream"
)

func main() {
	var (
		speed           = flag.Float64("speed", 1, "playback speed multiplier (1 = unchanged)")
		pitch           = flag.Float64("pitch", 1, "pitch multiplier (1 = unchanged)")
		grain           = flag.Int("grain", 0, "log2 synthesis hop adjustment: -1, 0 or +1")
		push            = flag.Int("push", 0, "0 = granular mode; N>0 = streaming mode pushing N frames per call; N<0 randomizes up to |N|")
		instrumentation = flag.Bool("instrumentation", false, "enable diagnostic logging and the input-overlap contract check")
		outPath         = flag.String("out", "out.wav", "output WAV path")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] input.wav\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  %s --speed=0.5 --pitch=1 in.wav\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --speed=1 --pitch=1.5 --push=512 in.wav\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nflags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *outPath, *speed, *pitch, *grain, *push, *instrumentation); err != nil {
		fmt.Fprintln(os.Stderr, "bungee:", err)
		os.Exit(1)
	}
}

func run(inPath, outPath string, speed, pitch float64, grainAdjust, push int, instrumentation bool) error {
	in, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	decoder := wav.NewDecoder(in)
	if !decoder.IsValidFile() {
		return fmt.Errorf("%s: not a valid WAV file", inPath)
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return err
	}

	channels := buf.Format.NumChannels
	sampleRate := buf.Format.SampleRate
	frameCount := len(buf.Data) / channels

	planar := make([][]float32, channels)
	for ch := range planar {
		planar[ch] = make([]float32, frameCount)
	}
	peak := 1 << (buf.SourceBitDepth - 1)
	for i := 0; i < frameCount; i++ {
		for ch := 0; ch < channels; ch++ {
			planar[ch][i] = float32(buf.Data[i*channels+ch]) / float32(peak)
		}
	}

	rates := bungee.SampleRates{Input: sampleRate, Output: sampleRate}
	stretcher, err := bungee.New(rates, channels, bungee.WithLog2SynthesisHopAdjust(grainAdjust), bungee.WithInstrumentation(instrumentation))
	if err != nil {
		return err
	}

	var outSamples [][]float32
	if push == 0 {
		outSamples = runGranular(stretcher, planar, frameCount, channels, speed, pitch)
	} else {
		outSamples = runStreaming(stretcher, rates, planar, frameCount, channels, speed, pitch, push)
	}

	return writeWav(outPath, outSamples, channels, sampleRate)
}

func runGranular(stretcher *bungee.Stretcher, planar [][]float32, frameCount, channels int, speed, pitch float64) [][]float32 {
	req := bungee.Request{Position: 0, Speed: speed, Pitch: pitch, Reset: true}
	stretcher.Preroll(&req)

	out := make([][]float32, channels)
	flat := make([]float32, frameCount*channels)
	for i := 0; i < frameCount; i++ {
		for ch := 0; ch < channels; ch++ {
			flat[i*channels+ch] = planar[ch][i]
		}
	}

	for {
		chunk := stretcher.SpecifyGrain(req, 0)
		frameSpan := chunk.FrameCount()
		data := make([]float32, frameSpan*channels)
		muteHead, muteTail := 0, 0
		for i := 0; i < frameSpan; i++ {
			pos := chunk.Begin + i
			if pos < 0 || pos >= frameCount {
				if i < frameSpan/2 {
					muteHead++
				} else {
					muteTail++
				}
				continue
			}
			for ch := 0; ch < channels; ch++ {
				data[i*channels+ch] = flat[pos*channels+ch]
			}
		}
		stretcher.AnalyseGrain(data, channels, muteHead, muteTail)

		var outputChunk bungee.OutputChunk
		stretcher.SynthesiseGrain(&outputChunk)
		for i := 0; i < outputChunk.FrameCount; i++ {
			for ch := 0; ch < channels; ch++ {
				out[ch] = append(out[ch], outputChunk.Data[i*outputChunk.ChannelStride+ch])
			}
		}

		if stretcher.IsFlushed() && !req.Reset && math.IsNaN(req.Position) {
			break
		}
		stretcher.Next(&req)
		if req.Position > float64(frameCount)+float64(stretcher.MaxInputFrameCount()) {
			req.Position = math.NaN()
		}
		if stretcher.IsFlushed() {
			break
		}
	}
	return out
}

func runStreaming(stretcher *bungee.Stretcher, rates bungee.SampleRates, planar [][]float32, frameCount, channels int, speed, pitch float64, push int) [][]float32 {
	st, err := stream.New(stretcher, rates, channels, frameCount+stretcher.MaxInputFrameCount()*2)
	if err != nil {
		return nil
	}

	out := make([][]float32, channels)
	outFlat := make([]float32, 0, frameCount*channels)

	frame := make([]float32, channels)
	produced := 0
	for i := 0; i < frameCount || produced < int(float64(frameCount)/speed); i++ {
		if i < frameCount {
			for ch := 0; ch < channels; ch++ {
				frame[ch] = planar[ch][i]
			}
			st.Write(frame)
		}
		n := push
		if n < 0 {
			n = 1 + rand.Intn(-n)
		}
		if n <= 0 {
			n = 1
		}
		outFlat = st.Process(outFlat, n, pitch)
		produced = len(outFlat) / channels
	}

	for i := 0; i < produced; i++ {
		for ch := 0; ch < channels; ch++ {
			out[ch] = append(out[ch], outFlat[i*channels+ch])
		}
	}
	return out
}

func writeWav(path string, planar [][]float32, channels, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	frameCount := 0
	if len(planar) > 0 {
		frameCount = len(planar[0])
	}

	ints := make([]int, frameCount*channels)
	for i := 0; i < frameCount; i++ {
		for ch := 0; ch < channels; ch++ {
			v := planar[ch][i]
			if v > 1 {
				v = 1
			}
			if v < -1 {
				v = -1
			}
			ints[i*channels+ch] = int(v * 32767)
		}
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}
