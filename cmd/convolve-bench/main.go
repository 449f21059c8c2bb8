// Command convolve-bench exercises the engine offline, without a plugin
// host: it reports a Response's module table for a given IR length and
// partition range, or renders the convolution of two raw float32 files
// (mono, little-endian, no header) for manual verification.
//
// Usage:
//
//	convolve-bench partitions -length 131072 -min 64 -max 8192
//	convolve-bench render -ir ir.f32 -input in.f32 -output out.f32 -block 64
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"

	"github.com/cwbudde/algo-convolve/engine"
	"github.com/cwbudde/algo-convolve/partition"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "partitions":
		err = runPartitions(os.Args[2:])
	case "render":
		err = runRender(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: convolve-bench <partitions|render> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Subcommands:\n")
	fmt.Fprintf(os.Stderr, "  partitions -length N -min P -max P   print a Response's module table\n")
	fmt.Fprintf(os.Stderr, "  render -ir F -input F -output F      convolve two raw float32 files\n")
}

func runPartitions(args []string) error {
	fs := flag.NewFlagSet("partitions", flag.ExitOnError)
	length := fs.Int("length", 131072, "IR length in samples")
	minSize := fs.Int("min", 64, "minimum partition size")
	maxSize := fs.Int("max", 8192, "maximum partition size")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := partition.NewResponse(1, *length, *minSize, *maxSize)
	if err != nil {
		return fmt.Errorf("building response: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Module\tOffset\tSize\tCount\tFFT Size\n")
	fmt.Fprintf(tw, "------\t------\t----\t-----\t--------\n")
	for i, m := range resp.Modules {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\n", i, m.Offset, m.Size, m.Count, m.FFT.Size())
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing output: %w", err)
	}

	fmt.Printf("\ntotal modules: %d, covers %d samples (requested %d)\n",
		resp.NumModules(), resp.TotalSize(), *length)
	return nil
}

func runRender(args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	irPath := fs.String("ir", "", "path to a raw float32 impulse response (mono)")
	inputPath := fs.String("input", "", "path to a raw float32 input signal (mono)")
	outputPath := fs.String("output", "", "path to write the raw float32 output signal")
	minSize := fs.Int("min", 64, "minimum partition size")
	maxSize := fs.Int("max", 8192, "maximum partition size")
	block := fs.Int("block", 64, "host block size (must equal -min)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *irPath == "" || *inputPath == "" || *outputPath == "" {
		return fmt.Errorf("render requires -ir, -input and -output")
	}
	if *block != *minSize {
		return fmt.Errorf("-block must equal -min (the engine's B = P_min)")
	}

	ir, err := readFloat32File(*irPath)
	if err != nil {
		return fmt.Errorf("reading IR: %w", err)
	}
	input, err := readFloat32File(*inputPath)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	resp, err := partition.NewResponse(1, len(ir), *minSize, *maxSize)
	if err != nil {
		return fmt.Errorf("building response: %w", err)
	}

	conv, err := engine.New(resp, 1, *block, resp.NumModules(), 0)
	if err != nil {
		return fmt.Errorf("building convolution: %w", err)
	}
	if err := conv.SetKernel([][]float32{ir}, 1); err != nil {
		return fmt.Errorf("loading kernel: %w", err)
	}

	output := make([]float32, 0, len(input)+len(ir))
	src := [][]float32{make([]float32, *block)}
	dst := [][]float32{make([]float32, *block)}

	for pos := 0; pos < len(input); pos += *block {
		n := copy(src[0], input[pos:])
		for i := n; i < *block; i++ {
			src[0][i] = 0
		}
		for i := range dst[0] {
			dst[0][i] = 0
		}
		conv.Process(dst, src, *block)
		output = append(output, dst[0]...)
	}

	// Drain the tail: the last len(ir) samples of the response keep
	// arriving after the input stream itself has ended.
	for i := 0; i < len(ir); i += *block {
		for j := range src[0] {
			src[0][j] = 0
		}
		for j := range dst[0] {
			dst[0][j] = 0
		}
		conv.Process(dst, src, *block)
		output = append(output, dst[0]...)
	}

	if err := writeFloat32File(*outputPath, output); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	fmt.Printf("wrote %d samples to %s\n", len(output), *outputPath)
	return nil
}

func readFloat32File(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []float32
	var buf [4]byte
	for {
		if _, err := io.ReadFull(f, buf[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		bits := binary.LittleEndian.Uint32(buf[:])
		out = append(out, math.Float32frombits(bits))
	}
	return out, nil
}

func writeFloat32File(path string, data []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var buf [4]byte
	for _, v := range data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		if _, err := f.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}
