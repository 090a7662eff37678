package main

// dataset_gen.go is a tiny helper utility to generate deterministic key
// datasets for standalone benchmarking of tier-cache (outside `go test`).
// It emits newline-separated zarr-like chunk keys ("<array>/c/<z>/<y>/<x>")
// which can later be passed to service load-testers or external
// benchmarking suites.
//
// Usage:
//   go run ./tools/dataset_gen -n 1000000 -dist=zipf -seed=42 -out keys.txt
//
// Flags:
//   -n       number of keys to generate (default 1e6)
//   -array   array name prefix (default "data")
//   -grid    chunk grid extent per axis (default 64)
//   -dist    distribution: "uniform" or "zipf" (default uniform)
//   -zipfs   Zipf s parameter (>1)  (default 1.2)
//   -zipfv   Zipf v parameter (>=1) (default 1.0)
//   -seed    RNG seed (default current time)
//   -out     output file (default stdout)
//
// The program is *embarassingly simple* but placed under version control so
// that any contributor can regenerate the exact dataset used in performance
// regressions hunting.
//
// © 2025 tier-cache authors. MIT License.

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"
)

func main() {
	var (
		n       = flag.Int("n", 1_000_000, "number of keys to generate")
		array   = flag.String("array", "data", "array name prefix")
		grid    = flag.Int("grid", 64, "chunk grid extent per axis")
		dist    = flag.String("dist", "uniform", "distribution: uniform or zipf")
		zipfS   = flag.Float64("zipfs", 1.2, "zipf s parameter (>1)")
		zipfV   = flag.Float64("zipfv", 1.0, "zipf v parameter (>=1)")
		seedVal = flag.Int64("seed", time.Now().UnixNano(), "PRNG seed")
		outPath = flag.String("out", "", "output file (default stdout)")
	)
	flag.Parse()

	rnd := rand.New(rand.NewSource(*seedVal))
	cells := uint64(*grid) * uint64(*grid) * uint64(*grid)

	var gen func() uint64
	switch *dist {
	case "uniform":
		gen = func() uint64 { return rnd.Uint64() % cells }
	case "zipf":
		z := rand.NewZipf(rnd, *zipfS, *zipfV, cells-1)
		gen = z.Uint64
	default:
		fmt.Fprintf(os.Stderr, "dataset_gen: unknown distribution %q\n", *dist)
		os.Exit(1)
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dataset_gen: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	w := bufio.NewWriter(out)
	defer w.Flush()

	g := uint64(*grid)
	for i := 0; i < *n; i++ {
		cell := gen()
		z, rest := cell/(g*g), cell%(g*g)
		y, x := rest/g, rest%g
		fmt.Fprintf(w, "%s/c/%d/%d/%d\n", *array, z, y, x)
	}
}
