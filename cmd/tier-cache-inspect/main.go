package main

// main.go implements the tier-cache inspector CLI: it reads the disk
// tier's root directory, decodes the per-entry metadata records under
// meta/, and prints a summary either as pretty text or JSON.  It also
// supports periodic watch mode for eyeballing a live process.
//
// The tool only reads; it never mutates the cache directory.  Because the
// disk tier starts clean-slate, anything the inspector sees was written by
// the currently running (or most recent) process.
//
// Build-time flag: `-ldflags "-X main.version=vX.Y.Z"` is set by GoReleaser.
// ---------------------------------------------------------------
// © 2025 tier-cache authors. MIT License.

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"
)

var version = "dev"

type options struct {
	root     string
	json     bool
	verbose  bool
	watch    bool
	interval time.Duration
	version  bool
}

func parseFlags() *options {
	opts := &options{}
	flag.StringVar(&opts.root, "root", "", "disk tier root directory (required)")
	flag.BoolVar(&opts.json, "json", false, "emit JSON instead of text")
	flag.BoolVar(&opts.verbose, "v", false, "list every entry, not just totals")
	flag.BoolVar(&opts.watch, "watch", false, "refresh periodically until interrupted")
	flag.DurationVar(&opts.interval, "interval", 2*time.Second, "watch refresh period")
	flag.BoolVar(&opts.version, "version", false, "print version and exit")
	flag.Parse()
	return opts
}

// entry mirrors the disk tier's metadata record.
type entry struct {
	Version int        `json:"version"`
	Key     string     `json:"key"`
	Size    int64      `json:"size"`
	Created time.Time  `json:"created"`
	Expires *time.Time `json:"expires,omitempty"`
}

type snapshot struct {
	Root       string  `json:"root"`
	Entries    int     `json:"entries"`
	TotalBytes int64   `json:"total_bytes"`
	Expired    int     `json:"expired"`
	Oldest     string  `json:"oldest,omitempty"`
	Items      []entry `json:"items,omitempty"`
}

func main() {
	opts := parseFlags()

	if opts.version {
		fmt.Println(version)
		return
	}
	if opts.root == "" {
		fatal(fmt.Errorf("missing -root"))
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	if opts.watch {
		ticker := time.NewTicker(opts.interval)
		defer ticker.Stop()
		for {
			if err := dumpOnce(opts); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
			select {
			case <-ticker.C:
				continue
			case <-sig:
				return
			}
		}
	}

	// one-shot
	if err := dumpOnce(opts); err != nil {
		fatal(err)
	}
}

/* -------------------------------------------------------------------------
   Helpers
   ------------------------------------------------------------------------- */

func dumpOnce(opts *options) error {
	snap, err := scan(opts.root, opts.verbose)
	if err != nil {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	return prettyPrint(snap, opts.verbose)
}

func scan(root string, keepItems bool) (*snapshot, error) {
	metaDir := filepath.Join(root, "meta")
	files, err := os.ReadDir(metaDir)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{Root: root}
	now := time.Now()
	var oldest time.Time

	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(metaDir, f.Name()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", f.Name(), err)
			continue
		}
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", f.Name(), err)
			continue
		}

		snap.Entries++
		snap.TotalBytes += e.Size
		if e.Expires != nil && now.After(*e.Expires) {
			snap.Expired++
		}
		if oldest.IsZero() || e.Created.Before(oldest) {
			oldest = e.Created
			snap.Oldest = e.Key
		}
		if keepItems {
			snap.Items = append(snap.Items, e)
		}
	}

	sort.Slice(snap.Items, func(i, j int) bool {
		return snap.Items[i].Created.Before(snap.Items[j].Created)
	})
	return snap, nil
}

func prettyPrint(snap *snapshot, verbose bool) error {
	fmt.Printf("Root:     %s\n", snap.Root)
	fmt.Printf("Entries:  %d\n", snap.Entries)
	fmt.Printf("Bytes:    %.2f MiB\n", float64(snap.TotalBytes)/1_048_576)
	fmt.Printf("Expired:  %d\n", snap.Expired)
	if snap.Oldest != "" {
		fmt.Printf("Oldest:   %s\n", snap.Oldest)
	}
	if verbose {
		fmt.Println()
		for _, e := range snap.Items {
			exp := "-"
			if e.Expires != nil {
				exp = e.Expires.Format(time.RFC3339)
			}
			fmt.Printf("%10d  %-25s  exp %-22s  %s\n",
				e.Size, e.Created.Format(time.RFC3339), exp, e.Key)
		}
	}
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "tier-cache-inspect:", err)
	os.Exit(1)
}
