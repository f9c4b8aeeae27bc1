// Command ctreebench drives a btree.Tree from the command line: it
// builds a tree from synthetic or file-sourced keys, runs a
// configurable number of concurrent goroutines against it, and prints
// the resulting Stats() snapshot. It exists purely as a load generator
// exercising pkg/btree end-to-end; it has no persistence or query
// layer of its own.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"ctree/pkg/btree"
)

func main() {
	var (
		keyCount   = flag.Int("keys", 100_000, "number of keys to insert before running the read workload")
		goroutines = flag.Int("goroutines", 8, "number of concurrent goroutines in the read/insert workload")
		readFrac   = flag.Float64("read-frac", 0.9, "fraction of workload operations that are Get rather than Insert")
		keySource  = flag.String("key-source", "ascending", "ascending, random, or a path to a newline-delimited 'key value' file")
		duration   = flag.Duration("duration", 2*time.Second, "how long to run the concurrent workload")
	)
	flag.Parse()

	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	log := zap.Must(logConfig.Build())
	defer log.Sync()
	log = log.Named("ctreebench")

	runID := uuid.New()
	log.Info("starting run",
		zap.String("run_id", runID.String()),
		zap.Int("keys", *keyCount),
		zap.Int("goroutines", *goroutines),
		zap.Float64("read_frac", *readFrac),
		zap.String("key_source", *keySource),
		zap.Duration("duration", *duration),
	)

	tr := btree.New()

	keys, err := loadKeys(*keySource, *keyCount)
	if err != nil {
		log.Fatal("loading keys failed", zap.String("run_id", runID.String()), zap.Error(err))
	}

	loadStart := time.Now()
	for _, k := range keys {
		tr.Insert(k, k)
	}
	log.Info("initial load complete",
		zap.String("run_id", runID.String()),
		zap.Int("loaded", len(keys)),
		zap.Duration("elapsed", time.Since(loadStart)),
	)

	deadline := time.Now().Add(*duration)
	var g errgroup.Group
	for w := 0; w < *goroutines; w++ {
		w := w
		g.Go(func() error {
			rng := rand.New(rand.NewSource(int64(w) + 1))
			next := uint64(len(keys))
			for time.Now().Before(deadline) {
				if rng.Float64() < *readFrac || len(keys) == 0 {
					tr.Get(keys[rng.Intn(len(keys))])
				} else {
					tr.Insert(next, next)
					next += uint64(*goroutines)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal("workload failed", zap.String("run_id", runID.String()), zap.Error(err))
	}

	stats := tr.Stats()
	log.Info("run complete",
		zap.String("run_id", runID.String()),
		zap.Int64("key_count", stats.KeyCount),
		zap.Int64("node_count", stats.NodeCount),
		zap.Int64("height", stats.Height),
		zap.Int64("insert_count", stats.InsertCount),
		zap.Int64("get_count", stats.GetCount),
		zap.Int64("split_count", stats.SplitCount),
		zap.Int64("rebalance_count", stats.RebalanceCount),
		zap.Int64("retries", stats.Retries),
		zap.Int64("sibling_hops", stats.SiblingHops),
		zap.Float64("efficiency", stats.Efficiency),
	)
	fmt.Printf("run %s: %+v\n", runID, stats)
}

// loadKeys returns keyCount keys, either synthesized (ascending or
// random) or read from a newline-delimited "key value" file named by
// source, one key per line up to keyCount lines.
func loadKeys(source string, keyCount int) ([]uint64, error) {
	switch source {
	case "ascending":
		keys := make([]uint64, keyCount)
		for i := range keys {
			keys[i] = uint64(i)
		}
		return keys, nil
	case "random":
		rng := rand.New(rand.NewSource(1))
		seen := make(map[uint64]bool, keyCount)
		keys := make([]uint64, 0, keyCount)
		for len(keys) < keyCount {
			k := rng.Uint64()
			if seen[k] {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
		return keys, nil
	default:
		return loadKeysFromFile(source, keyCount)
	}
}

func loadKeysFromFile(path string, keyCount int) ([]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open key file: %w", err)
	}
	defer f.Close()

	keys := make([]uint64, 0, keyCount)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() && len(keys) < keyCount {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		k, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse key %q: %w", fields[0], err)
		}
		keys = append(keys, k)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan key file: %w", err)
	}
	return keys, nil
}
