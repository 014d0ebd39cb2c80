package perf

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Kain-Deterick/VK-Internship/cmd/util"
	"github.com/Kain-Deterick/VK-Internship/lib/common"
	"github.com/Kain-Deterick/VK-Internship/lib/store"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// PerfCmd benchmarks the store operations in process
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the store",
		Long:    "Runs a benchmark per store operation against a fresh namespace and prints ns/op and ops/sec.",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	PerfCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines per CPU to use for the benchmark"))
	key = "large-value-size"
	PerfCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	PerfCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfKeySpread <= 0 {
		return errors.New("keys must be positive")
	}
	if perfNumThreads <= 0 {
		return errors.New("threads must be positive")
	}
	return nil
}

// benchmark is one named operation benchmark against s
type benchmark struct {
	name string
	fn   func(b *testing.B, s store.IStore)
}

var benchmarks = []benchmark{
	{"set", benchSet},
	{"set-large", benchSetLarge},
	{"get", benchGet},
	{"remove", benchRemove},
	{"scan", benchScan},
	{"expire", benchExpire},
	{"mixed", benchMixed},
}

func run(cmd *cobra.Command, _ []string) error {
	conf, err := util.GetConfig()
	if err != nil {
		return err
	}

	// benchmarks measure the operations, not the background reclamation
	conf.SweepInterval = 0

	fmt.Println("Performance testing tool for kvstorage")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(conf.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	rt := util.NewRuntime(conf)
	defer rt.Close()

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	for _, bench := range benchmarks {
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(bench.name) {
				return
			}
			// every benchmark gets its own namespace
			s := rt.Store(fmt.Sprintf("%s-%s", perfKeyPrefix, bench.name))
			b.SetParallelism(perfNumThreads)
			bench.fn(b, s)
		})

		results[bench.name] = result
		printResult(bench.name, result)
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, conf); err != nil {
			return errors.Wrap(err, "failed to export results to CSV")
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Benchmarks
// --------------------------------------------------------------------------

func benchSet(b *testing.B, s store.IStore) {
	getKey, _ := getKeys("set")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			if err := s.Set(getKey(counter), []byte("test"), 0); err != nil {
				util.Logger.Errorf("(set) - error setting key: %v", err)
			}
			counter++
		}
	})
}

func benchSetLarge(b *testing.B, s store.IStore) {
	// prepare large value
	largeValue := make([]byte, perfLargeValueSizeKB*1024)
	getKey, _ := getKeys("set-large")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			if err := s.Set(getKey(counter), largeValue, 0); err != nil {
				util.Logger.Errorf("(set-large) - error setting key: %v", err)
			}
			counter++
		}
	})
}

func benchGet(b *testing.B, s store.IStore) {
	getKey, iter := getKeys("get")
	iter(func(k string) {
		if err := s.Set(k, []byte("test"), 0); err != nil {
			util.Logger.Errorf("(get) - error setting key: %v", err)
		}
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			if _, _, err := s.Get(getKey(counter)); err != nil {
				util.Logger.Errorf("(get) - error getting key: %v", err)
			}
			counter++
		}
	})
}

func benchRemove(b *testing.B, s store.IStore) {
	getKey, _ := getKeys("remove")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := getKey(counter)
			// half of the removals hit a stored key
			if counter%2 == 0 {
				if err := s.Set(key, []byte("test"), 0); err != nil {
					util.Logger.Errorf("(remove) - error setting key: %v", err)
				}
			}
			if _, err := s.Remove(key); err != nil {
				util.Logger.Errorf("(remove) - error removing key: %v", err)
			}
			counter++
		}
	})
}

func benchScan(b *testing.B, s store.IStore) {
	getKey, iter := getKeys("scan")
	iter(func(k string) {
		if err := s.Set(k, []byte("test"), 0); err != nil {
			util.Logger.Errorf("(scan) - error setting key: %v", err)
		}
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			if _, err := s.GetManySorted(getKey(counter), 10); err != nil {
				util.Logger.Errorf("(scan) - error reading range: %v", err)
			}
			counter++
		}
	})
}

func benchExpire(b *testing.B, s store.IStore) {
	getKey, _ := getKeys("expire")

	// entries with a ttl of one second, reclaimed after they ran out
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			if err := s.Set(getKey(counter), []byte("test"), 1); err != nil {
				util.Logger.Errorf("(expire) - error setting key: %v", err)
			}
			if _, _, err := s.RemoveOneExpiredEntry(); err != nil {
				util.Logger.Errorf("(expire) - error reclaiming entry: %v", err)
			}
			counter++
		}
	})
}

func benchMixed(b *testing.B, s store.IStore) {
	getKey, _ := getKeys("mixed")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := getKey(counter)
			var err error
			switch counter % 5 {
			case 0: // set
				err = s.Set(key, []byte("test"), uint32(counter%3))
			case 1: // get
				_, _, err = s.Get(key)
			case 2: // scan
				_, err = s.GetManySorted(key, 5)
			case 3: // remove
				_, err = s.Remove(key)
			case 4: // reclaim
				_, _, err = s.RemoveOneExpiredEntry()
			}

			if err != nil {
				util.Logger.Errorf("(mixed) - error performing operation (%d): %v", counter%5, err)
			}
			counter++
		}
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// opsPerSec returns ns/op and ops/sec of result, zeros for a skipped benchmark
func opsPerSec(result testing.BenchmarkResult) (float64, float64, bool) {
	if result.NsPerOp() == 0 {
		return 0, 0, false
	}
	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	return nsPerOp, 1.0 / (nsPerOp / 1e9), true
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	nsPerOp, ops, ok := opsPerSec(result)
	if !ok {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), ops)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, conf *common.Config) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return errors.Wrap(err, "failed to create CSV file")
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"SweepMode", "SweepLimit", "VirtualClock",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}

	// Write test results in the order they ran
	for _, bench := range benchmarks {
		result, ok := results[bench.name]
		if !ok {
			continue
		}
		nsPerOp, ops, ran := opsPerSec(result)

		row := []string{
			bench.name,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", ops),
			strconv.FormatBool(!ran),
			string(conf.SweepMode),
			strconv.Itoa(conf.SweepLimit),
			strconv.FormatBool(conf.VirtualClock),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return errors.Wrapf(err, "failed to write row for test %s", bench.name)
		}
	}

	writer.Flush()
	return writer.Error()
}
