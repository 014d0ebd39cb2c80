// Package cmd implements the command-line interface of kvstorage. All
// commands run against stores held in the process, there is no server.
//
// The package is organized into several subpackages:
//
//   - demo: Replays a short fixed scenario and prints the results
//   - shell: Interactive line-oriented shell over one or more namespaces
//   - perf: Benchmarks of the store operations with optional CSV export
//   - util: Shared utilities for flags, configuration and the runtime (internal use)
//
// Every flag can also be set through an environment variable with the
// KVSTORAGE_ prefix (e.g. KVSTORAGE_SWEEP_INTERVAL=5s) or a config file.
//
// See kvstorage -help for a list of all commands.
package cmd
