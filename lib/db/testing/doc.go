// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - testing: A comprehensive test suite for validating conformance to the KVDB interface contract
//   - benchmark: Performance tests for measuring throughput of common database operations
//
// Every test creates its databases on a clock.VirtualClock, so expiry is tested
// deterministically without sleeping.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(records []db.Record, c clock.Clock) db.KVDB {
//		return NewMyDatabase(records, c)
//	}
//
//	// Running the standard test suite
//	dbtesting.RunKVDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunKVDBBenchmarks(b, "MyDatabase", factory)
package testing
