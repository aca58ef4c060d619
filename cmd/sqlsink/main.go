// Command sqlsink feeds newline-delimited JSON records into relational
// tables through a batching write buffer.
//
//	sqlsink validate -c sink.yaml
//	sqlsink destinations -c sink.yaml
//	crawler | sqlsink ingest -c sink.yaml -
package main

import (
	"os"

	// register all backends with the storage factory.
	_ "sqlsink/internal/storage/all"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
