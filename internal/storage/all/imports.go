// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories with the storage package. Importing it makes the kinds
// "postgres", "mssql", "mysql" and "sqlite" available to storage.New.
//
//	import _ "sqlsink/internal/storage/all"
//
// A binary that needs only a subset can import the backends it wants instead.
package all

import (
	_ "sqlsink/internal/storage/mssql"
	_ "sqlsink/internal/storage/mysql"
	_ "sqlsink/internal/storage/postgres"
	_ "sqlsink/internal/storage/sqlite"
)
