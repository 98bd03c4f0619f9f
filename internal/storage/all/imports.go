// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories with the storage package. Importing it makes the following
// storage kinds available at runtime:
//
//   - "postgres" (searchetl/internal/storage/postgres)
//   - "sqlite"   (searchetl/internal/storage/sqlite)
//
// Binaries that only need a subset of backends can blank-import the specific
// backend packages instead.
package all

import (
	_ "searchetl/internal/storage/postgres"
	_ "searchetl/internal/storage/sqlite"
)
