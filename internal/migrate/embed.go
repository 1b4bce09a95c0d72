package migrate

import (
	"embed"
	"io/fs"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

//go:embed seeds/*.sql
var seedFiles embed.FS

// Migrations returns the schema migrations compiled into the binary.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

// Seeds returns the demo seed files compiled into the binary.
func Seeds() fs.FS {
	sub, err := fs.Sub(seedFiles, "seeds")
	if err != nil {
		panic(err)
	}
	return sub
}
