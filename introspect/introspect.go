// Package introspect builds a catalog.View from a live database connection
// (spec §1: "catalog introspection from live database drivers" is an
// external collaborator, outside the compiler's pure core). Each backend
// subpackage (postgres, mysql, sqlite, mssql) opens a connection with the
// corresponding teacher driver and queries the engine's information-schema
// views directly -- never DDL text -- to build the Table/Column/UniqueKey/
// ForeignKey lists catalog.View requires.
//
// Grounded on database/{postgres,mysql,sqlite3,mssql}/database.go's
// tableNames/getColumns/getPrimaryKeyColumns/getForeignDefs query style
// (one small method per piece of schema metadata, issued as parameterized
// SQL against catalog/information_schema views, never a DDL parser): this
// package keeps that shape but narrows the query set to what catalog.View
// actually needs (name, nominal type, nullability, unique keys, foreign
// keys), since introspect never exports or diffs DDL the way the teacher's
// ExportDDLs does.
package introspect

import "github.com/htsql-go/htsql/catalog"

// Loader is the common shape every backend subpackage implements: open a
// connection (or accept an already-open *sql.DB, see each subpackage's
// LoadDB) and read back a catalog.View.
type Loader interface {
	Load() (*catalog.View, error)
}

// Config is the connection configuration shared by every backend loader,
// mirroring database.Config's field set (host/port/user/password/dbname)
// from the teacher's adapter construction (database/database.go's own
// Config), narrowed to what opening a read-only introspection connection
// needs.
type Config struct {
	Host     string
	Port     uint
	User     string
	Password string
	DBName   string
	Schema   string // default/only schema to introspect; "" means the engine's default
}
