// Package postgres loads a catalog.View by querying a live PostgreSQL
// database's information_schema views, adapted from
// database/postgres/database.go's tableNames/getColumns/
// getPrimaryKeyColumns/getForeignDefs query shape (narrowed: introspect
// never exports DDL text, only the table/column/key facts catalog.View
// needs).
package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/htsql-go/htsql/catalog"
	"github.com/htsql-go/htsql/introspect"
)

// buildDSN follows postgresBuildDSN's libpq key=value shape from
// database/postgres/database.go, narrowed to the fields introspect.Config
// carries.
func buildDSN(c introspect.Config) string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.DBName)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// Load opens a new connection per c and introspects it.
func Load(c introspect.Config) (*catalog.View, error) {
	db, err := sql.Open("postgres", buildDSN(c))
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return LoadDB(db, c.Schema)
}

// LoadDB introspects an already-open connection, for callers (tests, a
// long-lived CLI session) that manage the *sql.DB lifetime themselves.
func LoadDB(db *sql.DB, schema string) (*catalog.View, error) {
	if schema == "" {
		schema = "public"
	}

	names, err := tableNames(db, schema)
	if err != nil {
		return nil, err
	}

	tables := make([]catalog.Table, 0, len(names))
	for _, name := range names {
		cols, err := columns(db, schema, name)
		if err != nil {
			return nil, fmt.Errorf("introspecting %s.%s: %w", schema, name, err)
		}
		pk, err := primaryKey(db, schema, name)
		if err != nil {
			return nil, fmt.Errorf("introspecting primary key of %s.%s: %w", schema, name, err)
		}
		fks, err := foreignKeys(db, schema, name)
		if err != nil {
			return nil, fmt.Errorf("introspecting foreign keys of %s.%s: %w", schema, name, err)
		}
		var keys []catalog.UniqueKey
		if pk != nil {
			keys = append(keys, *pk)
		}
		tables = append(tables, catalog.Table{
			Name:        name,
			Columns:     cols,
			UniqueKeys:  keys,
			ForeignKeys: fks,
		})
	}

	return &catalog.View{Tables: tables, Engine: catalog.Engine("pgsql")}, nil
}

func tableNames(db *sql.DB, schema string) ([]string, error) {
	const query = `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`
	rows, err := db.Query(query, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func columns(db *sql.DB, schema, table string) ([]catalog.Column, error) {
	const query = `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`
	rows, err := db.Query(query, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []catalog.Column
	for rows.Next() {
		var name, dataType, isNullable string
		if err := rows.Scan(&name, &dataType, &isNullable); err != nil {
			return nil, err
		}
		cols = append(cols, catalog.Column{
			Name:     name,
			Type:     mapType(dataType),
			Nullable: isNullable == "YES",
		})
	}
	return cols, rows.Err()
}

func primaryKey(db *sql.DB, schema, table string) (*catalog.UniqueKey, error) {
	const query = `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = $1 AND tc.table_name = $2 AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position`
	rows, err := db.Query(query, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, nil
	}
	return &catalog.UniqueKey{Columns: cols, Primary: true}, nil
}

func foreignKeys(db *sql.DB, schema, table string) ([]catalog.ForeignKey, error) {
	const query = `
		SELECT kcu.column_name, ccu.table_name AS target_table, ccu.column_name AS target_column,
		       tc.constraint_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		WHERE tc.table_schema = $1 AND tc.table_name = $2 AND tc.constraint_type = 'FOREIGN KEY'
		ORDER BY tc.constraint_name, kcu.ordinal_position`
	rows, err := db.Query(query, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := map[string]*catalog.ForeignKey{}
	var order []string
	for rows.Next() {
		var col, targetTable, targetCol, name string
		if err := rows.Scan(&col, &targetTable, &targetCol, &name); err != nil {
			return nil, err
		}
		fk, ok := byName[name]
		if !ok {
			fk = &catalog.ForeignKey{Target: targetTable}
			byName[name] = fk
			order = append(order, name)
		}
		fk.Columns = append(fk.Columns, col)
		fk.TargetColumns = append(fk.TargetColumns, targetCol)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fks := make([]catalog.ForeignKey, 0, len(order))
	for _, name := range order {
		fks = append(fks, *byName[name])
	}
	return fks, nil
}

// mapType folds a Postgres information_schema.columns.data_type string
// into one of the compiler's closed domain set (spec §3). Types outside
// the ones HTSQL models fall back to string, the same conservative default
// the teacher's own column.GetDataType uses for anything it doesn't have a
// special case for.
func mapType(dataType string) catalog.Type {
	switch dataType {
	case "boolean":
		return catalog.Simple(catalog.DomainBoolean)
	case "smallint", "integer", "bigint":
		return catalog.Simple(catalog.DomainInteger)
	case "numeric", "decimal", "money":
		return catalog.Simple(catalog.DomainDecimal)
	case "real", "double precision":
		return catalog.Simple(catalog.DomainFloat)
	case "date":
		return catalog.Simple(catalog.DomainDate)
	case "time without time zone", "time with time zone":
		return catalog.Simple(catalog.DomainTime)
	case "timestamp without time zone", "timestamp with time zone":
		return catalog.Simple(catalog.DomainDateTime)
	default:
		return catalog.Simple(catalog.DomainString)
	}
}
