// Package mssql loads a catalog.View from a live SQL Server database using
// denisenkom/go-mssqldb, the teacher's own driver choice
// (database/mssql/database.go), via INFORMATION_SCHEMA and sys.* catalog
// views rather than parsing DDL text.
package mssql

import (
	"database/sql"
	"fmt"

	_ "github.com/denisenkom/go-mssqldb"

	"github.com/htsql-go/htsql/catalog"
	"github.com/htsql-go/htsql/introspect"
)

func buildDSN(c introspect.Config) string {
	return fmt.Sprintf("server=%s;user id=%s;password=%s;port=%d;database=%s",
		c.Host, c.User, c.Password, c.Port, c.DBName)
}

// Load opens a new connection per c and introspects it.
func Load(c introspect.Config) (*catalog.View, error) {
	db, err := sql.Open("sqlserver", buildDSN(c))
	if err != nil {
		return nil, err
	}
	defer db.Close()
	schema := c.Schema
	if schema == "" {
		schema = "dbo"
	}
	return LoadDB(db, schema)
}

// LoadDB introspects an already-open connection.
func LoadDB(db *sql.DB, schema string) (*catalog.View, error) {
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

	return &catalog.View{Tables: tables, Engine: catalog.Engine("mssql")}, nil
}

func tableNames(db *sql.DB, schema string) ([]string, error) {
	const query = `
		SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`
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
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION`
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
		SELECT kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		  ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
		WHERE tc.TABLE_SCHEMA = @p1 AND tc.TABLE_NAME = @p2 AND tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		ORDER BY kcu.ORDINAL_POSITION`
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
		SELECT fk.CONSTRAINT_NAME, kcu1.COLUMN_NAME, kcu2.TABLE_NAME, kcu2.COLUMN_NAME
		FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS fk
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu1
		  ON fk.CONSTRAINT_NAME = kcu1.CONSTRAINT_NAME
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu2
		  ON fk.UNIQUE_CONSTRAINT_NAME = kcu2.CONSTRAINT_NAME AND kcu1.ORDINAL_POSITION = kcu2.ORDINAL_POSITION
		WHERE kcu1.TABLE_SCHEMA = @p1 AND kcu1.TABLE_NAME = @p2
		ORDER BY fk.CONSTRAINT_NAME, kcu1.ORDINAL_POSITION`
	rows, err := db.Query(query, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := map[string]*catalog.ForeignKey{}
	var order []string
	for rows.Next() {
		var name, col, targetTable, targetCol string
		if err := rows.Scan(&name, &col, &targetTable, &targetCol); err != nil {
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

func mapType(dataType string) catalog.Type {
	switch dataType {
	case "bit":
		return catalog.Simple(catalog.DomainBoolean)
	case "tinyint", "smallint", "int", "bigint":
		return catalog.Simple(catalog.DomainInteger)
	case "decimal", "numeric", "money", "smallmoney":
		return catalog.Simple(catalog.DomainDecimal)
	case "real", "float":
		return catalog.Simple(catalog.DomainFloat)
	case "date":
		return catalog.Simple(catalog.DomainDate)
	case "time":
		return catalog.Simple(catalog.DomainTime)
	case "datetime", "datetime2", "smalldatetime", "datetimeoffset":
		return catalog.Simple(catalog.DomainDateTime)
	default:
		return catalog.Simple(catalog.DomainString)
	}
}
