// Command htsqlc is the reference CLI binary for the HTSQL compiler
// (SPEC_FULL.md's AMBIENT STACK section): it introspects a live database,
// applies optional YAML catalog overrides, compiles one HTSQL query
// against it, and prints the resulting SQL and output profile.
//
// Grounded on cmd/psqldef/psqldef.go's flag-parsing shape
// (github.com/jessevdk/go-flags, a --password-prompt flag backed by
// golang.org/x/term.ReadPassword) and cmd/mysqldef/mysqldef.go's
// connection-then-run structure, adapted from "parse flags, connect,
// diff/apply DDL" to "parse flags, introspect, compile one query".
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/k0kubun/pp/v3"
	"golang.org/x/term"

	"github.com/htsql-go/htsql/catalog"
	"github.com/htsql-go/htsql/dialect"
	"github.com/htsql-go/htsql/htsql"
	"github.com/htsql-go/htsql/introspect"
	introspectmssql "github.com/htsql-go/htsql/introspect/mssql"
	introspectmysql "github.com/htsql-go/htsql/introspect/mysql"
	introspectpg "github.com/htsql-go/htsql/introspect/postgres"
	introspectsqlite "github.com/htsql-go/htsql/introspect/sqlite"
)

type options struct {
	Dialect     string `long:"dialect" description:"target dialect: sqlite, pgsql, mysql, oracle, mssql" required:"true"`
	Host        string `short:"h" long:"host" description:"database host" default:"127.0.0.1"`
	Port        uint   `short:"p" long:"port" description:"database port"`
	User        string `short:"U" long:"user" description:"database user"`
	Password    string `short:"W" long:"password" description:"database password"`
	Prompt      bool   `long:"password-prompt" description:"prompt for the database password"`
	DBName      string `long:"db" description:"database name"`
	Schema      string `long:"schema" description:"schema to introspect (default per engine)"`
	File        string `long:"file" description:"SQLite database file (dialect=sqlite only)"`
	CatalogFile string `long:"catalog-file" description:"YAML catalog overrides file"`
	Explain     bool   `long:"explain" description:"dump the output profile (row shape) alongside the SQL"`
	Help        bool   `long:"help" description:"show this help"`
}

func parseOptions(args []string) (*options, []string) {
	var opts options
	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[option...] '/query/expression'"
	rest, err := parser.ParseArgs(args)
	if err != nil || opts.Help {
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}
	return &opts, rest
}

func main() {
	opts, rest := parseOptions(os.Args[1:])
	if len(rest) != 1 {
		fmt.Fprintln(os.Stderr, "htsqlc: exactly one query argument is required")
		os.Exit(1)
	}
	query := rest[0]

	if opts.Prompt {
		fmt.Fprint(os.Stderr, "Password: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			slog.Error("failed to read password", "error", err)
			os.Exit(1)
		}
		opts.Password = string(pw)
	}

	view, err := loadCatalog(opts)
	if err != nil {
		slog.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}

	if opts.CatalogFile != "" {
		data, rerr := os.ReadFile(opts.CatalogFile)
		if rerr != nil {
			slog.Error("failed to read catalog file", "error", rerr)
			os.Exit(1)
		}
		ov, perr := catalog.ParseOverrides(data)
		if perr != nil {
			slog.Error("failed to parse catalog overrides", "error", perr)
			os.Exit(1)
		}
		view = view.ApplyOverrides(ov)
	}

	res, cerr := htsql.Compile(view, dialect.Name(opts.Dialect), query)
	if cerr != nil {
		fmt.Fprintf(os.Stderr, "%s\n", cerr.Error())
		os.Exit(1)
	}

	if opts.Explain {
		pp.Println(res.Profile)
	}

	fmt.Println(res.SQL)
	for i := range res.Profile.Children {
		if nested, ok := res.NestedSQL[i]; ok {
			fmt.Printf("-- nested segment %d (leading %d link columns)\n%s\n", i, nested.LinkWidth, nested.SQL)
		}
	}
}

// loadCatalog builds the catalog.View to compile against: a live
// introspection connection for every dialect with a wired driver. For
// dialect=oracle, which has no driver (see DESIGN.md), it requires
// --catalog-file and returns a View with no tables; that file is parsed
// only as overrides, which cannot declare tables.
func loadCatalog(opts *options) (*catalog.View, error) {
	switch dialect.Name(opts.Dialect) {
	case dialect.SQLite:
		if opts.File == "" {
			return nil, fmt.Errorf("--file is required for dialect=sqlite")
		}
		return introspectsqlite.Load(opts.File)
	case dialect.PgSQL:
		return introspectpg.Load(introspectConfig(opts))
	case dialect.MySQL:
		return introspectmysql.Load(introspectConfig(opts))
	case dialect.MSSQL:
		return introspectmssql.Load(introspectConfig(opts))
	case dialect.Oracle:
		if opts.CatalogFile == "" {
			return nil, fmt.Errorf("dialect=oracle has no live catalog loader; supply --catalog-file")
		}
		return &catalog.View{Engine: catalog.Engine(opts.Dialect)}, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", opts.Dialect)
	}
}

func introspectConfig(opts *options) introspect.Config {
	return introspect.Config{
		Host:     opts.Host,
		Port:     opts.Port,
		User:     opts.User,
		Password: opts.Password,
		DBName:   opts.DBName,
		Schema:   opts.Schema,
	}
}
