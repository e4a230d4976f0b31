package mssql

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/htsql-go/htsql/catalog"
	"github.com/htsql-go/htsql/introspect"
)

func TestMapType(t *testing.T) {
	cases := []struct {
		in   string
		want catalog.Domain
	}{
		{"bit", catalog.DomainBoolean},
		{"int", catalog.DomainInteger},
		{"decimal", catalog.DomainDecimal},
		{"float", catalog.DomainFloat},
		{"date", catalog.DomainDate},
		{"datetime2", catalog.DomainDateTime},
		{"nvarchar", catalog.DomainString},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, mapType(c.in).Domain, "mapType(%q)", c.in)
	}
}

func TestBuildDSN(t *testing.T) {
	c := introspect.Config{Host: "localhost", Port: 1433, User: "sa", Password: "secret", DBName: "school"}
	dsn := buildDSN(c)
	assert.Contains(t, dsn, "server=localhost")
	assert.Contains(t, dsn, "database=school")
}
