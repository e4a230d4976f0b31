package postgres

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
		{"boolean", catalog.DomainBoolean},
		{"integer", catalog.DomainInteger},
		{"bigint", catalog.DomainInteger},
		{"numeric", catalog.DomainDecimal},
		{"double precision", catalog.DomainFloat},
		{"date", catalog.DomainDate},
		{"timestamp without time zone", catalog.DomainDateTime},
		{"text", catalog.DomainString},
		{"jsonb", catalog.DomainString},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, mapType(c.in).Domain, "mapType(%q)", c.in)
	}
}

func TestBuildDSN(t *testing.T) {
	c := introspect.Config{Host: "localhost", Port: 5432, User: "postgres", Password: "secret", DBName: "school"}
	dsn := buildDSN(c)
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "dbname=school")
	assert.Contains(t, dsn, "password=secret")
}
