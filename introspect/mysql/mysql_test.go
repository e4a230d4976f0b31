package mysql

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
		{"tinyint", catalog.DomainInteger},
		{"bigint", catalog.DomainInteger},
		{"decimal", catalog.DomainDecimal},
		{"double", catalog.DomainFloat},
		{"date", catalog.DomainDate},
		{"datetime", catalog.DomainDateTime},
		{"varchar", catalog.DomainString},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, mapType(c.in).Domain, "mapType(%q)", c.in)
	}
}

func TestBuildDSN(t *testing.T) {
	c := introspect.Config{Host: "127.0.0.1", Port: 3306, User: "root", Password: "secret", DBName: "school"}
	dsn := buildDSN(c)
	assert.Contains(t, dsn, "root:secret@tcp(127.0.0.1:3306)/school")
}
