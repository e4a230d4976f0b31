package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/htsql-go/htsql/catalog"
)

func TestMapType(t *testing.T) {
	cases := []struct {
		in   string
		want catalog.Domain
	}{
		{"INTEGER", catalog.DomainInteger},
		{"INT", catalog.DomainInteger},
		{"REAL", catalog.DomainFloat},
		{"NUMERIC", catalog.DomainDecimal},
		{"DATETIME", catalog.DomainDateTime},
		{"DATE", catalog.DomainDate},
		{"TEXT", catalog.DomainString},
		{"BOOLEAN", catalog.DomainBoolean},
		{"", catalog.DomainString},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, mapType(c.in).Domain, "mapType(%q)", c.in)
	}
}
