package dialect

func init() {
	register(&Policy{
		Name:    Oracle,
		Boolean: BooleanZeroOne, // no native boolean in SELECT-list position pre-23c
		Paging:  PagingFetchFirst,
		DateLiteral:     func(c string) string { return "DATE '" + c + "'" },
		TimeLiteral:     func(c string) string { return "TIMESTAMP '1970-01-01 " + c + "'" },
		DateTimeLiteral: func(c string) string { return "TIMESTAMP '" + c + "'" },
		Concat: func(ops []string) string { return join(ops, " || ") },

		LikeCaseSensitive: true,
		ILikeOperator:     "",

		QuoteIdent: quoteWith('"', '"'),

		IntDivOperator:  "/",
		IntDivTruncates: true,

		MaxIdentifierLength: 128,

		EveryEmptyTrue:       true,
		MaxDistinctExpansion: 6,
		NativeEnum:           false,
		DistinctEq: func(l, r string) string { return "(DECODE(" + l + ", " + r + ", 1, 0) = 1)" },
	})
}
