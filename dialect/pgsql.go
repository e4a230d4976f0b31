package dialect

func init() {
	register(&Policy{
		Name:    PgSQL,
		Boolean: BooleanNative,
		Paging:  PagingLimitOffset,
		DateLiteral:     func(c string) string { return "DATE '" + c + "'" },
		TimeLiteral:     func(c string) string { return "TIME '" + c + "'" },
		DateTimeLiteral: func(c string) string { return "TIMESTAMP '" + c + "'" },
		Concat: func(ops []string) string { return join(ops, " || ") },

		LikeCaseSensitive: true,
		ILikeOperator:     "ILIKE",

		QuoteIdent: quoteWith('"', '"'),

		IntDivOperator:  "/",
		IntDivTruncates: true,

		MaxIdentifierLength: 63,

		EveryEmptyTrue:       true,
		MaxDistinctExpansion: 6,
		NativeEnum:           true, // CREATE TYPE ... AS ENUM
		DistinctEq: func(l, r string) string { return "(" + l + " IS NOT DISTINCT FROM " + r + ")" },
	})
}
