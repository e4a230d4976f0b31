package dialect

func init() {
	register(&Policy{
		Name:    MSSQL,
		Boolean: BooleanZeroOne, // BIT column, surfaced as 0/1 in expression position
		Paging:  PagingRowNumber,
		DateLiteral:     func(c string) string { return "CONVERT(date, '" + c + "')" },
		TimeLiteral:     func(c string) string { return "CONVERT(time, '" + c + "')" },
		DateTimeLiteral: func(c string) string { return "CONVERT(datetime2, '" + c + "')" },
		Concat: func(ops []string) string { return join(ops, " + ") },

		LikeCaseSensitive: false, // collation-dependent, default case-insensitive
		ILikeOperator:     "",

		QuoteIdent: quoteWith('[', ']'),

		IntDivOperator:  "/",
		IntDivTruncates: true,

		MaxIdentifierLength: 128,

		EveryEmptyTrue:       true,
		MaxDistinctExpansion: 6,
		NativeEnum:           false,
	})
}
