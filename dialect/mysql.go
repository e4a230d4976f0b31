package dialect

func init() {
	register(&Policy{
		Name:    MySQL,
		Boolean: BooleanZeroOne, // no native boolean; TINYINT(1) surfaces as 0/1
		Paging:  PagingLimitOffset,
		DateLiteral:     func(c string) string { return "DATE('" + c + "')" },
		TimeLiteral:     func(c string) string { return "TIME('" + c + "')" },
		DateTimeLiteral: func(c string) string { return "TIMESTAMP('" + c + "')" },
		Concat: func(ops []string) string { return "CONCAT(" + join(ops, ", ") + ")" },

		LikeCaseSensitive: false, // collation-dependent, default case-insensitive
		ILikeOperator:     "",    // LIKE already case-insensitive under default collation

		QuoteIdent: quoteWith('`', '`'),

		IntDivOperator:  "DIV",
		IntDivTruncates: true,

		MaxIdentifierLength: 64,

		EveryEmptyTrue:       true,
		MaxDistinctExpansion: 6,
		NativeEnum:           true, // column-level ENUM(...) type
		DistinctEq: func(l, r string) string { return "(" + l + " <=> " + r + ")" },
	})
}
