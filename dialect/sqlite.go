package dialect

func init() {
	register(&Policy{
		Name:    SQLite,
		Boolean: BooleanNative,
		Paging:  PagingLimitOffset,
		DateLiteral:     func(c string) string { return "'" + c + "'" },
		TimeLiteral:     func(c string) string { return "'" + c + "'" },
		DateTimeLiteral: func(c string) string { return "'" + c + "'" },
		Concat: func(ops []string) string { return join(ops, " || ") },

		LikeCaseSensitive: false, // LIKE on TEXT is case-insensitive for ASCII by default
		ILikeOperator:     "",

		QuoteIdent: quoteWith('"', '"'),

		IntDivOperator:  "/",
		IntDivTruncates: true,

		MaxIdentifierLength: 1 << 20, // no engine-enforced limit worth modeling

		EveryEmptyTrue:        true,
		MaxDistinctExpansion:  6,
		NativeEnum:            false,
		DistinctEq: func(l, r string) string { return "(" + l + " IS " + r + ")" },
	})
}

func join(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}
