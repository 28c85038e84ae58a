package keyspan

// Statement is a SQL string with named parameters.
type Statement struct {
	SQL    string
	Params map[string]any
}

// NewStatement builds a statement with an empty parameter map.
func NewStatement(sql string) Statement {
	return Statement{
		SQL:    sql,
		Params: make(map[string]any),
	}
}
