package keyspan

import (
	"github.com/keyspandb/keyspan-go-sdk/internal/api"
)

// Insert adds new rows. The commit fails if a row already exists.
func Insert(table string, columns []string, values ...[]any) Mutation {
	return Mutation{Insert: write(table, columns, values)}
}

// Update rewrites columns of existing rows. The commit fails if a row
// does not exist.
func Update(table string, columns []string, values ...[]any) Mutation {
	return Mutation{Update: write(table, columns, values)}
}

// InsertOrUpdate adds new rows or rewrites the named columns of
// existing ones.
func InsertOrUpdate(table string, columns []string, values ...[]any) Mutation {
	return Mutation{InsertOrUpdate: write(table, columns, values)}
}

// Replace deletes existing rows and inserts the given ones in their
// place. Columns not named revert to their defaults.
func Replace(table string, columns []string, values ...[]any) Mutation {
	return Mutation{Replace: write(table, columns, values)}
}

// Delete removes the rows named by keySet. Deleting absent rows is not
// an error.
func Delete(table string, keySet KeySet) Mutation {
	return Mutation{Delete: &api.Delete{Table: table, KeySet: keySet}}
}

func write(table string, columns []string, values [][]any) *api.Write {
	return &api.Write{
		Table:   table,
		Columns: columns,
		Values:  values,
	}
}
