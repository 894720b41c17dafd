package models

// QueryContext is everything needed to advise on one query. Tables are kept in
// order because unqualified columns bind to the first table that has them.
type QueryContext struct {
	Query       string
	ExplainPlan []ExplainRow
	Tables      []*Table
}

// Table returns the supplied table called name.
func (q *QueryContext) Table(name string) (*Table, bool) {
	for _, t := range q.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// AddTable supplies table data, replacing an earlier table of the same name in place.
func (q *QueryContext) AddTable(table *Table) {
	for i, t := range q.Tables {
		if t.Name == table.Name {
			q.Tables[i] = table
			return
		}
	}
	q.Tables = append(q.Tables, table)
}
