package sql

import (
	"fmt"
	"regexp"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver" // value expression driver required by the parser

	"github.com/ekaya-inc/ekaya-advisor/pkg/apperrors"
)

// ClauseRole is the clause a column reference was found in.
type ClauseRole string

const (
	RoleWhere   ClauseRole = "where"
	RoleJoin    ClauseRole = "join"
	RoleOrderBy ClauseRole = "order_by"
)

// ColumnRef is a column reference as written in the query, with table aliases
// replaced by the table they stand for. Table is empty for bare references.
type ColumnRef struct {
	Table  string
	Column string
}

// Qualified reports whether the reference names its table.
func (c ColumnRef) Qualified() bool {
	return c.Table != ""
}

func (c ColumnRef) String() string {
	if c.Table == "" {
		return c.Column
	}
	return c.Table + "." + c.Column
}

// QueryReferences is the structured breakdown of one SQL statement.
type QueryReferences struct {
	// Tables are the real tables referenced anywhere in the statement, in order
	// of first appearance (outer statement first).
	Tables []string

	// Columns holds column references per clause role, in query order.
	Columns map[ClauseRole][]ColumnRef

	// HasLimit is true when the outermost statement has LIMIT and/or OFFSET.
	HasLimit bool
}

// ColumnsFor returns the references found in clauses of the given role.
func (r *QueryReferences) ColumnsFor(role ClauseRole) []ColumnRef {
	return r.Columns[role]
}

// doubleQuotedPattern matches "token" with no whitespace inside. MariaDB treats
// double quotes as string delimiters unless ANSI_QUOTES is set, so these are
// rewritten to single-quoted literals before parsing.
var doubleQuotedPattern = regexp.MustCompile(`"(\S+)"`)

// NormalizeQuotes rewrites double-quoted tokens into single-quoted literals.
func NormalizeQuotes(query string) string {
	return doubleQuotedPattern.ReplaceAllString(query, "'${1}'")
}

// ExtractReferences parses one SQL statement and returns the tables and
// per-clause column references it uses. The query is parsed fresh on every
// call. Malformed SQL returns an error wrapping apperrors.ErrParse and no
// partial result.
func ExtractReferences(query string) (*QueryReferences, error) {
	statement, err := NormalizeStatement(query)
	if err != nil {
		return nil, err
	}

	stmts, _, err := parser.New().ParseSQL(NormalizeQuotes(statement))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrParse, err)
	}
	if len(stmts) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one statement, got %d", apperrors.ErrParse, len(stmts))
	}

	e := newExtractor()
	e.collectNames(stmts[0])
	e.run(stmts[0])
	e.appendRemainingTables(stmts[0])

	return e.refs, nil
}

type extractor struct {
	refs    *QueryReferences
	aliases map[string]string // every alias in the statement tree -> table
	ctes    map[string]bool
	seen    map[string]bool
	queue   []pending
}

// pending is a nested statement waiting to be processed, with the scope of
// the statement that contains it.
type pending struct {
	node   ast.Node
	parent *scope
}

// scope holds the table names and aliases declared by one statement's own
// FROM clause. Qualifiers not declared here resolve in the enclosing scope.
type scope struct {
	tables map[string]string
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{tables: make(map[string]string), parent: parent}
}

// declare registers the sources of a FROM tree. Derived tables map to their
// own alias so they shadow outer names without resolving to a real table.
func (s *scope) declare(node ast.ResultSetNode) {
	switch n := node.(type) {
	case *ast.Join:
		if n == nil {
			return
		}
		s.declare(n.Left)
		s.declare(n.Right)
	case *ast.TableSource:
		switch src := n.Source.(type) {
		case *ast.TableName:
			if n.AsName.O != "" {
				s.tables[n.AsName.O] = src.Name.O
			} else {
				s.tables[src.Name.O] = src.Name.O
			}
		case *ast.Join:
			s.declare(src)
		default:
			if n.AsName.O != "" {
				s.tables[n.AsName.O] = n.AsName.O
			}
		}
	case *ast.TableName:
		s.tables[n.Name.O] = n.Name.O
	}
}

// resolve maps a qualifier to a table, innermost scope first.
func (s *scope) resolve(qualifier string) string {
	for sc := s; sc != nil; sc = sc.parent {
		if table, ok := sc.tables[qualifier]; ok {
			return table
		}
	}
	return qualifier
}

func newExtractor() *extractor {
	return &extractor{
		refs: &QueryReferences{
			Columns: make(map[ClauseRole][]ColumnRef),
		},
		aliases: make(map[string]string),
		ctes:    make(map[string]bool),
		seen:    make(map[string]bool),
	}
}

// collectNames records table aliases and CTE names before any column is resolved.
func (e *extractor) collectNames(stmt ast.StmtNode) {
	stmt.Accept(&nameVisitor{e: e})
}

type nameVisitor struct {
	e *extractor
}

func (v *nameVisitor) Enter(n ast.Node) (ast.Node, bool) {
	switch node := n.(type) {
	case *ast.SelectStmt:
		v.e.registerCTEs(node.With)
	case *ast.SetOprStmt:
		v.e.registerCTEs(node.With)
	case *ast.UpdateStmt:
		v.e.registerCTEs(node.With)
	case *ast.DeleteStmt:
		v.e.registerCTEs(node.With)
	case *ast.TableSource:
		if tn, ok := node.Source.(*ast.TableName); ok && node.AsName.O != "" {
			v.e.aliases[node.AsName.O] = tn.Name.O
		}
	}
	return n, false
}

func (e *extractor) registerCTEs(w *ast.WithClause) {
	if w == nil {
		return
	}
	for _, cte := range w.CTEs {
		e.ctes[cte.Name.O] = true
	}
}

func (v *nameVisitor) Leave(n ast.Node) (ast.Node, bool) {
	return n, true
}

// run processes the outer statement and then every nested statement it finds.
func (e *extractor) run(stmt ast.StmtNode) {
	e.refs.HasLimit = hasLimit(stmt)

	e.queue = append(e.queue, pending{node: stmt})
	for len(e.queue) > 0 {
		next := e.queue[0]
		e.queue = e.queue[1:]
		e.statement(next.node, newScope(next.parent))
	}
}

func hasLimit(stmt ast.StmtNode) bool {
	switch s := stmt.(type) {
	case *ast.SelectStmt:
		return s.Limit != nil
	case *ast.SetOprStmt:
		return s.Limit != nil
	case *ast.UpdateStmt:
		return s.Limit != nil
	case *ast.DeleteStmt:
		return s.Limit != nil
	}
	return false
}

func (e *extractor) statement(node ast.Node, sc *scope) {
	switch s := node.(type) {
	case *ast.SelectStmt:
		if s.From != nil {
			sc.declare(s.From.TableRefs)
		}
		e.with(s.With, sc)
		if s.From != nil {
			e.joinTree(s.From.TableRefs, sc)
		}
		e.walk(s.Where, RoleWhere, true, sc)
		e.orderBy(s.OrderBy, sc)
		if s.Fields != nil {
			e.walk(s.Fields, "", false, sc)
		}
		if s.GroupBy != nil {
			e.walk(s.GroupBy, "", false, sc)
		}
		if s.Having != nil {
			e.walk(s.Having, "", false, sc)
		}

	case *ast.SetOprStmt:
		e.with(s.With, sc)
		if s.SelectList != nil {
			e.walk(s.SelectList, "", false, sc)
		}
		e.orderBy(s.OrderBy, sc)

	case *ast.UpdateStmt:
		if s.TableRefs != nil {
			sc.declare(s.TableRefs.TableRefs)
		}
		e.with(s.With, sc)
		if s.TableRefs != nil {
			e.joinTree(s.TableRefs.TableRefs, sc)
		}
		for _, assignment := range s.List {
			e.walk(assignment.Expr, "", false, sc)
		}
		e.walk(s.Where, RoleWhere, true, sc)
		e.orderBy(s.Order, sc)

	case *ast.DeleteStmt:
		if s.TableRefs != nil {
			sc.declare(s.TableRefs.TableRefs)
		}
		e.with(s.With, sc)
		if s.TableRefs != nil {
			e.joinTree(s.TableRefs.TableRefs, sc)
		}
		e.walk(s.Where, RoleWhere, true, sc)
		e.orderBy(s.Order, sc)

	case *ast.InsertStmt:
		if s.Table != nil {
			sc.declare(s.Table.TableRefs)
			e.joinTree(s.Table.TableRefs, sc)
		}
		if s.Select != nil {
			e.queue = append(e.queue, pending{node: s.Select, parent: sc})
		}
	}
}

func (e *extractor) with(w *ast.WithClause, sc *scope) {
	if w == nil {
		return
	}
	for _, cte := range w.CTEs {
		if cte.Query != nil {
			e.walk(cte.Query, "", false, sc)
		}
	}
}

func (e *extractor) orderBy(clause *ast.OrderByClause, sc *scope) {
	if clause == nil {
		return
	}
	for _, item := range clause.Items {
		e.walk(item.Expr, RoleOrderBy, true, sc)
	}
}

// joinTree records tables in FROM order, collects ON/USING columns and queues
// derived tables.
func (e *extractor) joinTree(node ast.ResultSetNode, sc *scope) {
	switch n := node.(type) {
	case *ast.Join:
		if n == nil {
			return
		}
		e.joinTree(n.Left, sc)
		e.joinTree(n.Right, sc)
		if n.On != nil {
			e.walk(n.On.Expr, RoleJoin, true, sc)
		}
		for _, col := range n.Using {
			e.addColumn(RoleJoin, col, sc)
		}
	case *ast.TableSource:
		switch src := n.Source.(type) {
		case *ast.TableName:
			e.addTable(src.Name.O)
		case *ast.Join:
			e.joinTree(src, sc)
		case *ast.SelectStmt, *ast.SetOprStmt:
			e.queue = append(e.queue, pending{node: src, parent: sc})
		}
	case *ast.TableName:
		e.addTable(n.Name.O)
	}
}

func (e *extractor) addTable(name string) {
	if name == "" || e.ctes[name] || e.seen[name] {
		return
	}
	e.seen[name] = true
	e.refs.Tables = append(e.refs.Tables, name)
}

func (e *extractor) addColumn(role ClauseRole, col *ast.ColumnName, sc *scope) {
	if col == nil || col.Name.O == "" {
		return
	}
	table := col.Table.O
	if table != "" {
		table = sc.resolve(table)
	}
	e.refs.Columns[role] = append(e.refs.Columns[role], ColumnRef{Table: table, Column: col.Name.O})
}

// walk visits one clause. Column references are collected under role when
// collect is set; nested statements are always queued and never descended into.
func (e *extractor) walk(node ast.Node, role ClauseRole, collect bool, sc *scope) {
	if node == nil {
		return
	}
	node.Accept(&clauseVisitor{e: e, role: role, collect: collect, scope: sc})
}

type clauseVisitor struct {
	e       *extractor
	role    ClauseRole
	collect bool
	scope   *scope
}

func (v *clauseVisitor) Enter(n ast.Node) (ast.Node, bool) {
	switch node := n.(type) {
	case *ast.SelectStmt, *ast.SetOprStmt:
		v.e.queue = append(v.e.queue, pending{node: node, parent: v.scope})
		return n, true
	case *ast.ColumnNameExpr:
		if v.collect {
			v.e.addColumn(v.role, node.Name, v.scope)
		}
		return n, true
	}
	return n, false
}

func (v *clauseVisitor) Leave(n ast.Node) (ast.Node, bool) {
	return n, true
}

// appendRemainingTables adds tables only reachable through statement shapes
// the clause walk does not model (e.g. multi-table DELETE target lists).
func (e *extractor) appendRemainingTables(stmt ast.StmtNode) {
	v := &tableNameVisitor{}
	stmt.Accept(v)
	for _, name := range v.names {
		if target, isAlias := e.aliases[name]; isAlias && target != name && !e.seen[name] {
			continue
		}
		e.addTable(name)
	}
}

type tableNameVisitor struct {
	names []string
}

func (v *tableNameVisitor) Enter(n ast.Node) (ast.Node, bool) {
	if tn, ok := n.(*ast.TableName); ok {
		v.names = append(v.names, tn.Name.O)
	}
	return n, false
}

func (v *tableNameVisitor) Leave(n ast.Node) (ast.Node, bool) {
	return n, true
}
