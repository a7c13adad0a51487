// Package sqldriver implements storage.Driver over ent's dialect driver. The
// sqlite and postgres packages open a *sql.DB with their own database driver
// and wrap it with entsql.OpenDB; every statement here is built with the
// entsql builders for that dialect.
package sqldriver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/lamdag/pkg/storage"
	"github.com/papercomputeco/lamdag/pkg/term"
)

const (
	termsTable = "terms"
	nodesTable = "term_nodes"
)

var nodeColumns = []string{"term_name", "ord", "id", "kind", "idx", "body", "fun", "arg"}

// nodeBatch is the number of nodes per INSERT, which keeps a statement below
// the bind parameter limits of both databases.
const nodeBatch = 500

// Driver implements storage.Driver on an ent dialect driver.
type Driver struct {
	drv *entsql.Driver
}

// New creates the schema if needed and returns a driver that owns drv.
func New(ctx context.Context, drv *entsql.Driver) (*Driver, error) {
	d := &Driver{drv: drv}
	for _, stmt := range d.schema() {
		query, args := stmt.Query()
		if err := drv.Exec(ctx, query, args, nil); err != nil {
			return nil, fmt.Errorf("creating %s schema: %w", drv.Dialect(), err)
		}
	}
	return d, nil
}

func (d *Driver) builder() *entsql.DialectBuilder {
	return entsql.Dialect(d.drv.Dialect())
}

func (d *Driver) schema() []entsql.Querier {
	b := d.builder()
	column := func(name, typ string) *entsql.ColumnBuilder {
		return b.Column(name).Type(typ).Attr("NOT NULL")
	}

	terms := b.CreateTable(termsTable).IfNotExists().
		Columns(
			column("name", "TEXT"),
			column("root", "INTEGER"),
			column("free_names", "TEXT"),
		).
		PrimaryKey("name")

	nodes := b.CreateTable(nodesTable).IfNotExists().
		Columns(
			column("term_name", "TEXT"),
			column("ord", "INTEGER"),
			column("id", "INTEGER"),
			column("kind", "INTEGER"),
			column("idx", "INTEGER"),
			column("body", "INTEGER"),
			column("fun", "INTEGER"),
			column("arg", "INTEGER"),
		).
		PrimaryKey("term_name", "ord").
		ForeignKeys(entsql.ForeignKey().
			Columns("term_name").
			Reference(entsql.Reference().Table(termsTable).Columns("name")).
			OnDelete("CASCADE"))

	return []entsql.Querier{terms, nodes}
}

// DB returns the underlying database.
func (d *Driver) DB() *sql.DB {
	return d.drv.DB()
}

func exec(ctx context.Context, eq dialect.ExecQuerier, q entsql.Querier) error {
	query, args := q.Query()
	return eq.Exec(ctx, query, args, nil)
}

func query(ctx context.Context, eq dialect.ExecQuerier, q entsql.Querier) (*entsql.Rows, error) {
	query, args := q.Query()
	rows := &entsql.Rows{}
	if err := eq.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *Driver) Put(ctx context.Context, name string, g *term.Graph) (bool, error) {
	if name == "" {
		return false, storage.ErrInvalidName
	}
	if g == nil {
		return false, storage.ErrNilGraph
	}

	tx, err := d.drv.Tx(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	old, err := d.load(ctx, tx, name)
	switch {
	case err == nil && storage.SameGraph(old, g):
		return false, nil
	case err != nil && !errors.As(err, &storage.NotFoundError{}):
		return false, err
	}

	if err := d.deleteTx(ctx, tx, name); err != nil {
		return false, err
	}

	free, err := json.Marshal(g.FreeNames)
	if err != nil {
		return false, fmt.Errorf("encoding free names: %w", err)
	}
	insertTerm := d.builder().Insert(termsTable).
		Columns("name", "root", "free_names").
		Values(name, int64(g.Root), string(free))
	if err := exec(ctx, tx, insertTerm); err != nil {
		return false, fmt.Errorf("inserting term %s: %w", name, err)
	}

	for start := 0; start < len(g.Nodes); start += nodeBatch {
		end := min(start+nodeBatch, len(g.Nodes))
		insert := d.builder().Insert(nodesTable).Columns(nodeColumns...)
		for i, n := range g.Nodes[start:end] {
			insert.Values(name, start+i, int64(n.ID), int(n.Kind), n.Index, int64(n.Body), int64(n.Fun), int64(n.Arg))
		}
		if err := exec(ctx, tx, insert); err != nil {
			return false, fmt.Errorf("inserting nodes %d..%d of %s: %w", start, end, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing term %s: %w", name, err)
	}
	return true, nil
}

func (d *Driver) Get(ctx context.Context, name string) (*term.Graph, error) {
	return d.load(ctx, d.drv, name)
}

func (d *Driver) load(ctx context.Context, eq dialect.ExecQuerier, name string) (*term.Graph, error) {
	b := d.builder()

	rows, err := query(ctx, eq, b.Select("root", "free_names").
		From(entsql.Table(termsTable)).
		Where(entsql.EQ("name", name)))
	if err != nil {
		return nil, fmt.Errorf("reading term %s: %w", name, err)
	}
	var (
		found bool
		root  int64
		free  string
	)
	if rows.Next() {
		found = true
		err = rows.Scan(&root, &free)
	}
	if err == nil {
		err = rows.Err()
	}
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("reading term %s: %w", name, err)
	}
	if !found {
		return nil, storage.NotFoundError{Name: name}
	}

	g := &term.Graph{Root: term.NodeID(root)}
	if err := json.Unmarshal([]byte(free), &g.FreeNames); err != nil {
		return nil, fmt.Errorf("decoding free names of %s: %w", name, err)
	}

	rows, err = query(ctx, eq, b.Select("id", "kind", "idx", "body", "fun", "arg").
		From(entsql.Table(nodesTable)).
		Where(entsql.EQ("term_name", name)).
		OrderBy("ord"))
	if err != nil {
		return nil, fmt.Errorf("reading nodes of %s: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, body, fun, arg int64
			kind, idx          int
		)
		if err := rows.Scan(&id, &kind, &idx, &body, &fun, &arg); err != nil {
			return nil, fmt.Errorf("scanning node of %s: %w", name, err)
		}
		g.Nodes = append(g.Nodes, term.GraphNode{
			ID:    term.NodeID(id),
			Kind:  term.Kind(kind),
			Index: idx,
			Body:  term.NodeID(body),
			Fun:   term.NodeID(fun),
			Arg:   term.NodeID(arg),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading nodes of %s: %w", name, err)
	}

	return g, nil
}

func (d *Driver) Has(ctx context.Context, name string) (bool, error) {
	return d.has(ctx, d.drv, name)
}

func (d *Driver) has(ctx context.Context, eq dialect.ExecQuerier, name string) (bool, error) {
	rows, err := query(ctx, eq, d.builder().Select(entsql.Count("*")).
		From(entsql.Table(termsTable)).
		Where(entsql.EQ("name", name)))
	if err != nil {
		return false, fmt.Errorf("checking term %s: %w", name, err)
	}
	defer rows.Close()

	n, err := entsql.ScanInt(rows)
	if err != nil {
		return false, fmt.Errorf("checking term %s: %w", name, err)
	}
	return n > 0, nil
}

func (d *Driver) List(ctx context.Context) ([]string, error) {
	rows, err := query(ctx, d.drv, d.builder().Select("name").
		From(entsql.Table(termsTable)).
		OrderBy("name"))
	if err != nil {
		return nil, fmt.Errorf("listing terms: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning term name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (d *Driver) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := d.drv.Tx(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ok, err := d.has(ctx, tx, name)
	if err != nil || !ok {
		return false, err
	}
	if err := d.deleteTx(ctx, tx, name); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing delete of %s: %w", name, err)
	}
	return true, nil
}

// deleteTx removes the nodes before the term so that no foreign key
// setting is needed.
func (d *Driver) deleteTx(ctx context.Context, tx dialect.Tx, name string) error {
	b := d.builder()
	if err := exec(ctx, tx, b.Delete(nodesTable).Where(entsql.EQ("term_name", name))); err != nil {
		return fmt.Errorf("deleting nodes of %s: %w", name, err)
	}
	if err := exec(ctx, tx, b.Delete(termsTable).Where(entsql.EQ("name", name))); err != nil {
		return fmt.Errorf("deleting term %s: %w", name, err)
	}
	return nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.drv.Close()
}
