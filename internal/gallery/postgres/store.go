package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/facegate/facegate/internal/gallery"
	"github.com/pgvector/pgvector-go"
)

// Store implements gallery.Store on PostgreSQL with pgvector descriptors.
// Put keeps the same replace-whole-entry semantics as the file backend by
// deleting and reinserting the person inside one transaction.
type Store struct {
	pool *Pool
}

// NewStore creates a PostgreSQL-backed gallery store.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// List returns all enrolled people with their descriptors.
func (s *Store) List(ctx context.Context) ([]gallery.Person, error) {
	rows, err := s.pool.db.QueryContext(ctx,
		`SELECT name, display FROM people ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying people: %w", err)
	}
	defer rows.Close()

	var people []gallery.Person
	index := make(map[string]int)

	for rows.Next() {
		var p gallery.Person
		if err := rows.Scan(&p.Name, &p.Display); err != nil {
			return nil, fmt.Errorf("scanning person row: %w", err)
		}
		index[p.Name] = len(people)
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating people: %w", err)
	}

	descRows, err := s.pool.db.QueryContext(ctx,
		`SELECT person_name, embedding FROM descriptors ORDER BY person_name, position`)
	if err != nil {
		return nil, fmt.Errorf("querying descriptors: %w", err)
	}
	defer descRows.Close()

	for descRows.Next() {
		var name string
		var vec pgvector.Vector
		if err := descRows.Scan(&name, &vec); err != nil {
			return nil, fmt.Errorf("scanning descriptor row: %w", err)
		}
		if i, ok := index[name]; ok {
			people[i].Descriptors = append(people[i].Descriptors, gallery.Descriptor(vec.Slice()))
		}
	}
	if err := descRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating descriptors: %w", err)
	}
	return people, nil
}

// Get returns the person for the given name, or nil.
func (s *Store) Get(ctx context.Context, name string) (*gallery.Person, error) {
	key := gallery.NormalizeName(name)

	var display string
	err := s.pool.db.QueryRowContext(ctx,
		`SELECT display FROM people WHERE name = $1`, key).Scan(&display)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying person: %w", err)
	}

	p := &gallery.Person{Name: key, Display: display}

	rows, err := s.pool.db.QueryContext(ctx,
		`SELECT embedding FROM descriptors WHERE person_name = $1 ORDER BY position`, key)
	if err != nil {
		return nil, fmt.Errorf("querying descriptors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var vec pgvector.Vector
		if err := rows.Scan(&vec); err != nil {
			return nil, fmt.Errorf("scanning descriptor: %w", err)
		}
		p.Descriptors = append(p.Descriptors, gallery.Descriptor(vec.Slice()))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating descriptors: %w", err)
	}
	return p, nil
}

// Put replaces any prior entry for the person inside one transaction.
func (s *Store) Put(ctx context.Context, display string, descriptors []gallery.Descriptor) error {
	key := gallery.NormalizeName(display)
	if key == "" {
		return fmt.Errorf("person name is empty")
	}

	tx, err := s.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM people WHERE name = $1`, key); err != nil {
		return fmt.Errorf("removing prior entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO people (name, display) VALUES ($1, $2)`, key, display); err != nil {
		return fmt.Errorf("inserting person: %w", err)
	}

	for i, d := range descriptors {
		vec := pgvector.NewVector(d)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO descriptors (person_name, position, embedding) VALUES ($1, $2, $3)`,
			key, i, vec); err != nil {
			return fmt.Errorf("inserting descriptor %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing enrollment: %w", err)
	}
	return nil
}

// Delete removes the person; descriptors cascade.
func (s *Store) Delete(ctx context.Context, name string) error {
	key := gallery.NormalizeName(name)
	if _, err := s.pool.db.ExecContext(ctx, `DELETE FROM people WHERE name = $1`, key); err != nil {
		return fmt.Errorf("deleting person: %w", err)
	}
	return nil
}

// Count returns the number of enrolled people.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM people`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting people: %w", err)
	}
	return count, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
