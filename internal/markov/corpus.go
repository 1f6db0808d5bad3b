// Package markov implements the read-only MarkovCorpus relational store
// and the DeterministicGenerator that drives seeded Markov walks over it
// to build tarpit page content.
//
// The corpus itself is written only by an external trainer (out of
// scope per the spec); this package only ever opens read connections and
// never issues a write statement.
package markov

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	// Driver registration only: the concrete driver used is chosen at
	// Open time by DSN scheme, mirroring the backend-by-scheme factory
	// pattern used for reputation storage elsewhere in the pack.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Candidate is one possible next word with its trained frequency.
type Candidate struct {
	Next      string
	Frequency int64
}

// Corpus is the read-only contract EdgeClassifier-adjacent components
// depend on. It is intentionally narrow: one query shape, matching the
// single (w1,w2) -> [(next,freq)] access pattern the generator needs.
type Corpus interface {
	Next(ctx context.Context, w1, w2 string) ([]Candidate, error)
	Close() error
}

// EmptyWord is the sentinel used for sequence boundaries.
const EmptyWord = ""

// SQLCorpus is the production Corpus backed by database/sql.
type SQLCorpus struct {
	db     *sql.DB
	driver string
}

// Open opens a connection pool against dsn. Supported schemes:
// "postgres://..." (lib/pq) and "sqlite://path" (mattn/go-sqlite3,
// rewritten to a bare filesystem path for the driver).
func Open(dsn string) (*SQLCorpus, error) {
	driver, dataSource, err := driverFor(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dataSource)
	if err != nil {
		return nil, err
	}
	return &SQLCorpus{db: db, driver: driver}, nil
}

func driverFor(dsn string) (driver, dataSource string, err error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite://"), nil
	case dsn == "":
		return "", "", errors.New("markov: empty DSN")
	default:
		return "", "", errors.New("markov: unrecognized DSN scheme in " + dsn)
	}
}

// Next queries the (w1, w2) -> [(next, frequency), ...] relation.
func (c *SQLCorpus) Next(ctx context.Context, w1, w2 string) ([]Candidate, error) {
	query := `
		SELECT next_word.word, seq.freq
		FROM sequences seq
		JOIN words w1w ON w1w.id = seq.w1_id
		JOIN words w2w ON w2w.id = seq.w2_id
		JOIN words next_word ON next_word.id = seq.next_id
		WHERE w1w.word = ` + c.placeholder(1) + ` AND w2w.word = ` + c.placeholder(2) + ` AND seq.freq > 0
		ORDER BY seq.freq DESC
	`
	rows, err := c.db.QueryContext(ctx, query, w1, w2)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.Next, &c.Frequency); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// placeholder returns the driver-appropriate positional bind parameter:
// lib/pq requires numbered "$n" placeholders while mattn/go-sqlite3
// accepts plain "?".
func (c *SQLCorpus) placeholder(n int) string {
	if c.driver == "postgres" {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (c *SQLCorpus) Close() error { return c.db.Close() }

// Ping checks connectivity, used by the health endpoint.
func (c *SQLCorpus) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
