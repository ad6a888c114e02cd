// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// QueryOptions holds parameters for passage queries.
type QueryOptions struct {
	// Query is an FTS5 match expression. Empty lists passages in corpus
	// order with score 0.
	Query string

	// Years restricts documents by publication year. Documents without a
	// year never match a year filter.
	Years *types.YearRange

	// Venues restricts documents by venue, compared case-insensitively.
	Venues []string

	// SourceID restricts results to one document.
	SourceID string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// Search queries the index. Full-text results are ranked by BM25 and carry
// Score = -rank, so higher is better.
func (s *Store) Search(ctx context.Context, opts QueryOptions) ([]types.EvidenceItem, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT p.id, p.source_id, p.page, p.content, d.citation, d.year, d.venue, passages_fts.rank
			FROM passages_fts
			JOIN passages p ON p.rowid = passages_fts.rowid
			JOIN documents d ON d.id = p.source_id
			WHERE passages_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT p.id, p.source_id, p.page, p.content, d.citation, d.year, d.venue, 0 AS rank
			FROM passages p
			JOIN documents d ON d.id = p.source_id
			WHERE 1=1`)
	}

	if opts.Years != nil {
		qb.WriteString(` AND d.year BETWEEN ? AND ?`)
		args = append(args, opts.Years.Min, opts.Years.Max)
	}

	if len(opts.Venues) > 0 {
		qb.WriteString(` AND lower(d.venue) IN (?` + strings.Repeat(`, ?`, len(opts.Venues)-1) + `)`)
		for _, v := range opts.Venues {
			args = append(args, strings.ToLower(strings.TrimSpace(v)))
		}
	}

	if opts.SourceID != "" {
		qb.WriteString(` AND p.source_id = ?`)
		args = append(args, opts.SourceID)
	}

	if useFTS {
		qb.WriteString(` ORDER BY passages_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY p.source_id, p.seq`)
	}

	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying knowledge base: %w", err)
	}
	defer rows.Close()

	var results []types.EvidenceItem
	for rows.Next() {
		var (
			it       types.EvidenceItem
			page     sql.NullInt64
			citation sql.NullString
			year     sql.NullInt64
			venue    sql.NullString
			rank     float64
		)
		if err := rows.Scan(&it.ID, &it.SourceID, &page, &it.Text, &citation, &year, &venue, &rank); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if page.Valid {
			it.Page = types.IntPtr(int(page.Int64))
		}
		if year.Valid {
			it.Year = types.IntPtr(int(year.Int64))
		}
		if venue.Valid {
			it.Venue = types.StringPtr(venue.String)
		}
		it.Citation = citation.String
		if useFTS {
			it.Score = -rank
		}
		results = append(results, it)
	}

	return results, rows.Err()
}

// Retrieve answers a rewritten query: any of its terms may match, and the
// year and venue filters apply. limit <= 0 uses the store default.
func (s *Store) Retrieve(ctx context.Context, rw types.RewriteResult, limit int) ([]types.EvidenceItem, error) {
	expr := MatchExpression(rw.Query())
	if expr == "" {
		return nil, nil
	}
	return s.Search(ctx, QueryOptions{
		Query:      expr,
		Years:      rw.Filters.Years,
		Venues:     rw.Filters.Venues,
		MaxResults: limit,
	})
}

// MatchExpression turns free text into an FTS5 expression that ORs every
// distinct term as a quoted string, so user punctuation never reaches the
// FTS5 query parser.
func MatchExpression(text string) string {
	terms := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(terms))
	var quoted []string
	for _, t := range terms {
		if seen[t] {
			continue
		}
		seen[t] = true
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// Trace returns the passage with the given ID together with its neighbours
// in the same document, separated by blank lines.
func (s *Store) Trace(ctx context.Context, passageID string) (string, error) {
	var (
		sourceID string
		seq      int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT source_id, seq FROM passages WHERE id = ?`, passageID,
	).Scan(&sourceID, &seq)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("passage %s not found", passageID)
		}
		return "", fmt.Errorf("looking up passage: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT content FROM passages
		 WHERE source_id = ? AND seq BETWEEN ? AND ?
		 ORDER BY seq`, sourceID, seq-1, seq+1)
	if err != nil {
		return "", fmt.Errorf("reading context: %w", err)
	}
	defer rows.Close()

	var parts []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return "", fmt.Errorf("scanning row: %w", err)
		}
		parts = append(parts, content)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return strings.Join(parts, "\n\n"), nil
}
