// Package importer handles bulk recipient imports from tabular byte streams.
// It streams CSV input with a header row, resolves or synthesizes a unique
// email per row, and applies the update-or-skip duplicate policy. Structural
// problems (oversized file, missing headers, unreadable stream) abort the
// whole call; per-row problems are collected and reported without stopping
// the batch.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/ignite/campaign-mailer/internal/domain"
)

// Structural import errors. Any of these fails the call before a single row
// is persisted.
var (
	ErrEmptyFile      = errors.New("file is empty")
	ErrFileTooLarge   = errors.New("file exceeds the maximum import size")
	ErrInvalidCSV     = errors.New("invalid CSV format")
	ErrMissingColumns = errors.New("missing required columns")
)

const (
	// DefaultMaxFileSize bounds the accepted input stream.
	DefaultMaxFileSize = 10 * 1024 * 1024 // 10MB

	// synthDomain is the domain used for synthesized addresses when a row
	// carries names but no email.
	synthDomain = "example.com"
)

// Column aliases accepted in the header row, matched case-insensitively
// after trimming.
var headerAliases = map[string][]string{
	"name":       {"display name", "display_name", "displayname", "name"},
	"first_name": {"first name", "first_name", "firstname", "first", "given name"},
	"last_name":  {"last name", "last_name", "lastname", "last", "surname"},
	"email":      {"email", "email address", "email_address", "e-mail", "mail"},
}

// requiredColumns must all be present in the header; email is optional and
// synthesized when absent.
var requiredColumns = []string{"name", "first_name", "last_name"}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Store is the persistence surface the importer needs. Implementations must
// enforce email uniqueness.
type Store interface {
	// GetByEmail returns the recipient with the given email, or nil when
	// none exists.
	GetByEmail(ctx context.Context, email string) (*domain.Recipient, error)
	Create(ctx context.Context, r *domain.Recipient) error
	Update(ctx context.Context, r *domain.Recipient) error
}

// Options control one import call.
type Options struct {
	// UpdateExisting updates recipients whose resolved email already
	// exists; when false such rows are skipped.
	UpdateExisting bool
	// DryRun performs identical validation and resolution without
	// persisting anything.
	DryRun bool
	// MaxFileSize overrides DefaultMaxFileSize when positive.
	MaxFileSize int64
}

// RowError reports a single row that failed row-level validation. Row
// numbers are 1-based and include the header row, matching what a user sees
// in a spreadsheet.
type RowError struct {
	Row int    `json:"row"`
	Msg string `json:"message"`
}

func (e RowError) Error() string { return fmt.Sprintf("row %d: %s", e.Row, e.Msg) }

// Result summarizes one import call.
type Result struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"`
	Errors  []RowError `json:"errors,omitempty"`
	DryRun  bool       `json:"dry_run"`
}

// Importer parses recipient files and applies them against a Store.
type Importer struct {
	store Store
}

// New creates an importer backed by the given store.
func New(store Store) *Importer {
	return &Importer{store: store}
}

// Import reads the byte stream and creates/updates recipients per Options.
// The returned Result carries counts plus ordered row-level errors. A
// structural failure (size, headers, malformed CSV) aborts before any row is
// persisted; a store failure aborts mid-batch and leaves the rows already
// applied in place.
func (im *Importer) Import(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	// Read one byte past the limit so oversized input is detected rather
	// than silently truncated.
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read import stream: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w (limit %d bytes)", ErrFileTooLarge, maxSize)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	cr := csv.NewReader(strings.NewReader(string(data)))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	res := &Result{DryRun: opts.DryRun}
	// Emails resolved earlier in this batch, so in-batch collisions get a
	// suffix even before anything is persisted.
	seen := make(map[string]bool)

	rowNum := 1 // header row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidCSV, rowNum, err)
		}

		row := rowData{
			name:      cols.get(record, "name"),
			firstName: cols.get(record, "first_name"),
			lastName:  cols.get(record, "last_name"),
			email:     strings.ToLower(cols.get(record, "email")),
		}

		if row.blank() {
			continue
		}

		if err := im.applyRow(ctx, row, rowNum, opts, seen, res); err != nil {
			return nil, err
		}
	}

	return res, nil
}

type rowData struct {
	name      string
	firstName string
	lastName  string
	email     string
}

func (r rowData) blank() bool {
	return r.name == "" && r.firstName == "" && r.lastName == "" && r.email == ""
}

// applyRow resolves and persists a single non-blank row. Row-level failures
// are appended to res.Errors; only store failures propagate.
func (im *Importer) applyRow(ctx context.Context, row rowData, rowNum int, opts Options, seen map[string]bool, res *Result) error {
	if row.email == "" && row.firstName == "" && row.lastName == "" {
		res.Errors = append(res.Errors, RowError{
			Row: rowNum,
			Msg: "either email or first/last name is required",
		})
		return nil
	}

	email := row.email
	if email != "" {
		if !emailRegex.MatchString(email) {
			res.Errors = append(res.Errors, RowError{
				Row: rowNum,
				Msg: fmt.Sprintf("invalid email address %q", email),
			})
			return nil
		}
	} else {
		var err error
		email, err = im.synthesizeEmail(ctx, row, seen)
		if err != nil {
			return err
		}
	}

	name := row.name
	if name == "" {
		name = strings.TrimSpace(row.firstName + " " + row.lastName)
	}

	existing, err := im.store.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", email, err)
	}

	// A repeat of an address already resolved earlier in this batch is a
	// duplicate even when dry-run never persisted the first row, so both
	// modes count it the same way.
	switch {
	case existing == nil && !seen[email]:
		if !opts.DryRun {
			rec := &domain.Recipient{
				ID:        uuid.New().String(),
				Email:     email,
				Name:      name,
				FirstName: row.firstName,
				LastName:  row.lastName,
				IsActive:  true,
			}
			if err := im.store.Create(ctx, rec); err != nil {
				return fmt.Errorf("create %s: %w", email, err)
			}
		}
		res.Created++

	case opts.UpdateExisting:
		if !opts.DryRun && existing != nil {
			if name != "" {
				existing.Name = name
			}
			if row.firstName != "" {
				existing.FirstName = row.firstName
			}
			if row.lastName != "" {
				existing.LastName = row.lastName
			}
			if err := im.store.Update(ctx, existing); err != nil {
				return fmt.Errorf("update %s: %w", email, err)
			}
		}
		res.Updated++

	default:
		res.Skipped++
	}
	seen[email] = true

	return nil
}

// synthesizeEmail builds a canonical address from whatever name parts the
// row has, then appends an incrementing numeric suffix until the address
// collides with neither the current batch nor the persisted set.
func (im *Importer) synthesizeEmail(ctx context.Context, row rowData, seen map[string]bool) (string, error) {
	first := canonicalPart(row.firstName)
	last := canonicalPart(row.lastName)

	var local string
	switch {
	case first != "" && last != "":
		local = first + "." + last
	case first != "":
		local = first
	default:
		local = last
	}

	candidate := local + "@" + synthDomain
	for n := 2; ; n++ {
		taken := seen[candidate]
		if !taken {
			existing, err := im.store.GetByEmail(ctx, candidate)
			if err != nil {
				return "", fmt.Errorf("lookup %s: %w", candidate, err)
			}
			taken = existing != nil
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d@%s", local, n, synthDomain)
	}
}

func canonicalPart(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}

// columnMap maps logical field names to header positions.
type columnMap map[string]int

func (c columnMap) get(record []string, field string) string {
	idx, ok := c[field]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func mapColumns(header []string) (columnMap, error) {
	cols := columnMap{}
	for i, h := range header {
		normalized := strings.ToLower(strings.TrimSpace(h))
		for field, aliases := range headerAliases {
			if _, dup := cols[field]; dup {
				continue
			}
			for _, alias := range aliases {
				if normalized == alias {
					cols[field] = i
					break
				}
			}
		}
	}

	var missing []string
	for _, field := range requiredColumns {
		if _, ok := cols[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return cols, nil
}
