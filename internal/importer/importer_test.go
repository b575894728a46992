package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ignite/campaign-mailer/internal/domain"
)

type fakeStore struct {
	byEmail map[string]*domain.Recipient
	creates int
	updates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byEmail: make(map[string]*domain.Recipient)}
}

func (s *fakeStore) GetByEmail(_ context.Context, email string) (*domain.Recipient, error) {
	return s.byEmail[email], nil
}

func (s *fakeStore) Create(_ context.Context, r *domain.Recipient) error {
	s.creates++
	s.byEmail[r.Email] = r
	return nil
}

func (s *fakeStore) Update(_ context.Context, r *domain.Recipient) error {
	s.updates++
	s.byEmail[r.Email] = r
	return nil
}

func TestImport_CreatesAndReportsRowErrors(t *testing.T) {
	csv := strings.Join([]string{
		"Display Name,First Name,Last Name,Email",
		"Ada Lovelace,Ada,Lovelace,ada@example.org",
		"Grace Hopper,Grace,Hopper,",
		"No Names,,,",
		"Alan Turing,Alan,Turing,alan@example.org",
		",Katherine,Johnson,",
	}, "\n")

	store := newFakeStore()
	res, err := New(store).Import(context.Background(), strings.NewReader(csv), Options{})
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}

	if res.Created != 4 {
		t.Errorf("Created = %d, want 4", res.Created)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly one", res.Errors)
	}
	if res.Errors[0].Row != 4 {
		t.Errorf("error row = %d, want 4", res.Errors[0].Row)
	}

	if _, ok := store.byEmail["grace.hopper@example.com"]; !ok {
		t.Error("missing synthesized address grace.hopper@example.com")
	}
	if rec := store.byEmail["katherine.johnson@example.com"]; rec == nil {
		t.Error("missing synthesized address for name-only row")
	} else if rec.Name != "Katherine Johnson" {
		t.Errorf("display name = %q, want joined first/last", rec.Name)
	}
}

func TestImport_SynthesizedEmailSuffixOnCollision(t *testing.T) {
	store := newFakeStore()
	store.byEmail["jane.doe@example.com"] = &domain.Recipient{Email: "jane.doe@example.com"}

	csv := strings.Join([]string{
		"display name,first name,last name",
		"Jane Doe,Jane,Doe",
		"Jane Doe,Jane,Doe",
	}, "\n")

	res, err := New(store).Import(context.Background(), strings.NewReader(csv), Options{})
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if res.Created != 2 {
		t.Fatalf("Created = %d, want 2", res.Created)
	}
	if _, ok := store.byEmail["jane.doe2@example.com"]; !ok {
		t.Error("first collision should resolve to jane.doe2@example.com")
	}
	if _, ok := store.byEmail["jane.doe3@example.com"]; !ok {
		t.Error("second collision should resolve to jane.doe3@example.com")
	}
}

func TestImport_SecondRunSkipsWithoutUpdate(t *testing.T) {
	csv := strings.Join([]string{
		"Display Name,First Name,Last Name,Email",
		"Ada Lovelace,Ada,Lovelace,ada@example.org",
		"Alan Turing,Alan,Turing,alan@example.org",
	}, "\n")

	store := newFakeStore()
	im := New(store)

	if _, err := im.Import(context.Background(), strings.NewReader(csv), Options{}); err != nil {
		t.Fatalf("first Import() error: %v", err)
	}
	res, err := im.Import(context.Background(), strings.NewReader(csv), Options{})
	if err != nil {
		t.Fatalf("second Import() error: %v", err)
	}

	if res.Created != 0 || res.Skipped != 2 {
		t.Errorf("second run Created = %d, Skipped = %d; want 0 created, 2 skipped", res.Created, res.Skipped)
	}
	if store.creates != 2 {
		t.Errorf("store creates = %d, want 2 total across both runs", store.creates)
	}
}

func TestImport_UpdateExisting(t *testing.T) {
	store := newFakeStore()
	store.byEmail["ada@example.org"] = &domain.Recipient{
		Email: "ada@example.org",
		Name:  "A. Lovelace",
	}

	csv := "Display Name,First Name,Last Name,Email\nAda Lovelace,Ada,Lovelace,ada@example.org\n"
	res, err := New(store).Import(context.Background(), strings.NewReader(csv), Options{UpdateExisting: true})
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}

	if res.Updated != 1 || res.Created != 0 {
		t.Errorf("Updated = %d, Created = %d; want 1 updated", res.Updated, res.Created)
	}
	if got := store.byEmail["ada@example.org"].Name; got != "Ada Lovelace" {
		t.Errorf("updated name = %q", got)
	}
}

func TestImport_DryRunPersistsNothing(t *testing.T) {
	csv := "Display Name,First Name,Last Name,Email\nAda Lovelace,Ada,Lovelace,ada@example.org\n"
	store := newFakeStore()

	res, err := New(store).Import(context.Background(), strings.NewReader(csv), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}

	if !res.DryRun || res.Created != 1 {
		t.Errorf("dry run result = %+v, want DryRun with 1 created", res)
	}
	if store.creates != 0 || store.updates != 0 {
		t.Errorf("dry run touched the store: creates=%d updates=%d", store.creates, store.updates)
	}
}

func TestImport_DuplicateProvidedEmailInBatch(t *testing.T) {
	csv := strings.Join([]string{
		"Display Name,First Name,Last Name,Email",
		"Ada Lovelace,Ada,Lovelace,ada@example.org",
		"Ada L.,Ada,Lovelace,ada@example.org",
	}, "\n")

	for _, dryRun := range []bool{false, true} {
		store := newFakeStore()
		res, err := New(store).Import(context.Background(), strings.NewReader(csv), Options{DryRun: dryRun})
		if err != nil {
			t.Fatalf("Import(dry_run=%v) error: %v", dryRun, err)
		}
		if res.Created != 1 || res.Skipped != 1 {
			t.Errorf("dry_run=%v: Created = %d, Skipped = %d; want identical counts in both modes (1/1)",
				dryRun, res.Created, res.Skipped)
		}
	}
}

func TestImport_DuplicateProvidedEmailInBatchUpdateExisting(t *testing.T) {
	csv := strings.Join([]string{
		"Display Name,First Name,Last Name,Email",
		"Ada Lovelace,Ada,Lovelace,ada@example.org",
		"Ada L.,Ada,Lovelace,ada@example.org",
	}, "\n")

	for _, dryRun := range []bool{false, true} {
		store := newFakeStore()
		res, err := New(store).Import(context.Background(), strings.NewReader(csv),
			Options{UpdateExisting: true, DryRun: dryRun})
		if err != nil {
			t.Fatalf("Import(dry_run=%v) error: %v", dryRun, err)
		}
		if res.Created != 1 || res.Updated != 1 {
			t.Errorf("dry_run=%v: Created = %d, Updated = %d; want identical counts in both modes (1/1)",
				dryRun, res.Created, res.Updated)
		}
	}
}

func TestImport_StructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    Options
		wantErr error
	}{
		{"empty file", "", Options{}, ErrEmptyFile},
		{"missing columns", "email\nada@example.org\n", Options{}, ErrMissingColumns},
		{
			"oversized file",
			"Display Name,First Name,Last Name\n" + strings.Repeat("x", 64),
			Options{MaxFileSize: 16},
			ErrFileTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			_, err := New(store).Import(context.Background(), strings.NewReader(tt.input), tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Import() error = %v, want %v", err, tt.wantErr)
			}
			if store.creates != 0 {
				t.Errorf("structural failure persisted %d rows", store.creates)
			}
		})
	}
}

func TestImport_InvalidEmailIsRowError(t *testing.T) {
	csv := "Display Name,First Name,Last Name,Email\nBad Row,Bad,Row,not-an-email\n"
	res, err := New(newFakeStore()).Import(context.Background(), strings.NewReader(csv), Options{})
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if len(res.Errors) != 1 || res.Created != 0 {
		t.Errorf("result = %+v, want one row error and nothing created", res)
	}
}

func TestImport_BlankRowsSkippedSilently(t *testing.T) {
	csv := "Display Name,First Name,Last Name\nAda Lovelace,Ada,Lovelace\n,,\n"
	res, err := New(newFakeStore()).Import(context.Background(), strings.NewReader(csv), Options{})
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if res.Created != 1 || len(res.Errors) != 0 {
		t.Errorf("result = %+v, want 1 created and no errors", res)
	}
}
