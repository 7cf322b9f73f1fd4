package domain

import "fmt"

// Category identifies a ranking family such as "prop-trading" or "futures".
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Visitors    int64  `json:"visitors"`
	Competitors string `json:"competitors"`
}

// Snapshot is the ranking record store for one category and week. It is
// built once by ingestion and treated as read-only afterwards.
type Snapshot struct {
	Category Category
	Week     string
	Records  []FirmRecord
}

// Validate enforces non-empty firm names that stay distinct as dashboard
// slugs and image filenames.
func (s Snapshot) Validate() error {
	names := make(map[string]struct{}, len(s.Records))
	slugs := make(map[string]string, len(s.Records))
	files := make(map[string]string, len(s.Records))
	for i, rec := range s.Records {
		if err := validateName(rec.Name); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if _, ok := names[rec.Name]; ok {
			return duplicateError(rec.Name)
		}
		names[rec.Name] = struct{}{}

		if other, ok := slugs[rec.Slug()]; ok {
			return fmt.Errorf("%w: %q and %q share slug %q", ErrDuplicateFirm, other, rec.Name, rec.Slug())
		}
		slugs[rec.Slug()] = rec.Name

		file := ImageFilename(rec.Name)
		if other, ok := files[file]; ok {
			return fmt.Errorf("%w: %q and %q share image %q", ErrDuplicateFirm, other, rec.Name, file)
		}
		files[file] = rec.Name
	}
	return nil
}

// Find returns the first record with the given name.
func (s Snapshot) Find(name string) (FirmRecord, bool) {
	for _, rec := range s.Records {
		if rec.Name == name {
			return rec, true
		}
	}
	return FirmRecord{}, false
}

// FindSlug looks a record up by its URL slug.
func (s Snapshot) FindSlug(slug string) (FirmRecord, bool) {
	for _, rec := range s.Records {
		if rec.Slug() == slug {
			return rec, true
		}
	}
	return FirmRecord{}, false
}

// Len is the number of records, valid or not.
func (s Snapshot) Len() int {
	return len(s.Records)
}
