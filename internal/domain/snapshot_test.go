package domain

import (
	"errors"
	"testing"
)

func snapshotOf(names ...string) Snapshot {
	records := make([]FirmRecord, len(names))
	for i, name := range names {
		records[i] = FirmRecord{Name: name, Rank: i + 1}
	}
	return Snapshot{Category: Category{ID: "prop-trading"}, Records: records}
}

func TestValidateAcceptsDistinctFirms(t *testing.T) {
	t.Parallel()

	if err := snapshotOf("FundingPips", "The5ers", "FTMO", "E8 Markets").Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestValidateRejectsCollisions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		firms []string
		want  error
	}{
		{"empty name", []string{"FTMO", "  "}, ErrEmptyName},
		{"same name", []string{"FTMO", "FTMO"}, ErrDuplicateFirm},
		{"same slug", []string{"FTMO", "Ftmo"}, ErrDuplicateFirm},
		{"same slug after spacing", []string{"Alpha Capital", "alpha  capital"}, ErrDuplicateFirm},
		{"same image file", []string{"E8 Markets", "E8 Markets!"}, ErrDuplicateFirm},
		{"symbol-only names", []string{"???", "!!!"}, ErrDuplicateFirm},
	}

	for _, tc := range cases {
		if err := snapshotOf(tc.firms...).Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestFindSlugAfterValidation(t *testing.T) {
	t.Parallel()

	snap := snapshotOf("FundingPips", "Alpha Capital")
	if err := snap.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	rec, ok := snap.FindSlug("alpha-capital")
	if !ok || rec.Name != "Alpha Capital" {
		t.Fatalf("unexpected FindSlug result: %+v %v", rec, ok)
	}
	if _, ok := snap.FindSlug("ftmo"); ok {
		t.Fatalf("expected no match for unknown slug")
	}
}
