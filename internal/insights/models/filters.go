package models

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	pstrings "pulse/pkg/platform/strings"
)

// FilterSignature is the canonical year/industry constraint of a query.
// It is immutable: construct it with NewFilterSignature or ParseFilters.
type FilterSignature struct {
	year       int
	hasYear    bool
	industries []string
}

// NewFilterSignature canonicalizes the given constraints. A nil year and an
// empty industry list mean "no constraint" on that axis.
func NewFilterSignature(year *int, industries ...string) FilterSignature {
	sig := FilterSignature{industries: pstrings.SortedSet(industries)}
	if year != nil && *year > 0 {
		sig.year = *year
		sig.hasYear = true
	}
	return sig
}

// ParseFilters builds a signature from raw query values. Malformed values are
// dropped rather than rejected, so a bad year simply means "all years".
func ParseFilters(rawYear, rawIndustry string) FilterSignature {
	var year *int
	if y, err := strconv.Atoi(strings.TrimSpace(rawYear)); err == nil {
		year = &y
	}
	return NewFilterSignature(year, pstrings.SplitList(rawIndustry)...)
}

// Year returns the year constraint and whether one is set.
func (f FilterSignature) Year() (int, bool) {
	return f.year, f.hasYear
}

// Industries returns a copy of the sorted industry set.
func (f FilterSignature) Industries() []string {
	return slices.Clone(f.industries)
}

// IsEmpty reports whether the signature constrains nothing.
func (f FilterSignature) IsEmpty() bool {
	return !f.hasYear && len(f.industries) == 0
}

// WithoutYear returns the same industry constraint with the year dropped.
func (f FilterSignature) WithoutYear() FilterSignature {
	return FilterSignature{industries: f.industries}
}

// Matches reports whether a record satisfies every constraint.
func (f FilterSignature) Matches(r AlignedRecord) bool {
	if f.hasYear && r.Year != f.year {
		return false
	}
	if len(f.industries) > 0 {
		_, found := slices.BinarySearch(f.industries, r.Industry)
		return found
	}
	return true
}

// Canonical renders the signature deterministically, independent of the order
// in which constraints were supplied. The empty signature renders "all".
func (f FilterSignature) Canonical() string {
	parts := make([]string, 0, 2)
	if len(f.industries) > 0 {
		parts = append(parts, "industry="+strings.Join(f.industries, ","))
	}
	if f.hasYear {
		parts = append(parts, "year="+strconv.Itoa(f.year))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, ";")
}

func (f FilterSignature) String() string {
	return f.Canonical()
}

// Equal reports whether two signatures constrain the same records.
func (f FilterSignature) Equal(other FilterSignature) bool {
	return f.Canonical() == other.Canonical()
}

type filterJSON struct {
	Year       *int     `json:"year"`
	Industries []string `json:"industries"`
}

// MarshalJSON renders the applied filters with nulls for absent constraints.
func (f FilterSignature) MarshalJSON() ([]byte, error) {
	out := filterJSON{Industries: f.industries}
	if f.hasYear {
		y := f.year
		out.Year = &y
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the shape produced by MarshalJSON and canonicalizes it.
func (f *FilterSignature) UnmarshalJSON(data []byte) error {
	var in filterJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*f = NewFilterSignature(in.Year, in.Industries...)
	return nil
}
