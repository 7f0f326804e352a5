// Package reason holds the append-only vocabulary of decision reasons.
package reason

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/absento/core"
)

const similarityThreshold = .85

var (
	ErrNotFound    = errors.New("reason not found")
	ErrEntryExists = errors.New("reason already exists")

	ErrInvalidKind   = core.NewValidationError(nil, core.FieldError{Field: "kind", Error: "unknown reason kind"})
	ErrInvalidReason = core.NewValidationError(nil, core.FieldError{Field: "reason", Error: "invalid reason"})
)

type (
	// Repository persists catalog entries. Each write commits on its own.
	Repository interface {
		// ListEntries returns the entries of kind, ordered by label.
		ListEntries(ctx context.Context, kind Kind) ([]Entry, error)
		// FindEntry matches label case-insensitively.
		FindEntry(ctx context.Context, kind Kind, label string) (Entry, error)
		// CreateEntry returns ErrEntryExists when (kind, lower(label)) is taken.
		CreateEntry(ctx context.Context, entry Entry) (Entry, error)
	}

	Catalog struct {
		repo   Repository
		logger core.Logger
	}
)

func NewCatalog(repo Repository, logger core.Logger) *Catalog {
	return &Catalog{repo: repo, logger: logger}
}

// List returns the known labels of kind, sorted case-insensitively.
// Student reasons are built-in and returned in their declaration order.
func (cat *Catalog) List(ctx context.Context, kind Kind) ([]string, error) {
	if kind == KindAbsence {
		return append([]string(nil), StudentReasons...), nil
	}
	if !kind.Stored() {
		return nil, ErrInvalidKind
	}

	entries, err := cat.repo.ListEntries(ctx, kind)
	if err != nil {
		return nil, errors.Wrap(err, "listing reasons")
	}
	res := make([]string, 0, len(entries))
	for _, e := range entries {
		res = append(res, e.Label)
	}
	sort.SliceStable(res, func(i, j int) bool { return strings.ToLower(res[i]) < strings.ToLower(res[j]) })
	return res, nil
}

// Add stores text under kind unless an entry with the same label (ignoring case) exists,
// and returns the canonical stored label.
// Persistence failures are logged and the trimmed text is returned so the caller can proceed.
func (cat *Catalog) Add(ctx context.Context, kind Kind, text string) (string, error) {
	if !kind.Stored() {
		return "", ErrInvalidKind
	}
	label := core.CleanString(text)
	if label == "" || IsOther(label) {
		return "", ErrInvalidReason
	}

	existing, err := cat.repo.FindEntry(ctx, kind, label)
	switch {
	case err == nil:
		return existing.Label, nil
	case errors.Cause(err) != ErrNotFound:
		cat.logger.Error(fmt.Sprintf("reason.Add: finding %s reason %q", kind, label), err)
		return label, nil
	}

	cat.warnIfSimilar(ctx, kind, label)

	entry, err := cat.repo.CreateEntry(ctx, Entry{Kind: kind, Label: label})
	if err != nil {
		if errors.Cause(err) == ErrEntryExists {
			// concurrent insert of the same label
			if existing, err := cat.repo.FindEntry(ctx, kind, label); err == nil {
				return existing.Label, nil
			}
			return label, nil
		}
		cat.logger.Error(fmt.Sprintf("reason.Add: creating %s reason %q", kind, label), err)
		return label, nil
	}
	return entry.Label, nil
}

func (cat *Catalog) warnIfSimilar(ctx context.Context, kind Kind, label string) {
	entries, err := cat.repo.ListEntries(ctx, kind)
	if err != nil {
		return
	}
	lower := strings.ToLower(label)
	for _, e := range entries {
		ratio := difflib.NewMatcher(
			strings.Split(lower, ""),
			strings.Split(strings.ToLower(e.Label), ""),
		).Ratio()
		if ratio >= similarityThreshold {
			cat.logger.Warn(
				fmt.Sprintf("reason.Add: %s reason %q looks like existing %q", kind, label, e.Label),
				map[string]interface{}{"ratio": ratio},
			)
			return
		}
	}
}

// Translate returns the human readable label of raw. Unknown values are returned unchanged.
func Translate(kind Kind, raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if IsOther(key) {
		return labels[Other]
	}
	if kind == KindAbsence {
		if lbl, ok := labels[key]; ok {
			return lbl
		}
	}
	return raw
}

// Translate is Catalog's view on the package level Translate.
func (cat *Catalog) Translate(kind Kind, raw string) string {
	return Translate(kind, raw)
}
