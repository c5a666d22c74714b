package processing

import (
	"context"
	"fmt"
	"strings"

	"neuropipe/internal/artifacts"
	apperrors "neuropipe/internal/errors"
	"neuropipe/internal/tabular"
)

// Kind identifies a processor.
type Kind string

const (
	KindExtraction   Kind = "extraction"
	KindModification Kind = "modification"
	KindAnnotation   Kind = "annotation"
	KindIndexing     Kind = "indexing"
	KindPreview      Kind = "preview"
)

var displayNames = map[Kind]string{
	KindExtraction:   "Matrix Extraction",
	KindModification: "Matrix Modification",
	KindAnnotation:   "Data Annotation",
	KindIndexing:     "Indexing",
	KindPreview:      "Matrix Preview",
}

// Kinds returns every processor kind in menu order.
func Kinds() []Kind {
	return []Kind{KindExtraction, KindModification, KindAnnotation, KindIndexing, KindPreview}
}

// DisplayName is the name shown to users, e.g. "Matrix Extraction".
func (k Kind) DisplayName() string {
	if name, ok := displayNames[k]; ok {
		return name
	}
	return string(k)
}

// NeedsTable reports whether the processor works on the raw dataset file.
func (k Kind) NeedsTable() bool {
	return k == KindExtraction || k == KindPreview
}

// ParseKind resolves a processor name. Both the short form ("extraction")
// and the display name ("Matrix Extraction") are accepted, case-insensitive,
// with spaces, dashes and underscores treated alike.
func ParseKind(name string) (Kind, error) {
	key := normalizeName(name)
	for _, k := range Kinds() {
		if key == normalizeName(string(k)) || key == normalizeName(k.DisplayName()) {
			return k, nil
		}
	}
	return "", apperrors.NewNotFoundError(fmt.Sprintf("processor %q", strings.TrimSpace(name)))
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", " ", "-", " ").Replace(s)
}

// ProgressFunc receives completion percentages in [0, 100].
type ProgressFunc func(percent float64)

func (f ProgressFunc) report(percent float64) {
	if f != nil {
		f(percent)
	}
}

// Input is everything a processor may touch for one run.
type Input struct {
	// Table is the raw dataset table; only set for kinds that need it.
	Table  *tabular.Table
	Store  *artifacts.Store
	Params Params
}

// Processor runs one kind of transformation against a dataset.
type Processor interface {
	Kind() Kind
	Process(ctx context.Context, in Input, progress ProgressFunc) (*Result, error)
}
