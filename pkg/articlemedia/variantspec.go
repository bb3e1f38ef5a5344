package articlemedia

import (
	"errors"
	"fmt"
)

// SizeSpec is one named derivative target. MaxWidth caps the output width;
// sources narrower than MaxWidth are never upscaled.
type SizeSpec struct {
	Name     string `json:"name"`
	MaxWidth int    `json:"max_width"`
}

// FormatSpec is one output encoding applied to every size.
type FormatSpec struct {
	Format  Format `json:"format"`
	Quality int    `json:"quality"`
}

// VariantSpec is the static configuration table of derivative targets.
// Configured once at startup, immutable afterwards.
type VariantSpec struct {
	Sizes   []SizeSpec   `json:"sizes"`
	Formats []FormatSpec `json:"formats"`
}

// DefaultVariantSpec returns the production variant table: three sizes,
// each encoded as webp and jpeg at quality 80.
func DefaultVariantSpec() VariantSpec {
	return VariantSpec{
		Sizes: []SizeSpec{
			{Name: "thumbnail", MaxWidth: 300},
			{Name: "medium", MaxWidth: 600},
			{Name: "large", MaxWidth: 1200},
		},
		Formats: []FormatSpec{
			{Format: FormatWebP, Quality: 80},
			{Format: FormatJPEG, Quality: 80},
		},
	}
}

// Validate checks the spec invariants: at least one size and one format,
// unique non-empty size names, positive widths, quality in (0,100].
func (s VariantSpec) Validate() error {
	if len(s.Sizes) == 0 {
		return errors.New("variant spec requires at least one size")
	}
	if len(s.Formats) == 0 {
		return errors.New("variant spec requires at least one format")
	}

	seen := make(map[string]struct{}, len(s.Sizes))
	for _, size := range s.Sizes {
		if size.Name == "" {
			return errors.New("size name cannot be empty")
		}
		if _, dup := seen[size.Name]; dup {
			return fmt.Errorf("duplicate size name %q", size.Name)
		}
		seen[size.Name] = struct{}{}
		if size.MaxWidth <= 0 {
			return fmt.Errorf("size %q: max width must be positive, got %d", size.Name, size.MaxWidth)
		}
	}

	for _, format := range s.Formats {
		if format.Format == "" {
			return errors.New("format cannot be empty")
		}
		if format.Quality <= 0 || format.Quality > 100 {
			return fmt.Errorf("format %q: quality must be in (0,100], got %d", format.Format, format.Quality)
		}
	}

	return nil
}

// VariantCount returns |sizes| x |formats|, the number of blobs a complete
// generation produces.
func (s VariantSpec) VariantCount() int {
	return len(s.Sizes) * len(s.Formats)
}

// Size returns the size spec with the given name.
func (s VariantSpec) Size(name string) (SizeSpec, bool) {
	for _, size := range s.Sizes {
		if size.Name == name {
			return size, true
		}
	}
	return SizeSpec{}, false
}
