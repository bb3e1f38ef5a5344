package articlemedia

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// VariantGenerator orchestrates codec calls across the variant spec to
// produce the full set of derivative blobs for one source image.
// Generation is all-or-nothing at the job level: if any (size, format)
// branch fails, every blob already produced by the job is deleted before
// the error is returned.
type VariantGenerator struct {
	codec   ImageCodec
	blobs   BlobStore
	spec    VariantSpec
	timeout time.Duration
}

// NewVariantGenerator creates a generator over the given codec, blob store
// and spec. A zero timeout disables the per-job deadline.
func NewVariantGenerator(codec ImageCodec, blobs BlobStore, spec VariantSpec, timeout time.Duration) *VariantGenerator {
	return &VariantGenerator{
		codec:   codec,
		blobs:   blobs,
		spec:    spec,
		timeout: timeout,
	}
}

// Generate runs one generation job. On success the returned manifest is
// complete: one blob per (size, format) pair, each under a fresh
// uuid-namespaced path. Blob writes are eager; rollback on failure is
// cheaper than buffering every variant in memory first.
func (g *VariantGenerator) Generate(ctx context.Context, src []byte) (VariantManifest, error) {
	if len(src) == 0 {
		return EmptyManifest(), &GenerationError{Err: ErrEmptyImage}
	}

	if _, _, err := g.codec.Bounds(src); err != nil {
		return EmptyManifest(), &GenerationError{Err: err}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var (
		mu       sync.Mutex
		draft    VariantManifest
		produced []string
	)

	eg, egCtx := errgroup.WithContext(ctx)
	for _, size := range g.spec.Sizes {
		for _, format := range g.spec.Formats {
			size, format := size, format
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}

				data, err := g.codec.ResizeAndEncode(src, size.MaxWidth, format.Format, format.Quality)
				if err != nil {
					return &GenerationError{Size: size.Name, Format: format.Format, Err: err}
				}

				path := variantPath(size.Name, format.Format)
				if err := g.blobs.Upload(egCtx, path, bytes.NewReader(data)); err != nil {
					return &GenerationError{Size: size.Name, Format: format.Format, Err: err}
				}

				mu.Lock()
				draft.set(size.Name, format.Format, path)
				produced = append(produced, path)
				mu.Unlock()
				return nil
			})
		}
	}

	// Join every branch before deciding the job outcome; a failed branch
	// cancels egCtx but Wait still blocks until all uploads have settled.
	if err := eg.Wait(); err != nil {
		g.rollback(produced)
		var genErr *GenerationError
		if errors.As(err, &genErr) {
			return EmptyManifest(), genErr
		}
		return EmptyManifest(), &GenerationError{Err: err}
	}

	if !draft.Complete(g.spec) {
		g.rollback(produced)
		return EmptyManifest(), &GenerationError{Err: errors.New("incomplete variant set")}
	}

	return draft, nil
}

// rollback deletes blobs produced by a failed job. It runs on a fresh
// context: the job context may already be cancelled, and cleanup must
// proceed regardless.
func (g *VariantGenerator) rollback(paths []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, path := range paths {
		if err := g.blobs.Delete(ctx, path); err != nil && !errors.Is(err, ErrBlobNotFound) {
			// Swallowed here; the job already failed and the orphan is
			// left for the out-of-band sweeper.
			continue
		}
	}
}

// variantPath builds a collision-free blob path for one variant. The uuid
// is freshly generated, never derived from user input, so concurrent jobs
// never contend on the same path.
func variantPath(size string, format Format) string {
	return fmt.Sprintf("articles/%s-%s.%s", uuid.New(), size, format.Extension())
}
