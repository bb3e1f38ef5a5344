// Package articlemedia implements the media variant pipeline for the
// article backend: derivation of resized/re-encoded image variants from a
// single uploaded source, atomic manifest replacement with old-artifact
// cleanup, and a read-through aggregate cache that is invalidated
// synchronously on every mutation.
//
// The package is storage- and codec-agnostic. Blob storage backends live
// under storage/ (memory, fs, s3), article repositories under repo/
// (memory, postgres), cache backends under cache/ (memory, redis) and the
// image codec under codec/imaging. Wire them together with New and the
// With* options, or use the config package to build a service from
// configuration.
package articlemedia
