// Package processing holds the dataset processors: matrix extraction and
// preview, row-wise matrix modification, annotation vectors and rank
// indexing. Every processor reports its outcome as a Result envelope so
// callers only ever branch on Result.Success.
package processing
