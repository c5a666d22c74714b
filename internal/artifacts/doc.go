// Package artifacts reads and writes the files a dataset accumulates under
// processed/matrices: matrix bundles (.npy plus labelled CSVs), annotation
// vectors and the shared Raster index files.
//
// Writes are sequential and not atomic. A failed bundle can leave the files
// written before the failure in place.
package artifacts
