// Package config loads neuropipe configuration and owns the filesystem
// layout.
//
// Values come from Default(), then an optional YAML file (NEUROPIPE_CONFIG or
// ./neuropipe.yaml), then NEUROPIPE_* environment variables:
//
//	NEUROPIPE_SERVER_PORT=9090
//	NEUROPIPE_LOGGING_LEVEL=debug
//	NEUROPIPE_PATHS_DATA_DIR=/srv/neuro
//	NEUROPIPE_PIPELINE_WORKERS=4
//
// Every dataset gets a directory <data_dir>/datasets/<sanitized name> with
// raw/, processed/{matrices,vectors,statistics,pca} and figures/.
package config
