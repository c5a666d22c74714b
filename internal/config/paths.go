package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	apperrors "neuropipe/internal/errors"
)

// Paths contains the resolved application paths
type Paths struct {
	DataDir     string
	DatasetsDir string
	LogsDir     string
	RegistryDB  string
}

// NewPaths resolves cfg's paths to absolute form. Relative entries are taken
// against the working directory.
func NewPaths(cfg PathsConfig) (*Paths, error) {
	abs := func(p string) (string, error) {
		if filepath.IsAbs(p) {
			return filepath.Clean(p), nil
		}
		return filepath.Abs(p)
	}

	dataDir, err := abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}
	logsDir, err := abs(cfg.LogsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve logs dir: %w", err)
	}
	registryDB, err := abs(cfg.RegistryDB)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve registry db: %w", err)
	}

	return &Paths{
		DataDir:     dataDir,
		DatasetsDir: filepath.Join(dataDir, DatasetsDirName),
		LogsDir:     logsDir,
		RegistryDB:  registryDB,
	}, nil
}

// EnsureDirectories creates the base directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.DatasetsDir, p.LogsDir, filepath.Dir(p.RegistryDB)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// DatasetLayout is the artifact directory tree of one dataset.
type DatasetLayout struct {
	Root       string
	Raw        string
	Processed  string
	Matrices   string
	Vectors    string
	Statistics string
	PCA        string
	Figures    string
}

// DatasetLayout returns the layout for the dataset called name. Nothing is
// created on disk.
func (p *Paths) DatasetLayout(name string) (DatasetLayout, error) {
	folder, err := SanitizeFolderName(name)
	if err != nil {
		return DatasetLayout{}, err
	}
	return NewDatasetLayout(filepath.Join(p.DatasetsDir, folder)), nil
}

// NewDatasetLayout derives the subdirectories of root
func NewDatasetLayout(root string) DatasetLayout {
	processed := filepath.Join(root, ProcessedDirName)
	return DatasetLayout{
		Root:       root,
		Raw:        filepath.Join(root, RawDirName),
		Processed:  processed,
		Matrices:   filepath.Join(processed, MatricesDirName),
		Vectors:    filepath.Join(processed, VectorsDirName),
		Statistics: filepath.Join(processed, StatisticsDirName),
		PCA:        filepath.Join(processed, PCADirName),
		Figures:    filepath.Join(root, FiguresDirName),
	}
}

// Ensure creates every directory of the layout. Existing content is left
// alone.
func (l DatasetLayout) Ensure() error {
	for _, dir := range []string{l.Raw, l.Matrices, l.Vectors, l.Statistics, l.PCA, l.Figures} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("failed to create directory %s", dir), err)
		}
	}
	return nil
}

var (
	invalidNameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
)

// SanitizeFolderName turns a dataset name into a safe directory name:
// reserved characters and whitespace runs become '_', leading and trailing
// '_' and '.' are trimmed, and the result is cut to MaxFolderNameLength.
func SanitizeFolderName(name string) (string, error) {
	s := invalidNameChars.ReplaceAllString(name, "_")
	s = whitespaceRun.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_.")
	if r := []rune(s); len(r) > MaxFolderNameLength {
		s = strings.TrimRight(string(r[:MaxFolderNameLength]), "_.")
	}
	if s == "" {
		return "", apperrors.NewValidationError("dataset name %q has no usable characters", name)
	}
	return s, nil
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
