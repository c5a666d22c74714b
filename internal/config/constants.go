package config

// Application constants
const (
	AppName    = "neuropipe"
	AppVersion = "0.3.0"

	EnvPrefix         = "NEUROPIPE"
	DefaultConfigFile = "neuropipe.yaml"

	DefaultDataDir    = "data"
	DefaultLogsDir    = "logs"
	DefaultRegistryDB = "data/registry.db"

	DefaultRateLimit = 100
	DefaultBurstSize = 50

	DefaultWorkers     = 2
	DefaultQueueSize   = 64
	DefaultPreviewSize = 10
	DefaultEventBuffer = 32

	// MaxFolderNameLength bounds sanitized dataset directory names.
	MaxFolderNameLength = 50
)

// Dataset directory layout, relative to the dataset root.
const (
	RawDirName        = "raw"
	ProcessedDirName  = "processed"
	MatricesDirName   = "matrices"
	VectorsDirName    = "vectors"
	StatisticsDirName = "statistics"
	PCADirName        = "pca"
	FiguresDirName    = "figures"
	DatasetsDirName   = "datasets"
)
