package constants

import "time"

// Application constants
const (
	// Application metadata
	AppName        = "kano"
	AppDescription = "Numeric k-anonymity by bin generalization"
	AppVersion     = "0.1.0"

	// API constants
	APIVersion = "v1"
	APIPrefix  = "/api/v1"

	// Default configuration values
	DefaultPort            = 8080
	DefaultMetricsPort     = 9090
	DefaultHost            = "0.0.0.0"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Anonymization defaults
	DefaultK        = 2
	DefaultMaxSteps = 10
	DefaultGrowth   = GrowthDoubling
	DefaultMaxBins  = 4096

	// Largest max_steps a server request may ask for
	DefaultMaxStepsLimit = 24

	// Uniform sweep defaults
	DefaultSweepMaxBound = 10000

	// File size limits
	MaxUploadSize = 32 * 1024 * 1024 // 32MB
)

// Generalization labels
const (
	// OutOfRangeLabel replaces a value that falls outside every bin.
	OutOfRangeLabel = "*"

	// CountColumn is the synthetic column appended to grouped tables.
	CountColumn = "count"
)

// Bin growth strategies
const (
	GrowthDoubling = "doubling"
	// GrowthSquaring is kept for compatibility with older profiles.
	// Deprecated: use GrowthDoubling.
	GrowthSquaring = "squaring"
)

// Row-equivalence bases for the loss evaluator
const (
	EquivalenceRaw         = "raw"
	EquivalenceGeneralized = "generalized"
)

// Result views
const (
	ViewGeneralized = "generalized"
	ViewGrouped     = "grouped"
	ViewSummary     = "summary"
)

// HTTP headers
const (
	HeaderContentType        = "Content-Type"
	HeaderAccept             = "Accept"
	HeaderRequestID          = "X-Request-ID"
	HeaderContentDisposition = "Content-Disposition"
	HeaderForwardedFor       = "X-Forwarded-For"
	HeaderRealIP             = "X-Real-IP"
)

// Content types
const (
	ContentTypeJSON      = "application/json"
	ContentTypeCSV       = "text/csv"
	ContentTypePlainText = "text/plain"
)

// Log levels
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Log formats
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Output formats
const (
	OutputFormatCSV  = "csv"
	OutputFormatJSON = "json"
)
