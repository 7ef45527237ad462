package domain

import (
	"context"
)

// CatalogView is the read-only schedule lookup shared by the engine. An
// implementation is an immutable snapshot; a reload publishes a new snapshot
// rather than mutating an existing one.
type CatalogView interface {
	Item(itemNumber string) (*CodeDefinition, bool)
	ItemsByCategory(category Category) []*CodeDefinition
	Items() []*CodeDefinition
	Version() string
}

// SignalExtractor parses consultation text into structured signals
type SignalExtractor interface {
	Extract(text string) SignalSet
	ExtractConsultationInfo(text string) ConsultationInfo
}

// Recommender ranks schedule items against extracted signals and metadata
type Recommender interface {
	Recommend(signals SignalSet, durationMinutes int, patientAge *int, cat CatalogView) ([]Recommendation, error)
}

// ComplianceChecker validates proposed billing combinations against the schedule
type ComplianceChecker interface {
	Check(input ComplianceInput, cat CatalogView) (*ComplianceVerdict, error)
}

// ConsultationRepository defines the interface for consultation persistence
type ConsultationRepository interface {
	Save(ctx context.Context, record *ConsultationRecord) error
	Get(ctx context.Context, id string) (*ConsultationRecord, error)
	List(ctx context.Context, limit, offset int) ([]*ConsultationRecord, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
}

// DocumentGenerator renders claims and summaries to files for the caller
type DocumentGenerator interface {
	GenerateClaimDocument(req *ClaimRequest, items []*CodeDefinition) (*ClaimDocument, error)
	GenerateConsultationSummary(record *ConsultationRecord) (string, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetEngineConfig() *EngineConfig
	Reload() error
	Validate() error
}
