package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mbs-billing-assistant/internal/domain"
)

// ConsultationService orchestrates the full consultation workflow: extract
// signals from the note, rank schedule items, persist the record, and render
// an optional summary.
type ConsultationService struct {
	logger      *logrus.Logger
	extractor   *ExtractorService
	recommender *RecommenderService
	repo        domain.ConsultationRepository
}

// ProcessConsultationParams is the input to the consultation workflow.
type ProcessConsultationParams struct {
	PatientID       string
	ProviderID      string
	Text            string
	DurationMinutes int
	PatientAge      *int
	GenerateSummary bool
}

// NewConsultationService creates a consultation workflow service.
func NewConsultationService(
	logger *logrus.Logger,
	extractor *ExtractorService,
	recommender *RecommenderService,
	repo domain.ConsultationRepository,
) *ConsultationService {
	return &ConsultationService{
		logger:      logger,
		extractor:   extractor,
		recommender: recommender,
		repo:        repo,
	}
}

// Process runs extract, recommend, and persist for one consultation.
func (s *ConsultationService) Process(ctx context.Context, params *ProcessConsultationParams, cat domain.CatalogView) (*domain.ConsultationRecord, error) {
	start := time.Now()

	if params.DurationMinutes < 0 {
		return nil, domain.NewInvalidInput("duration_minutes", "must be non-negative")
	}

	info := s.extractor.ExtractConsultationInfo(params.Text)

	recommendations, err := s.recommender.Recommend(info.Signals, params.DurationMinutes, params.PatientAge, cat)
	if err != nil {
		return nil, fmt.Errorf("recommending items: %w", err)
	}

	record := &domain.ConsultationRecord{
		ID:              newConsultationID(start),
		PatientID:       params.PatientID,
		ProviderID:      params.ProviderID,
		RawText:         params.Text,
		DurationMinutes: params.DurationMinutes,
		PatientAge:      params.PatientAge,
		Info:            info,
		Recommendations: recommendations,
		CreatedAt:       start.UTC(),
	}
	if params.GenerateSummary {
		record.Summary = s.extractor.Summarize(record)
	}

	if err := s.repo.Save(ctx, record); err != nil {
		return nil, domain.NewStorageError("saving consultation", err)
	}

	s.logger.WithFields(logrus.Fields{
		"consultation_id": record.ID,
		"recommendations": len(recommendations),
		"processing_time": time.Since(start),
	}).Info("Consultation processed")

	return record, nil
}

// Get retrieves a stored consultation record.
func (s *ConsultationService) Get(ctx context.Context, id string) (*domain.ConsultationRecord, error) {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, domain.NewStorageError("loading consultation", err)
	}
	if record == nil {
		return nil, domain.NewEngineError(domain.ErrNotFound,
			fmt.Sprintf("consultation %s not found", id), "")
	}
	return record, nil
}

// List pages through stored consultations, newest first.
func (s *ConsultationService) List(ctx context.Context, limit, offset int) ([]*domain.ConsultationRecord, error) {
	records, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, domain.NewStorageError("listing consultations", err)
	}
	return records, nil
}

// Count returns the number of stored consultations.
func (s *ConsultationService) Count(ctx context.Context) (int64, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, domain.NewStorageError("counting consultations", err)
	}
	return count, nil
}

// newConsultationID builds IDs like C20240115-3FA2B1.
func newConsultationID(t time.Time) string {
	fragment := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("C%s-%s", t.Format("20060102"), fragment)
}
