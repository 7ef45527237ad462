package service

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbs-billing-assistant/internal/domain"
)

// memoryRepo is an in-memory ConsultationRepository for workflow tests.
type memoryRepo struct {
	records map[string]*domain.ConsultationRecord
	order   []string
	saveErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[string]*domain.ConsultationRecord)}
}

func (r *memoryRepo) Save(_ context.Context, record *domain.ConsultationRecord) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	if _, exists := r.records[record.ID]; !exists {
		r.order = append(r.order, record.ID)
	}
	r.records[record.ID] = record
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id string) (*domain.ConsultationRecord, error) {
	return r.records[id], nil
}

func (r *memoryRepo) List(_ context.Context, limit, offset int) ([]*domain.ConsultationRecord, error) {
	var out []*domain.ConsultationRecord
	for i := len(r.order) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.records[r.order[i]])
	}
	return out, nil
}

func (r *memoryRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.records)), nil
}

func (r *memoryRepo) Delete(_ context.Context, id string) error {
	delete(r.records, id)
	return nil
}

func newTestConsultationService(repo domain.ConsultationRepository) *ConsultationService {
	logger := testLogger()
	return NewConsultationService(
		logger,
		NewExtractorService(logger),
		NewRecommenderService(logger, DefaultEngineConfig()),
		repo,
	)
}

func TestConsultationService_Process(t *testing.T) {
	repo := newMemoryRepo()
	consultations := newTestConsultationService(repo)
	cat := testCatalog(t)

	age := 80
	record, err := consultations.Process(context.Background(), &ProcessConsultationParams{
		PatientID:       "P1001",
		ProviderID:      "DR42",
		Text:            "Ongoing diabetes management, reviewed HbA1c and adjusted medication. Arranged follow up.",
		DurationMinutes: 25,
		PatientAge:      &age,
		GenerateSummary: true,
	}, cat)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Regexp(t, regexp.MustCompile(`^C\d{8}-[0-9A-F]{6}$`), record.ID)
	assert.Equal(t, "P1001", record.PatientID)
	assert.True(t, record.Info.Signals.IsChronic)
	assert.True(t, record.Info.NeedsFollowup)

	require.NotEmpty(t, record.Recommendations)
	assert.Equal(t, "36", record.Recommendations[0].ItemNumber)

	assert.Contains(t, record.Summary, "Patient ID: P1001")
	assert.Contains(t, record.Summary, "diabetes")

	stored, err := repo.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, stored.ID)
}

func TestConsultationService_ProcessWithoutSummary(t *testing.T) {
	consultations := newTestConsultationService(newMemoryRepo())
	cat := testCatalog(t)

	record, err := consultations.Process(context.Background(), &ProcessConsultationParams{
		Text:            "Brief visit for a repeat script.",
		DurationMinutes: 5,
	}, cat)
	require.NoError(t, err)

	assert.Empty(t, record.Summary)
	require.NotEmpty(t, record.Recommendations)
	assert.Equal(t, "3", record.Recommendations[0].ItemNumber)
}

func TestConsultationService_ProcessNegativeDuration(t *testing.T) {
	consultations := newTestConsultationService(newMemoryRepo())
	cat := testCatalog(t)

	_, err := consultations.Process(context.Background(), &ProcessConsultationParams{
		Text:            "anything",
		DurationMinutes: -1,
	}, cat)
	assert.True(t, domain.IsInvalidInput(err))
}

func TestConsultationService_ProcessSaveFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.saveErr = errors.New("disk full")
	consultations := newTestConsultationService(repo)
	cat := testCatalog(t)

	_, err := consultations.Process(context.Background(), &ProcessConsultationParams{
		Text:            "Routine visit.",
		DurationMinutes: 10,
	}, cat)
	require.Error(t, err)
	assert.Equal(t, domain.ErrStorage, domain.ErrorCode(err))
	assert.Contains(t, err.Error(), "saving consultation")
}

func TestConsultationService_GetNotFound(t *testing.T) {
	consultations := newTestConsultationService(newMemoryRepo())

	_, err := consultations.Get(context.Background(), "C20250101-ABCDEF")
	assert.Equal(t, domain.ErrNotFound, domain.ErrorCode(err))
}

func TestConsultationService_ListAndCount(t *testing.T) {
	repo := newMemoryRepo()
	consultations := newTestConsultationService(repo)
	cat := testCatalog(t)

	for i := 0; i < 3; i++ {
		_, err := consultations.Process(context.Background(), &ProcessConsultationParams{
			Text:            "Routine visit for blood pressure check.",
			DurationMinutes: 10,
		}, cat)
		require.NoError(t, err)
	}

	records, err := consultations.List(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	count, err := consultations.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
