package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbs-billing-assistant/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteConsultationStore {
	t.Helper()
	store, err := NewSQLiteConsultationStore(filepath.Join(t.TempDir(), "consultations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecord(id string, createdAt time.Time) *domain.ConsultationRecord {
	age := 80
	return &domain.ConsultationRecord{
		ID:              id,
		PatientID:       "P1001",
		ProviderID:      "DR42",
		RawText:         "Ongoing diabetes management, 25 minutes.",
		DurationMinutes: 25,
		PatientAge:      &age,
		Info: domain.ConsultationInfo{
			Signals: domain.SignalSet{
				Diagnoses: []domain.Tag{"diabetes"},
				IsChronic: true,
			},
			NeedsFollowup: true,
		},
		Recommendations: []domain.Recommendation{
			{ItemNumber: "36", Confidence: 0.95, Rationale: []string{"duration tier"}},
			{ItemNumber: "732", Confidence: 0.65},
		},
		Summary:   "Patient ID: P1001",
		CreatedAt: createdAt,
	}
}

func TestSQLiteConsultationStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := sampleRecord("C20250314-AB12CD", time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC))
	require.NoError(t, store.Save(ctx, record))

	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, record.PatientID, got.PatientID)
	assert.Equal(t, record.DurationMinutes, got.DurationMinutes)
	require.NotNil(t, got.PatientAge)
	assert.Equal(t, 80, *got.PatientAge)
	assert.Equal(t, record.Info.Signals.Diagnoses, got.Info.Signals.Diagnoses)
	assert.True(t, got.Info.NeedsFollowup)
	require.Len(t, got.Recommendations, 2)
	assert.Equal(t, "36", got.Recommendations[0].ItemNumber)
	assert.Equal(t, record.Summary, got.Summary)
}

func TestSQLiteConsultationStore_SaveWithoutAge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := sampleRecord("C20250314-000001", time.Now().UTC())
	record.PatientAge = nil
	require.NoError(t, store.Save(ctx, record))

	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PatientAge)
}

func TestSQLiteConsultationStore_SaveRequiresID(t *testing.T) {
	store := newTestStore(t)

	err := store.Save(context.Background(), &domain.ConsultationRecord{})
	assert.True(t, domain.IsInvalidInput(err))
}

func TestSQLiteConsultationStore_SaveReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := sampleRecord("C20250314-AB12CD", time.Now().UTC())
	require.NoError(t, store.Save(ctx, record))

	record.Summary = "updated"
	require.NoError(t, store.Save(ctx, record))

	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Summary)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteConsultationStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Get(context.Background(), "C20250101-NOSUCH")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteConsultationStore_ListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"C20250314-000001", "C20250314-000002", "C20250314-000003"} {
		record := sampleRecord(id, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, store.Save(ctx, record))
	}

	records, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "C20250314-000003", records[0].ID)
	assert.Equal(t, "C20250314-000002", records[1].ID)

	rest, err := store.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "C20250314-000001", rest[0].ID)
}

func TestSQLiteConsultationStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := sampleRecord("C20250314-AB12CD", time.Now().UTC())
	require.NoError(t, store.Save(ctx, record))
	require.NoError(t, store.Delete(ctx, record.ID))

	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteConsultationStore_QueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("connection lost"))

	store := &SQLiteConsultationStore{db: db}
	_, err = store.Count(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
