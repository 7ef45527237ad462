package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbs-billing-assistant/internal/cache"
	"github.com/mbs-billing-assistant/internal/catalog"
	"github.com/mbs-billing-assistant/internal/config"
	"github.com/mbs-billing-assistant/internal/domain"
	"github.com/mbs-billing-assistant/internal/repository"
	"github.com/mbs-billing-assistant/internal/service"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	configManager, err := config.NewManager()
	require.NoError(t, err)

	loader := catalog.NewLoader(logger, "")
	initial, err := loader.Load()
	require.NoError(t, err)

	repo, err := repository.NewSQLiteConsultationStore(filepath.Join(t.TempDir(), "consultations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	recommendationCache, err := cache.New(logger, domain.CacheConfig{MaxMemorySize: 64})
	require.NoError(t, err)
	t.Cleanup(func() { recommendationCache.Close() })

	extractor := service.NewExtractorService(logger)
	recommender := service.NewRecommenderService(logger, service.DefaultEngineConfig())

	return NewServer(configManager, logger, Dependencies{
		Catalog:       catalog.NewStore(initial),
		Loader:        loader,
		Extractor:     extractor,
		Recommender:   recommender,
		Compliance:    service.NewComplianceService(logger),
		Consultations: service.NewConsultationService(logger, extractor, recommender, repo),
		Documents:     service.NewDocumentService(logger, t.TempDir()),
		Cache:         recommendationCache,
	})
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func TestServer_Health(t *testing.T) {
	server := newTestServer(t)

	w := doJSON(t, server, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(10), body["catalog_items"])
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestServer_ListItems(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCount  float64
	}{
		{"All items", "/api/v1/mbs/items", http.StatusOK, 10},
		{"By category", "/api/v1/mbs/items?category=standard_consultation", http.StatusOK, 4},
		{"By needle", "/api/v1/mbs/items?q=mental+health", http.StatusOK, 2},
		{"Unknown category", "/api/v1/mbs/items?category=dental", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, server, http.MethodGet, tt.path, nil)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body map[string]interface{}
			decode(t, w, &body)
			assert.Equal(t, tt.wantCount, body["count"])
		})
	}
}

func TestServer_GetItem(t *testing.T) {
	server := newTestServer(t)

	w := doJSON(t, server, http.MethodGet, "/api/v1/mbs/items/23", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var item domain.CodeDefinition
	decode(t, w, &item)
	assert.Equal(t, "23", item.ItemNumber)
	assert.Equal(t, domain.StandardConsultation, item.Category)

	w = doJSON(t, server, http.MethodGet, "/api/v1/mbs/items/99999", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, domain.ErrUnknownCode, body["code"])
}

func TestServer_Recommend(t *testing.T) {
	server := newTestServer(t)

	request := map[string]interface{}{
		"consultation_text": "Ongoing diabetes management, HbA1c reviewed.",
		"duration_minutes":  25,
		"patient_age":       80,
	}

	w := doJSON(t, server, http.MethodPost, "/api/v1/mbs/recommend", request)
	require.Equal(t, http.StatusOK, w.Code)

	var body recommendResponse
	decode(t, w, &body)
	require.NotEmpty(t, body.Recommendations)
	assert.Equal(t, "36", body.Recommendations[0].ItemNumber)
	assert.False(t, body.Cached)

	// Second identical request is served from cache.
	w = doJSON(t, server, http.MethodPost, "/api/v1/mbs/recommend", request)
	require.Equal(t, http.StatusOK, w.Code)

	var cached recommendResponse
	decode(t, w, &cached)
	assert.True(t, cached.Cached)
	assert.Equal(t, body.Recommendations, cached.Recommendations)
}

func TestServer_RecommendValidation(t *testing.T) {
	server := newTestServer(t)

	t.Run("Missing text", func(t *testing.T) {
		w := doJSON(t, server, http.MethodPost, "/api/v1/mbs/recommend", map[string]interface{}{
			"duration_minutes": 10,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Negative duration", func(t *testing.T) {
		w := doJSON(t, server, http.MethodPost, "/api/v1/mbs/recommend", map[string]interface{}{
			"consultation_text": "visit",
			"duration_minutes":  -5,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServer_RecommendNegativeAgeNotServedFromCache(t *testing.T) {
	server := newTestServer(t)

	// Prime the cache with a valid age-less request.
	w := doJSON(t, server, http.MethodPost, "/api/v1/mbs/recommend", map[string]interface{}{
		"consultation_text": "Ongoing diabetes management.",
		"duration_minutes":  25,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// The same request with an invalid age must fail, not alias the
	// cached entry.
	w = doJSON(t, server, http.MethodPost, "/api/v1/mbs/recommend", map[string]interface{}{
		"consultation_text": "Ongoing diabetes management.",
		"duration_minutes":  25,
		"patient_age":       -1,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, domain.ErrInvalidInput, body["code"])
}

func TestServer_Check(t *testing.T) {
	server := newTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/v1/mbs/check", map[string]interface{}{
		"item_numbers": []string{"23", "36"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var verdict domain.ComplianceVerdict
	decode(t, w, &verdict)
	assert.False(t, verdict.IsCompliant)
	assert.NotEmpty(t, verdict.Violations)

	w = doJSON(t, server, http.MethodPost, "/api/v1/mbs/check", map[string]interface{}{
		"item_numbers": []string{"36", "99999"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Reload(t *testing.T) {
	server := newTestServer(t)

	before := server.catalog.Snapshot().Version()

	w := doJSON(t, server, http.MethodPost, "/api/v1/mbs/reload", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, before, body["previous_version"])
	assert.Equal(t, float64(10), body["items"])
}

func TestServer_ConsultationWorkflow(t *testing.T) {
	server := newTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/v1/consultations/process", map[string]interface{}{
		"patient_id":        "P1001",
		"consultation_text": "Ongoing diabetes management. Arranged follow up.",
		"duration_minutes":  25,
		"generate_summary":  true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var record domain.ConsultationRecord
	decode(t, w, &record)
	require.NotEmpty(t, record.ID)
	assert.NotEmpty(t, record.Recommendations)
	assert.NotEmpty(t, record.Summary)

	w = doJSON(t, server, http.MethodGet, "/api/v1/consultations/"+record.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var fetched domain.ConsultationRecord
	decode(t, w, &fetched)
	assert.Equal(t, record.ID, fetched.ID)

	w = doJSON(t, server, http.MethodGet, "/api/v1/consultations", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var listing map[string]interface{}
	decode(t, w, &listing)
	assert.Equal(t, float64(1), listing["total"])
}

func TestServer_ConsultationNotFound(t *testing.T) {
	server := newTestServer(t)

	w := doJSON(t, server, http.MethodGet, "/api/v1/consultations/C20250101-NOSUCH", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_GenerateClaim(t *testing.T) {
	server := newTestServer(t)

	t.Run("Compliant combination", func(t *testing.T) {
		w := doJSON(t, server, http.MethodPost, "/api/v1/claims", map[string]interface{}{
			"item_numbers":      []string{"36", "732"},
			"patient":           map[string]string{"name": "Jane Citizen"},
			"provider":          map[string]string{"name": "Dr A Practitioner"},
			"consultation_date": "2025-03-14",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var body struct {
			Claim domain.ClaimDocument `json:"claim"`
		}
		decode(t, w, &body)
		assert.NotEmpty(t, body.Claim.ClaimID)
		assert.InDelta(t, 227.30, body.Claim.TotalFee, 1e-9)
	})

	t.Run("Blocking violation rejects the claim", func(t *testing.T) {
		w := doJSON(t, server, http.MethodPost, "/api/v1/claims", map[string]interface{}{
			"item_numbers": []string{"721", "723"},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Bad date format", func(t *testing.T) {
		w := doJSON(t, server, http.MethodPost, "/api/v1/claims", map[string]interface{}{
			"item_numbers":      []string{"36"},
			"consultation_date": "14/03/2025",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
