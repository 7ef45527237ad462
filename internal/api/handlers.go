package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mbs-billing-assistant/internal/domain"
	"github.com/mbs-billing-assistant/internal/service"
)

type recommendRequest struct {
	ConsultationText string `json:"consultation_text" binding:"required"`
	DurationMinutes  int    `json:"duration_minutes"`
	PatientAge       *int   `json:"patient_age"`
}

type recommendResponse struct {
	Recommendations []domain.Recommendation `json:"recommendations"`
	Signals         domain.SignalSet        `json:"signals"`
	CatalogVersion  string                  `json:"catalog_version"`
	Cached          bool                    `json:"cached"`
}

type processConsultationRequest struct {
	PatientID        string `json:"patient_id"`
	ProviderID       string `json:"provider_id"`
	ConsultationText string `json:"consultation_text" binding:"required"`
	DurationMinutes  int    `json:"duration_minutes"`
	PatientAge       *int   `json:"patient_age"`
	GenerateSummary  bool   `json:"generate_summary"`
}

type generateClaimRequest struct {
	ItemNumbers      []string          `json:"item_numbers" binding:"required"`
	Patient          domain.ClaimParty `json:"patient"`
	Provider         domain.ClaimParty `json:"provider"`
	ConsultationDate string            `json:"consultation_date"`
	PatientAge       *int              `json:"patient_age"`
	DurationMinutes  *int              `json:"duration_minutes"`
}

// handleListItems returns schedule items, optionally filtered by category and
// a free-text needle against item descriptions.
func (s *Server) handleListItems(c *gin.Context) {
	snapshot := s.catalog.Snapshot()

	var category domain.Category
	if raw := c.Query("category"); raw != "" {
		parsed, ok := domain.ParseCategory(raw)
		if !ok {
			s.writeError(c, domain.NewInvalidInput("category", "unknown category: "+raw))
			return
		}
		category = parsed
	}

	items := snapshot.Search(category, c.Query("q"))
	c.JSON(http.StatusOK, gin.H{
		"items":           items,
		"count":           len(items),
		"catalog_version": snapshot.Version(),
	})
}

// handleGetItem returns a single schedule item by number.
func (s *Server) handleGetItem(c *gin.Context) {
	snapshot := s.catalog.Snapshot()
	item, ok := snapshot.Item(c.Param("item"))
	if !ok {
		s.writeError(c, domain.NewUnknownCode(c.Param("item")))
		return
	}
	c.JSON(http.StatusOK, item)
}

// handleRecommend runs signal extraction and the recommendation pipeline over
// a consultation. Results are cached per catalog version.
func (s *Server) handleRecommend(c *gin.Context) {
	var req recommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, domain.NewInvalidInput("request", err.Error()))
		return
	}

	snapshot := s.catalog.Snapshot()
	signals := s.extractor.Extract(req.ConsultationText)

	var cacheKey string
	if s.cache != nil {
		cacheKey = s.cache.Key(req.ConsultationText, req.DurationMinutes, req.PatientAge, snapshot.Version())
		if recommendations, ok := s.cache.Get(c.Request.Context(), cacheKey); ok {
			c.JSON(http.StatusOK, recommendResponse{
				Recommendations: recommendations,
				Signals:         signals,
				CatalogVersion:  snapshot.Version(),
				Cached:          true,
			})
			return
		}
	}

	recommendations, err := s.recommender.Recommend(signals, req.DurationMinutes, req.PatientAge, snapshot)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if s.cache != nil {
		s.cache.Put(c.Request.Context(), cacheKey, recommendations)
	}

	c.JSON(http.StatusOK, recommendResponse{
		Recommendations: recommendations,
		Signals:         signals,
		CatalogVersion:  snapshot.Version(),
	})
}

// handleCheck validates a proposed billing combination.
func (s *Server) handleCheck(c *gin.Context) {
	var input domain.ComplianceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		s.writeError(c, domain.NewInvalidInput("request", err.Error()))
		return
	}

	verdict, err := s.compliance.Check(input, s.catalog.Snapshot())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, verdict)
}

// handleReload loads the schedule from its configured source and atomically
// publishes the new snapshot. In-flight requests keep the one they started
// with.
func (s *Server) handleReload(c *gin.Context) {
	next, err := s.loader.Load()
	if err != nil {
		s.writeError(c, err)
		return
	}

	previous := s.catalog.Snapshot().Version()
	s.catalog.Swap(next)

	s.logger.WithFields(logrus.Fields{
		"previous_version": previous,
		"catalog_version":  next.Version(),
		"items":            next.Len(),
	}).Info("Catalog reloaded")

	c.JSON(http.StatusOK, gin.H{
		"catalog_version":  next.Version(),
		"previous_version": previous,
		"items":            next.Len(),
	})
}

// handleProcessConsultation runs the full consultation workflow and persists
// the outcome.
func (s *Server) handleProcessConsultation(c *gin.Context) {
	var req processConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, domain.NewInvalidInput("request", err.Error()))
		return
	}

	record, err := s.consultations.Process(c.Request.Context(), &service.ProcessConsultationParams{
		PatientID:       req.PatientID,
		ProviderID:      req.ProviderID,
		Text:            req.ConsultationText,
		DurationMinutes: req.DurationMinutes,
		PatientAge:      req.PatientAge,
		GenerateSummary: req.GenerateSummary,
	}, s.catalog.Snapshot())
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

// handleListConsultations pages through stored consultations, newest first.
func (s *Server) handleListConsultations(c *gin.Context) {
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.consultations.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	total, err := s.consultations.Count(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"consultations": records,
		"count":         len(records),
		"total":         total,
		"limit":         limit,
		"offset":        offset,
	})
}

// handleGetConsultation returns a stored consultation by ID.
func (s *Server) handleGetConsultation(c *gin.Context) {
	record, err := s.consultations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// handleGenerateClaim validates the requested combination and renders claim
// documents for it. Blocking violations reject the claim.
func (s *Server) handleGenerateClaim(c *gin.Context) {
	var req generateClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, domain.NewInvalidInput("request", err.Error()))
		return
	}

	snapshot := s.catalog.Snapshot()

	verdict, err := s.compliance.Check(domain.ComplianceInput{
		ItemNumbers:     req.ItemNumbers,
		PatientAge:      req.PatientAge,
		DurationMinutes: req.DurationMinutes,
	}, snapshot)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !verdict.IsCompliant {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "claim combination is not compliant",
			"verdict": verdict,
		})
		return
	}

	consultationDate := time.Now()
	if req.ConsultationDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ConsultationDate)
		if err != nil {
			s.writeError(c, domain.NewInvalidInput("consultation_date", "expected YYYY-MM-DD"))
			return
		}
		consultationDate = parsed
	}

	items := make([]*domain.CodeDefinition, 0, len(req.ItemNumbers))
	for _, number := range req.ItemNumbers {
		item, ok := snapshot.Item(number)
		if !ok {
			s.writeError(c, domain.NewUnknownCode(number))
			return
		}
		items = append(items, item)
	}

	document, err := s.documents.GenerateClaimDocument(&domain.ClaimRequest{
		ItemNumbers:      req.ItemNumbers,
		Patient:          req.Patient,
		Provider:         req.Provider,
		ConsultationDate: consultationDate,
	}, items)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"claim":   document,
		"verdict": verdict,
	})
}

// writeError maps domain error codes onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := domain.ErrorCode(err)
	switch code {
	case domain.ErrInvalidInput, domain.ErrUnknownCode:
		status = http.StatusBadRequest
	case domain.ErrNotFound:
		status = http.StatusNotFound
	case domain.ErrCatalogInvalid:
		status = http.StatusUnprocessableEntity
	case "":
		code = domain.ErrInternalServer
	}

	if status == http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
	}

	c.JSON(status, gin.H{
		"error":          err.Error(),
		"code":           code,
		"correlation_id": c.GetString("correlation_id"),
	})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
