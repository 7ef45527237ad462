package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mbs-billing-assistant/internal/domain"
)

// RecommenderService ranks schedule items against extracted signals, visit
// duration, and patient age. Scoring is deterministic and additive; the rule
// pipeline is an explicit ordered list so confidence ties break by rule order,
// never by map iteration.
type RecommenderService struct {
	logger *logrus.Logger
	cfg    domain.EngineConfig
	rules  []recommendationRule
}

var _ domain.Recommender = (*RecommenderService)(nil)

// recommendationRule is one evaluator of the pipeline. Each contributes zero
// or more scored candidates; candidates are concatenated in pipeline order
// before the final stable sort.
type recommendationRule struct {
	Name     string
	Evaluate func(in ruleInput) []domain.Recommendation
}

type ruleInput struct {
	signals  domain.SignalSet
	duration int
	age      *int
	catalog  domain.CatalogView
}

// DefaultEngineConfig returns the baseline scoring constants.
func DefaultEngineConfig() domain.EngineConfig {
	return domain.EngineConfig{
		DurationBaseConfidence:  0.95,
		AgeAssessmentConfidence: 0.70,
		SignalBaseConfidence:    0.35,
		SignalIncrement:         0.15,
		SignalConfidenceCap:     0.85,
		MaxRecommendations:      5,
	}
}

// NewRecommenderService creates a recommender with the given scoring constants.
// A zero-valued config selects the defaults; any explicitly set config is used
// as given, including fields set to zero.
func NewRecommenderService(logger *logrus.Logger, cfg domain.EngineConfig) *RecommenderService {
	if cfg == (domain.EngineConfig{}) {
		cfg = DefaultEngineConfig()
	}

	s := &RecommenderService{
		logger: logger,
		cfg:    cfg,
	}
	s.rules = []recommendationRule{
		{Name: "duration_tier", Evaluate: s.evaluateDurationTier},
		{Name: "age_assessment", Evaluate: s.evaluateAgeAssessment},
		{Name: "signal_categories", Evaluate: s.evaluateSignalCategories},
	}
	return s
}

// Recommend produces a ranked list of billing-code suggestions, descending by
// confidence. Purely functional over its inputs and the catalog snapshot.
func (s *RecommenderService) Recommend(signals domain.SignalSet, durationMinutes int, patientAge *int, cat domain.CatalogView) ([]domain.Recommendation, error) {
	if durationMinutes < 0 {
		return nil, domain.NewInvalidInput("duration_minutes", "must be non-negative")
	}
	if patientAge != nil && *patientAge < 0 {
		return nil, domain.NewInvalidInput("patient_age", "must be non-negative")
	}

	in := ruleInput{
		signals:  signals,
		duration: durationMinutes,
		age:      patientAge,
		catalog:  cat,
	}

	var candidates []domain.Recommendation
	for _, rule := range s.rules {
		candidates = append(candidates, rule.Evaluate(in)...)
	}

	// Stable sort keeps pipeline order on confidence ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	if len(candidates) > s.cfg.MaxRecommendations {
		candidates = candidates[:s.cfg.MaxRecommendations]
	}

	s.logger.WithFields(logrus.Fields{
		"duration_minutes": durationMinutes,
		"recommendations":  len(candidates),
	}).Debug("Completed recommendation ranking")

	return candidates, nil
}

// evaluateDurationTier selects the standard-consultation tier containing the
// visit duration. A duration exactly on a shared boundary belongs to the tier
// whose lower bound equals it; a duration beyond every finite bound selects
// the open-ended top tier.
func (s *RecommenderService) evaluateDurationTier(in ruleInput) []domain.Recommendation {
	tiers := in.catalog.ItemsByCategory(domain.StandardConsultation)

	var best *domain.CodeDefinition
	for _, tier := range tiers {
		if !tier.ContainsDuration(in.duration) {
			continue
		}
		if best == nil || tier.DurationMin > best.DurationMin {
			best = tier
		}
	}
	if best == nil {
		return nil
	}

	return []domain.Recommendation{{
		ItemNumber:  best.ItemNumber,
		Description: best.Description,
		Category:    best.Category,
		Fee:         best.Fee,
		Confidence:  clamp(s.cfg.DurationBaseConfidence),
		Rationale: []string{
			fmt.Sprintf("consultation duration of %d minutes falls within the %s tier (item %s)",
				in.duration, tierBounds(best), best.ItemNumber),
		},
	}}
}

// evaluateAgeAssessment adds age-gated health assessment items when the
// declared patient age meets their minimum. Elective, not exclusive with the
// duration tier.
func (s *RecommenderService) evaluateAgeAssessment(in ruleInput) []domain.Recommendation {
	if in.age == nil {
		return nil
	}

	var out []domain.Recommendation
	for _, item := range in.catalog.ItemsByCategory(domain.HealthAssessment) {
		if item.MinAge == 0 || *in.age < item.MinAge {
			continue
		}
		out = append(out, domain.Recommendation{
			ItemNumber:  item.ItemNumber,
			Description: item.Description,
			Category:    item.Category,
			Fee:         item.Fee,
			Confidence:  clamp(s.cfg.AgeAssessmentConfidence),
			Rationale: []string{
				fmt.Sprintf("patient age %d meets the minimum age of %d for item %s",
					*in.age, item.MinAge, item.ItemNumber),
			},
		})
	}
	return out
}

// signalCategoryRule names the contributing signals for one signal-triggered
// category. The order of this table is the fixed tie-break order.
type signalCategoryRule struct {
	Category     domain.Category
	Contributors func(signals domain.SignalSet) []string
}

var signalCategoryRules = []signalCategoryRule{
	{
		Category: domain.MentalHealth,
		Contributors: func(s domain.SignalSet) []string {
			var c []string
			if s.HasDiagnosis("mental_health") {
				c = append(c, "mental health diagnosis indicators")
			}
			if s.HasSymptom("anxiety") {
				c = append(c, "anxiety symptoms")
			}
			if s.HasSymptom("depression") {
				c = append(c, "depression symptoms")
			}
			if s.HasTreatment("counselling") {
				c = append(c, "counselling or therapy discussed")
			}
			return c
		},
	},
	{
		Category: domain.ChronicDisease,
		Contributors: func(s domain.SignalSet) []string {
			var c []string
			if s.HasDiagnosis("diabetes") {
				c = append(c, "diabetes indicators")
			}
			if s.HasDiagnosis("cardiovascular") {
				c = append(c, "cardiovascular indicators")
			}
			if s.IsChronic {
				c = append(c, "chronic care indicated")
			}
			return c
		},
	},
	{
		Category: domain.AfterHours,
		Contributors: func(s domain.SignalSet) []string {
			if s.IsUrgent {
				return []string{"urgent presentation indicated"}
			}
			return nil
		},
	},
	{
		Category: domain.UrgentCare,
		Contributors: func(s domain.SignalSet) []string {
			if s.IsUrgent {
				return []string{"urgent presentation indicated"}
			}
			return nil
		},
	},
}

// evaluateSignalCategories scores signal-triggered categories in the fixed
// declared order. Confidence grows with distinct contributing signals and is
// capped per category so no category dominates by repetition.
func (s *RecommenderService) evaluateSignalCategories(in ruleInput) []domain.Recommendation {
	var out []domain.Recommendation
	for _, rule := range signalCategoryRules {
		contributors := rule.Contributors(in.signals)
		if len(contributors) == 0 {
			continue
		}

		items := in.catalog.ItemsByCategory(rule.Category)
		if len(items) == 0 {
			continue
		}
		// The category's primary item carries the recommendation; reviews and
		// variants surface through compliance suggestions instead.
		item := items[0]

		confidence := s.cfg.SignalBaseConfidence + s.cfg.SignalIncrement*float64(len(contributors))
		if confidence > s.cfg.SignalConfidenceCap {
			confidence = s.cfg.SignalConfidenceCap
		}

		out = append(out, domain.Recommendation{
			ItemNumber:  item.ItemNumber,
			Description: item.Description,
			Category:    item.Category,
			Fee:         item.Fee,
			Confidence:  clamp(confidence),
			Rationale: []string{
				fmt.Sprintf("%d contributing signal(s) for %s: %s",
					len(contributors), rule.Category, strings.Join(contributors, "; ")),
			},
		})
	}
	return out
}

func tierBounds(item *domain.CodeDefinition) string {
	if item.OpenEnded() {
		return fmt.Sprintf("%d+ minute", item.DurationMin)
	}
	return fmt.Sprintf("%d-%d minute", item.DurationMin, item.DurationMax)
}

func clamp(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
