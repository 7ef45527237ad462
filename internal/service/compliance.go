package service

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/mbs-billing-assistant/internal/domain"
)

// ComplianceService validates proposed billing combinations against the
// schedule's exclusion, tier, age, and pairing rules. Rules are evaluated
// independently and all violations are collected; a single unknown item aborts
// the whole check so no verdict is built on incomplete data.
type ComplianceService struct {
	logger *logrus.Logger
	rules  []complianceRule
}

var _ domain.ComplianceChecker = (*ComplianceService)(nil)

// complianceRule is one independent check over the resolved item set.
type complianceRule struct {
	Name     string
	Evaluate func(in *complianceContext)
}

type complianceContext struct {
	input   domain.ComplianceInput
	items   []*domain.CodeDefinition
	verdict *domain.ComplianceVerdict
}

// categoryPairings lists category pairs flagged as likely double-billing even
// when no hard exclusion exists in the schedule yet.
var categoryPairings = []struct {
	A, B       domain.Category
	Suggestion string
}{
	{domain.AfterHours, domain.AfterHours, "bill a single after-hours attendance per encounter"},
	{domain.AfterHours, domain.UrgentCare, "after-hours and urgent attendance items usually cover the same service"},
	{domain.HealthAssessment, domain.HealthAssessment, "combine the assessment into the single most specific item"},
}

// NewComplianceService creates a compliance checker.
func NewComplianceService(logger *logrus.Logger) *ComplianceService {
	s := &ComplianceService{logger: logger}
	s.rules = []complianceRule{
		{Name: domain.RuleMutualExclusion, Evaluate: s.checkMutualExclusion},
		{Name: domain.RuleSingleStandardTier, Evaluate: s.checkSingleStandardTier},
		{Name: domain.RuleAgeEligibility, Evaluate: s.checkAgeEligibility},
		{Name: domain.RuleCategoryPairing, Evaluate: s.checkCategoryPairings},
		{Name: domain.RuleDurationConsistency, Evaluate: s.checkDurationConsistency},
	}
	return s
}

// Check evaluates every compliance rule against the proposed combination.
func (s *ComplianceService) Check(input domain.ComplianceInput, cat domain.CatalogView) (*domain.ComplianceVerdict, error) {
	if len(input.ItemNumbers) == 0 {
		return nil, domain.NewInvalidInput("item_numbers", "at least one item is required")
	}
	if input.PatientAge != nil && *input.PatientAge < 0 {
		return nil, domain.NewInvalidInput("patient_age", "must be non-negative")
	}
	if input.DurationMinutes != nil && *input.DurationMinutes < 0 {
		return nil, domain.NewInvalidInput("duration_minutes", "must be non-negative")
	}

	// Resolve and deduplicate up front; any unknown item aborts the check.
	seen := make(map[string]bool, len(input.ItemNumbers))
	var items []*domain.CodeDefinition
	for _, number := range input.ItemNumbers {
		if seen[number] {
			continue
		}
		seen[number] = true

		item, ok := cat.Item(number)
		if !ok {
			return nil, domain.NewUnknownCode(number)
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ItemNumber < items[j].ItemNumber })

	ctx := &complianceContext{
		input:   input,
		items:   items,
		verdict: &domain.ComplianceVerdict{IsCompliant: true},
	}
	for _, rule := range s.rules {
		rule.Evaluate(ctx)
	}

	for _, v := range ctx.verdict.Violations {
		if v.Severity == domain.SeverityBlocking {
			ctx.verdict.IsCompliant = false
			break
		}
	}
	if len(ctx.verdict.Violations) == 0 && len(ctx.verdict.Suggestions) == 0 {
		ctx.verdict.Suggestions = append(ctx.verdict.Suggestions,
			"all items meet the basic combination rules")
	}

	s.logger.WithFields(logrus.Fields{
		"items":      len(items),
		"violations": len(ctx.verdict.Violations),
		"compliant":  ctx.verdict.IsCompliant,
	}).Debug("Completed compliance check")

	return ctx.verdict, nil
}

// checkMutualExclusion flags every pair where either item lists the other as
// non-combinable.
func (s *ComplianceService) checkMutualExclusion(ctx *complianceContext) {
	for i := 0; i < len(ctx.items); i++ {
		for j := i + 1; j < len(ctx.items); j++ {
			a, b := ctx.items[i], ctx.items[j]
			if !a.Excludes(b.ItemNumber) && !b.Excludes(a.ItemNumber) {
				continue
			}
			ctx.verdict.Violations = append(ctx.verdict.Violations, domain.Violation{
				ItemNumbers: []string{a.ItemNumber, b.ItemNumber},
				Rule:        domain.RuleMutualExclusion,
				Severity:    domain.SeverityBlocking,
				Message: fmt.Sprintf("items %s and %s cannot be billed together in the same encounter",
					a.ItemNumber, b.ItemNumber),
			})
		}
	}
}

// checkSingleStandardTier enforces that a single encounter bills exactly one
// standard-consultation duration tier.
func (s *ComplianceService) checkSingleStandardTier(ctx *complianceContext) {
	var tiers []string
	for _, item := range ctx.items {
		if item.Category == domain.StandardConsultation {
			tiers = append(tiers, item.ItemNumber)
		}
	}
	if len(tiers) <= 1 {
		return
	}
	ctx.verdict.Violations = append(ctx.verdict.Violations, domain.Violation{
		ItemNumbers: tiers,
		Rule:        domain.RuleSingleStandardTier,
		Severity:    domain.SeverityBlocking,
		Message:     "only one standard consultation tier may be billed per encounter",
	})
	ctx.verdict.Suggestions = append(ctx.verdict.Suggestions,
		"keep the tier matching the actual consultation duration and drop the rest")
}

// checkAgeEligibility verifies age-gated items against the declared patient
// age. Without a declared age the rule is skipped and a suggestion notes the
// gap.
func (s *ComplianceService) checkAgeEligibility(ctx *complianceContext) {
	for _, item := range ctx.items {
		if item.MinAge == 0 {
			continue
		}
		if ctx.input.PatientAge == nil {
			ctx.verdict.Suggestions = append(ctx.verdict.Suggestions,
				fmt.Sprintf("item %s requires patient age %d or older; age was not supplied and could not be verified",
					item.ItemNumber, item.MinAge))
			continue
		}
		if *ctx.input.PatientAge < item.MinAge {
			ctx.verdict.Violations = append(ctx.verdict.Violations, domain.Violation{
				ItemNumbers: []string{item.ItemNumber},
				Rule:        domain.RuleAgeEligibility,
				Severity:    domain.SeverityWarning,
				Message: fmt.Sprintf("item %s requires patient age %d or older, declared age is %d",
					item.ItemNumber, item.MinAge, *ctx.input.PatientAge),
			})
		}
	}
}

// checkCategoryPairings surfaces likely double-billing combinations before a
// hard exclusion exists in the schedule.
func (s *ComplianceService) checkCategoryPairings(ctx *complianceContext) {
	for _, pairing := range categoryPairings {
		pairs := pairedItems(ctx.items, pairing.A, pairing.B)
		for _, pair := range pairs {
			if hasExclusionViolation(ctx.verdict.Violations, pair) {
				continue
			}
			ctx.verdict.Violations = append(ctx.verdict.Violations, domain.Violation{
				ItemNumbers: pair,
				Rule:        domain.RuleCategoryPairing,
				Severity:    domain.SeverityWarning,
				Message: fmt.Sprintf("items %s and %s are a %s/%s combination that is usually double-billing",
					pair[0], pair[1], pairing.A, pairing.B),
			})
			ctx.verdict.Suggestions = append(ctx.verdict.Suggestions, pairing.Suggestion)
		}
	}
}

// checkDurationConsistency warns when the declared encounter duration falls
// outside an item's tier bounds.
func (s *ComplianceService) checkDurationConsistency(ctx *complianceContext) {
	if ctx.input.DurationMinutes == nil {
		return
	}
	duration := *ctx.input.DurationMinutes

	for _, item := range ctx.items {
		if item.ContainsDuration(duration) {
			continue
		}
		ctx.verdict.Violations = append(ctx.verdict.Violations, domain.Violation{
			ItemNumbers: []string{item.ItemNumber},
			Rule:        domain.RuleDurationConsistency,
			Severity:    domain.SeverityWarning,
			Message: fmt.Sprintf("item %s expects a %s consultation, declared duration is %d minutes",
				item.ItemNumber, tierBounds(item), duration),
		})
	}
}

// pairedItems returns distinct item pairs matching the category pair.
func pairedItems(items []*domain.CodeDefinition, a, b domain.Category) [][]string {
	var pairs [][]string
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			x, y := items[i], items[j]
			if (x.Category == a && y.Category == b) || (x.Category == b && y.Category == a) {
				pairs = append(pairs, []string{x.ItemNumber, y.ItemNumber})
			}
		}
	}
	return pairs
}

// hasExclusionViolation avoids doubling up a pairing warning on a pair
// already blocked by a hard exclusion.
func hasExclusionViolation(violations []domain.Violation, pair []string) bool {
	for _, v := range violations {
		if v.Rule != domain.RuleMutualExclusion || len(v.ItemNumbers) != 2 {
			continue
		}
		if (v.ItemNumbers[0] == pair[0] && v.ItemNumbers[1] == pair[1]) ||
			(v.ItemNumbers[0] == pair[1] && v.ItemNumbers[1] == pair[0]) {
			return true
		}
	}
	return false
}
