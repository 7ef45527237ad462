package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/mbs-billing-assistant/internal/domain"
)

// Loader builds validated catalog snapshots from a JSON schedule file or the
// built-in baseline schedule.
type Loader struct {
	logger   *logrus.Logger
	dataPath string
}

// NewLoader creates a new catalog loader. An empty dataPath selects the
// built-in baseline schedule.
func NewLoader(logger *logrus.Logger, dataPath string) *Loader {
	return &Loader{
		logger:   logger,
		dataPath: dataPath,
	}
}

// Load builds and validates a catalog snapshot. The snapshot is only returned
// when every load-time invariant holds, so callers never publish a partially
// valid schedule.
func (l *Loader) Load() (*Catalog, error) {
	defs, source, err := l.readDefinitions()
	if err != nil {
		return nil, err
	}

	cat, err := build(defs)
	if err != nil {
		return nil, err
	}

	l.logger.WithFields(logrus.Fields{
		"source":  source,
		"items":   cat.Len(),
		"version": cat.Version(),
	}).Info("Loaded MBS schedule catalog")

	return cat, nil
}

func (l *Loader) readDefinitions() ([]domain.CodeDefinition, string, error) {
	if l.dataPath == "" {
		return baselineSchedule(), "baseline", nil
	}

	data, err := os.ReadFile(l.dataPath)
	if err != nil {
		return nil, "", fmt.Errorf("reading schedule file: %w", err)
	}

	var defs []domain.CodeDefinition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, "", fmt.Errorf("decoding schedule file: %w", err)
	}
	return defs, l.dataPath, nil
}

// build indexes and validates a definition list into an immutable snapshot.
func build(defs []domain.CodeDefinition) (*Catalog, error) {
	cat := &Catalog{
		byItem:     make(map[string]*domain.CodeDefinition, len(defs)),
		byCategory: make(map[domain.Category][]*domain.CodeDefinition),
	}

	for i := range defs {
		item := &defs[i]
		if err := validateItem(item); err != nil {
			return nil, err
		}
		if _, dup := cat.byItem[item.ItemNumber]; dup {
			return nil, domain.NewEngineError(domain.ErrCatalogInvalid,
				fmt.Sprintf("duplicate item number %s", item.ItemNumber), "")
		}
		cat.byItem[item.ItemNumber] = item
		cat.byCategory[item.Category] = append(cat.byCategory[item.Category], item)
		cat.items = append(cat.items, item)
	}

	if err := validateExclusions(cat); err != nil {
		return nil, err
	}
	if err := validateTiers(cat); err != nil {
		return nil, err
	}

	cat.version = fingerprint(defs)
	return cat, nil
}

func validateItem(item *domain.CodeDefinition) error {
	if item.ItemNumber == "" {
		return domain.NewEngineError(domain.ErrCatalogInvalid, "item number is required", "")
	}
	if _, ok := domain.ParseCategory(string(item.Category)); !ok {
		return domain.NewEngineError(domain.ErrCatalogInvalid,
			fmt.Sprintf("item %s has unknown category %q", item.ItemNumber, item.Category), "")
	}
	if item.Fee < 0 {
		return domain.NewEngineError(domain.ErrCatalogInvalid,
			fmt.Sprintf("item %s has a negative fee", item.ItemNumber), "")
	}
	if item.DurationMin < 0 {
		return domain.NewEngineError(domain.ErrCatalogInvalid,
			fmt.Sprintf("item %s has a negative duration bound", item.ItemNumber), "")
	}
	if !item.OpenEnded() && item.DurationMax < item.DurationMin {
		return domain.NewEngineError(domain.ErrCatalogInvalid,
			fmt.Sprintf("item %s has inverted duration bounds", item.ItemNumber), "")
	}
	if item.MinAge < 0 {
		return domain.NewEngineError(domain.ErrCatalogInvalid,
			fmt.Sprintf("item %s has a negative minimum age", item.ItemNumber), "")
	}
	return nil
}

func validateExclusions(cat *Catalog) error {
	for _, item := range cat.items {
		for _, ex := range item.Exclusions {
			if _, ok := cat.byItem[ex]; !ok {
				return domain.NewEngineError(domain.ErrCatalogInvalid,
					fmt.Sprintf("item %s excludes unknown item %s", item.ItemNumber, ex), "")
			}
		}
	}
	return nil
}

// tieredCategories are the categories where the duration range selects the
// item. Other categories use DurationMin as a floor requirement only, so
// identical ranges there (e.g. a plan and its review) are fine.
var tieredCategories = map[domain.Category]bool{
	domain.StandardConsultation: true,
	domain.HealthAssessment:     true,
}

// validateTiers enforces that duration ranges within one tiered category do
// not overlap. Adjacent tiers may share a boundary minute; the tier whose
// lower bound equals it wins at recommendation time.
func validateTiers(cat *Catalog) error {
	for category, items := range cat.byCategory {
		if !tieredCategories[category] {
			continue
		}
		tiers := make([]*domain.CodeDefinition, len(items))
		copy(tiers, items)
		sort.Slice(tiers, func(i, j int) bool { return tiers[i].DurationMin < tiers[j].DurationMin })

		for i := 1; i < len(tiers); i++ {
			prev, cur := tiers[i-1], tiers[i]
			if prev.OpenEnded() || cur.DurationMin < prev.DurationMax {
				return domain.NewEngineError(domain.ErrCatalogInvalid,
					fmt.Sprintf("items %s and %s have overlapping duration tiers in category %s",
						prev.ItemNumber, cur.ItemNumber, category), "")
			}
		}
	}
	return nil
}

func fingerprint(defs []domain.CodeDefinition) string {
	data, _ := json.Marshal(defs)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// baselineSchedule is the built-in ten-item schedule used when no data file
// is configured.
func baselineSchedule() []domain.CodeDefinition {
	return []domain.CodeDefinition{
		{
			ItemNumber:   "3",
			Description:  "Level A consultation - brief",
			Category:     domain.StandardConsultation,
			Fee:          18.95,
			DurationMin:  0,
			DurationMax:  6,
			Exclusions:   []string{"23", "36", "44"},
			Requirements: []string{"Brief consultation", "Straightforward clinical problem"},
		},
		{
			ItemNumber:   "23",
			Description:  "Level B consultation - standard",
			Category:     domain.StandardConsultation,
			Fee:          40.85,
			DurationMin:  6,
			DurationMax:  20,
			Exclusions:   []string{"3", "36", "44"},
			Requirements: []string{"Standard consultation", "Taking history", "Clinical examination", "Management plan"},
		},
		{
			ItemNumber:   "36",
			Description:  "Level C consultation - long",
			Category:     domain.StandardConsultation,
			Fee:          76.95,
			DurationMin:  20,
			DurationMax:  40,
			Exclusions:   []string{"3", "23", "44"},
			Requirements: []string{"Detailed history", "Comprehensive examination", "Complex problem"},
		},
		{
			ItemNumber:   "44",
			Description:  "Level D consultation - prolonged",
			Category:     domain.StandardConsultation,
			Fee:          113.30,
			DurationMin:  40,
			DurationMax:  domain.DurationUnbounded,
			Exclusions:   []string{"3", "23", "36"},
			Requirements: []string{"Extended consultation", "Complex medical problem", "Detailed counselling"},
		},
		{
			ItemNumber:   "721",
			Description:  "GP Mental Health Treatment Plan",
			Category:     domain.MentalHealth,
			Fee:          96.65,
			DurationMin:  20,
			DurationMax:  domain.DurationUnbounded,
			Exclusions:   []string{"723"},
			Requirements: []string{"Mental health assessment", "Treatment plan development", "Referral arrangements"},
		},
		{
			ItemNumber:   "723",
			Description:  "GP Mental Health Treatment Plan Review",
			Category:     domain.MentalHealth,
			Fee:          75.05,
			DurationMin:  20,
			DurationMax:  domain.DurationUnbounded,
			Exclusions:   []string{"721"},
			Requirements: []string{"Review of mental health treatment plan", "Progress assessment"},
		},
		{
			ItemNumber:   "701",
			Description:  "Brief health assessment",
			Category:     domain.HealthAssessment,
			Fee:          63.75,
			DurationMin:  0,
			DurationMax:  30,
			Requirements: []string{"Health assessment", "Specific patient groups"},
		},
		{
			ItemNumber:   "703",
			Description:  "Health assessment for person aged 75 years and older",
			Category:     domain.HealthAssessment,
			Fee:          144.80,
			DurationMin:  30,
			DurationMax:  domain.DurationUnbounded,
			MinAge:       75,
			Requirements: []string{"Comprehensive health assessment", "Age 75+", "Annual assessment"},
		},
		{
			ItemNumber:   "732",
			Description:  "GP Management Plan (GPMP)",
			Category:     domain.ChronicDisease,
			Fee:          150.35,
			DurationMin:  20,
			DurationMax:  domain.DurationUnbounded,
			Requirements: []string{"Chronic disease", "Comprehensive management plan", "Multidisciplinary care"},
		},
		{
			ItemNumber:   "10997",
			Description:  "After hours consultation - urgent",
			Category:     domain.AfterHours,
			Fee:          137.95,
			DurationMin:  0,
			DurationMax:  domain.DurationUnbounded,
			Requirements: []string{"After hours service", "Urgent medical condition", "Outside normal hours"},
		},
	}
}
