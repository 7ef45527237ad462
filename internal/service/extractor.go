package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mbs-billing-assistant/internal/domain"
)

// ExtractorService turns free consultation text into a structured signal set
// by matching the lexicon tables against the lowercased input. Extraction
// never fails: text with no matches yields an empty SignalSet.
type ExtractorService struct {
	logger  *logrus.Logger
	lexicon *Lexicon
}

var _ domain.SignalExtractor = (*ExtractorService)(nil)

// NewExtractorService creates an extractor over the default lexicon.
func NewExtractorService(logger *logrus.Logger) *ExtractorService {
	return NewExtractorServiceWithLexicon(logger, DefaultLexicon())
}

// NewExtractorServiceWithLexicon creates an extractor over custom keyword tables.
func NewExtractorServiceWithLexicon(logger *logrus.Logger, lexicon *Lexicon) *ExtractorService {
	return &ExtractorService{
		logger:  logger,
		lexicon: lexicon,
	}
}

var (
	durationMinutesRe = regexp.MustCompile(`(\d+)\s*(?:minutes?|mins?)\b`)
	durationHoursRe   = regexp.MustCompile(`(\d+)\s*(?:hours?|hrs?)\b`)
	patientAgeRe      = regexp.MustCompile(`(?:(\d+)\s*(?:years?\s*old|y/?o)\b|\baged?\s*(\d+)\b)`)
	sentenceSplitRe   = regexp.MustCompile(`[.!?]`)
)

// Extract parses consultation text into a SignalSet.
func (e *ExtractorService) Extract(text string) domain.SignalSet {
	lower := strings.ToLower(text)

	signals := domain.SignalSet{
		Symptoms:   matchTags(lower, e.lexicon.Symptoms),
		Diagnoses:  matchTags(lower, e.lexicon.Diagnoses),
		Treatments: matchTags(lower, e.lexicon.Treatments),
	}

	signals.IsUrgent = containsAny(lower, e.lexicon.UrgencyPhrases)
	if !signals.IsUrgent {
		for _, tag := range signals.Diagnoses {
			if e.lexicon.UrgentDiagnoses[tag] {
				signals.IsUrgent = true
				break
			}
		}
	}

	signals.IsChronic = containsAny(lower, e.lexicon.ChronicPhrases)
	if !signals.IsChronic {
		for _, tag := range signals.Diagnoses {
			if e.lexicon.ChronicDiagnoses[tag] {
				signals.IsChronic = true
				break
			}
		}
	}

	return signals
}

// ExtractConsultationInfo parses the text into the full consultation info:
// the signal set plus duration, age, follow-up, and key phrases mentioned in
// the text itself.
func (e *ExtractorService) ExtractConsultationInfo(text string) domain.ConsultationInfo {
	lower := strings.ToLower(text)

	info := domain.ConsultationInfo{
		Signals:           e.Extract(text),
		DurationMentioned: parseMentionedDuration(lower),
		NeedsFollowup:     containsAny(lower, e.lexicon.FollowupPhrases),
		KeyPhrases:        leadingPhrases(text, 3),
	}

	if m := patientAgeRe.FindStringSubmatch(lower); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if age, err := strconv.Atoi(raw); err == nil {
			info.PatientAgeMentioned = &age
		}
	}

	e.logger.WithFields(logrus.Fields{
		"symptoms":   len(info.Signals.Symptoms),
		"diagnoses":  len(info.Signals.Diagnoses),
		"treatments": len(info.Signals.Treatments),
		"urgent":     info.Signals.IsUrgent,
		"chronic":    info.Signals.IsChronic,
	}).Debug("Extracted consultation info")

	return info
}

// Summarize renders a consultation record into a plain-text summary.
func (e *ExtractorService) Summarize(record *domain.ConsultationRecord) string {
	var parts []string

	if !record.CreatedAt.IsZero() {
		parts = append(parts, fmt.Sprintf("Date: %s", record.CreatedAt.Format("2006-01-02")))
	}
	if record.PatientID != "" {
		parts = append(parts, fmt.Sprintf("Patient ID: %s", record.PatientID))
	}

	signals := record.Info.Signals
	if len(signals.Symptoms) > 0 {
		parts = append(parts, fmt.Sprintf("Presenting symptoms: %s", joinTags(signals.Symptoms)))
	}
	if len(signals.Diagnoses) > 0 {
		parts = append(parts, fmt.Sprintf("Possible diagnoses: %s", joinTags(signals.Diagnoses)))
	}
	if len(signals.Treatments) > 0 {
		parts = append(parts, fmt.Sprintf("Treatment approach: %s", joinTags(signals.Treatments)))
	}

	if len(record.Recommendations) > 0 {
		items := make([]string, 0, 3)
		for i, rec := range record.Recommendations {
			if i == 3 {
				break
			}
			items = append(items, rec.ItemNumber)
		}
		parts = append(parts, fmt.Sprintf("Recommended MBS items: %s", strings.Join(items, ", ")))
	}

	if record.Info.NeedsFollowup {
		parts = append(parts, "Follow-up required")
	}

	return strings.Join(parts, "\n")
}

// matchTags returns the sorted tag set whose surface forms occur in the text.
func matchTags(lower string, table map[domain.Tag][]string) []domain.Tag {
	var tags []domain.Tag
	for tag, forms := range table {
		if containsAny(lower, forms) {
			tags = append(tags, tag)
		}
	}
	domain.SortTags(tags)
	return tags
}

func containsAny(lower string, forms []string) bool {
	for _, form := range forms {
		if strings.Contains(lower, form) {
			return true
		}
	}
	return false
}

func parseMentionedDuration(lower string) *int {
	if m := durationMinutesRe.FindStringSubmatch(lower); m != nil {
		if minutes, err := strconv.Atoi(m[1]); err == nil {
			return &minutes
		}
	}
	if m := durationHoursRe.FindStringSubmatch(lower); m != nil {
		if hours, err := strconv.Atoi(m[1]); err == nil {
			minutes := hours * 60
			return &minutes
		}
	}
	return nil
}

// leadingPhrases returns up to limit sentences of meaningful length.
func leadingPhrases(text string, limit int) []string {
	var phrases []string
	for _, sentence := range sentenceSplitRe.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) <= 10 {
			continue
		}
		phrases = append(phrases, sentence)
		if len(phrases) == limit {
			break
		}
	}
	return phrases
}

func joinTags(tags []domain.Tag) string {
	parts := make([]string, len(tags))
	for i, tag := range tags {
		parts[i] = string(tag)
	}
	return strings.Join(parts, ", ")
}
