package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mbs-billing-assistant/internal/domain"
)

// medicareBenefitRate is the benefit share of the schedule fee for the
// rendered claim total.
const medicareBenefitRate = 1.0

// DocumentService renders claim documents and consultation summaries to dated
// files under the configured output directory. Formatting only; schedule
// decisions stay in the engine services.
type DocumentService struct {
	logger    *logrus.Logger
	outputDir string
}

var _ domain.DocumentGenerator = (*DocumentService)(nil)

// NewDocumentService creates a document generator writing under outputDir.
func NewDocumentService(logger *logrus.Logger, outputDir string) *DocumentService {
	return &DocumentService{
		logger:    logger,
		outputDir: outputDir,
	}
}

// GenerateClaimDocument renders a claim as paired .txt and .json files.
func (s *DocumentService) GenerateClaimDocument(req *domain.ClaimRequest, items []*domain.CodeDefinition) (*domain.ClaimDocument, error) {
	if len(items) == 0 {
		return nil, domain.NewInvalidInput("item_numbers", "at least one item is required")
	}

	now := time.Now()
	claimID := fmt.Sprintf("CLM%s-%s", now.Format("20060102"),
		strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6]))

	dir := filepath.Join(s.outputDir, "claims", now.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating claim directory: %w", err)
	}

	var totalFee float64
	for _, item := range items {
		totalFee += item.Fee
	}
	totalBenefit := totalFee * medicareBenefitRate

	doc := &domain.ClaimDocument{
		ClaimID:      claimID,
		TextPath:     filepath.Join(dir, claimID+".txt"),
		JSONPath:     filepath.Join(dir, claimID+".json"),
		TotalFee:     totalFee,
		TotalBenefit: totalBenefit,
		GeneratedAt:  now.UTC(),
	}

	payload := map[string]interface{}{
		"claim_id":          claimID,
		"claim_date":        now.Format("2006-01-02"),
		"patient":           req.Patient,
		"provider":          req.Provider,
		"consultation_date": req.ConsultationDate.Format("2006-01-02"),
		"items":             items,
		"total_fee":         totalFee,
		"total_benefit":     totalBenefit,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding claim: %w", err)
	}
	if err := os.WriteFile(doc.JSONPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing claim json: %w", err)
	}

	text := formatClaimText(claimID, req, items, totalFee, totalBenefit, now)
	if err := os.WriteFile(doc.TextPath, []byte(text), 0o644); err != nil {
		return nil, fmt.Errorf("writing claim text: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"claim_id": claimID,
		"items":    len(items),
		"path":     doc.TextPath,
	}).Info("Claim document generated")

	return doc, nil
}

// GenerateConsultationSummary writes a consultation summary file and returns
// its path.
func (s *DocumentService) GenerateConsultationSummary(record *domain.ConsultationRecord) (string, error) {
	dir := filepath.Join(s.outputDir, "summaries", time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating summary directory: %w", err)
	}

	path := filepath.Join(dir, record.ID+".txt")

	var b strings.Builder
	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString("CONSULTATION SUMMARY\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString(fmt.Sprintf("Consultation ID: %s\n", record.ID))
	if record.Summary != "" {
		b.WriteString("\n" + record.Summary + "\n")
	}
	b.WriteString(fmt.Sprintf("\nGenerated at: %s\n", time.Now().Format("2006-01-02 15:04:05")))

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("writing summary: %w", err)
	}

	s.logger.WithField("path", path).Info("Consultation summary generated")
	return path, nil
}

func formatClaimText(claimID string, req *domain.ClaimRequest, items []*domain.CodeDefinition, totalFee, totalBenefit float64, now time.Time) string {
	var b strings.Builder
	rule := strings.Repeat("=", 60)
	sub := strings.Repeat("-", 40)

	b.WriteString(rule + "\n")
	b.WriteString("MEDICARE BENEFITS SCHEDULE CLAIM\n")
	b.WriteString(rule + "\n\n")
	b.WriteString(fmt.Sprintf("Claim ID: %s\n", claimID))
	b.WriteString(fmt.Sprintf("Claim Date: %s\n\n", now.Format("2006-01-02")))

	b.WriteString("PROVIDER DETAILS:\n" + sub + "\n")
	b.WriteString(fmt.Sprintf("Provider Number: %s\n", orNA(req.Provider.ProviderNumber)))
	b.WriteString(fmt.Sprintf("Provider Name: %s\n\n", orNA(req.Provider.Name)))

	b.WriteString("PATIENT DETAILS:\n" + sub + "\n")
	b.WriteString(fmt.Sprintf("Medicare Number: %s\n", orNA(req.Patient.MedicareNumber)))
	b.WriteString(fmt.Sprintf("Patient Name: %s\n", orNA(req.Patient.Name)))
	b.WriteString(fmt.Sprintf("Date of Birth: %s\n\n", orNA(req.Patient.DateOfBirth)))

	b.WriteString("SERVICE DETAILS:\n" + sub + "\n")
	b.WriteString(fmt.Sprintf("Consultation Date: %s\n\n", req.ConsultationDate.Format("2006-01-02")))

	b.WriteString("MBS ITEMS:\n" + sub + "\n")
	for _, item := range items {
		b.WriteString(fmt.Sprintf("Item Number: %s\n", item.ItemNumber))
		b.WriteString(fmt.Sprintf("Description: %s\n", item.Description))
		b.WriteString(fmt.Sprintf("Fee: $%.2f\n\n", item.Fee))
	}

	b.WriteString(rule + "\n")
	b.WriteString(fmt.Sprintf("TOTAL FEE: $%.2f\n", totalFee))
	b.WriteString(fmt.Sprintf("TOTAL BENEFIT: $%.2f\n", totalBenefit))
	b.WriteString(rule + "\n\n")
	b.WriteString("This document is generated automatically.\n")
	b.WriteString(fmt.Sprintf("Generated at: %s\n", now.Format("2006-01-02 15:04:05")))

	return b.String()
}

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}
