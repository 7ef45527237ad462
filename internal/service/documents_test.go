package service

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbs-billing-assistant/internal/domain"
)

func TestDocumentService_GenerateClaimDocument(t *testing.T) {
	documents := NewDocumentService(testLogger(), t.TempDir())

	items := []*domain.CodeDefinition{
		{ItemNumber: "36", Description: "Level C consultation - long", Category: domain.StandardConsultation, Fee: 76.95},
		{ItemNumber: "732", Description: "GP Management Plan (GPMP)", Category: domain.ChronicDisease, Fee: 150.35},
	}

	doc, err := documents.GenerateClaimDocument(&domain.ClaimRequest{
		ItemNumbers: []string{"36", "732"},
		Patient: domain.ClaimParty{
			Name:           "Jane Citizen",
			MedicareNumber: "2123 45670 1",
		},
		Provider: domain.ClaimParty{
			Name:           "Dr A Practitioner",
			ProviderNumber: "1234567A",
		},
		ConsultationDate: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
	}, items)
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Regexp(t, `^CLM\d{8}-[0-9A-F]{6}$`, doc.ClaimID)
	assert.InDelta(t, 227.30, doc.TotalFee, 1e-9)
	assert.InDelta(t, 227.30, doc.TotalBenefit, 1e-9)

	text, err := os.ReadFile(doc.TextPath)
	require.NoError(t, err)
	assert.Contains(t, string(text), "MEDICARE BENEFITS SCHEDULE CLAIM")
	assert.Contains(t, string(text), "Item Number: 36")
	assert.Contains(t, string(text), "Item Number: 732")
	assert.Contains(t, string(text), "Patient Name: Jane Citizen")
	assert.Contains(t, string(text), "Consultation Date: 2025-03-14")
	assert.Contains(t, string(text), "TOTAL FEE: $227.30")

	data, err := os.ReadFile(doc.JSONPath)
	require.NoError(t, err)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, doc.ClaimID, payload["claim_id"])
	assert.InDelta(t, 227.30, payload["total_fee"].(float64), 1e-9)
}

func TestDocumentService_GenerateClaimDocumentEmptyItems(t *testing.T) {
	documents := NewDocumentService(testLogger(), t.TempDir())

	_, err := documents.GenerateClaimDocument(&domain.ClaimRequest{}, nil)
	assert.True(t, domain.IsInvalidInput(err))
}

func TestDocumentService_GenerateClaimDocumentMissingFields(t *testing.T) {
	documents := NewDocumentService(testLogger(), t.TempDir())

	doc, err := documents.GenerateClaimDocument(&domain.ClaimRequest{
		ConsultationDate: time.Now(),
	}, []*domain.CodeDefinition{{ItemNumber: "23", Fee: 40.85}})
	require.NoError(t, err)

	text, err := os.ReadFile(doc.TextPath)
	require.NoError(t, err)
	assert.Contains(t, string(text), "Patient Name: N/A")
	assert.Contains(t, string(text), "Provider Number: N/A")
}

func TestDocumentService_GenerateConsultationSummary(t *testing.T) {
	documents := NewDocumentService(testLogger(), t.TempDir())

	path, err := documents.GenerateConsultationSummary(&domain.ConsultationRecord{
		ID:      "C20250314-AB12CD",
		Summary: "Patient ID: P1001\nPossible diagnoses: diabetes",
	})
	require.NoError(t, err)

	text, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(text), "CONSULTATION SUMMARY")
	assert.Contains(t, string(text), "Consultation ID: C20250314-AB12CD")
	assert.Contains(t, string(text), "Possible diagnoses: diabetes")
}
