package domain

import (
	"sort"
	"time"
)

// Core Enums and Types

// Category classifies an MBS item by schedule group.
type Category string

const (
	StandardConsultation Category = "standard_consultation"
	MentalHealth         Category = "mental_health"
	HealthAssessment     Category = "health_assessment"
	ChronicDisease       Category = "chronic_disease_management"
	AfterHours           Category = "after_hours"
	UrgentCare           Category = "urgent_care"
)

// String returns the string representation of the category
func (c Category) String() string {
	return string(c)
}

// ParseCategory validates a category string from external input.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case StandardConsultation, MentalHealth, HealthAssessment,
		ChronicDisease, AfterHours, UrgentCare:
		return Category(s), true
	}
	return "", false
}

// DurationUnbounded marks an open-ended top duration tier.
const DurationUnbounded = -1

// CodeDefinition represents one entry of the MBS schedule
type CodeDefinition struct {
	ItemNumber   string   `json:"item_number"`
	Description  string   `json:"description"`
	Category     Category `json:"category"`
	Fee          float64  `json:"fee"`
	DurationMin  int      `json:"duration_min"`
	DurationMax  int      `json:"duration_max"` // DurationUnbounded for open-ended tiers
	Exclusions   []string `json:"exclusions,omitempty"`
	MinAge       int      `json:"min_age,omitempty"` // zero means no age requirement
	Requirements []string `json:"requirements,omitempty"`
}

// OpenEnded reports whether the item's duration tier has no upper bound.
func (d *CodeDefinition) OpenEnded() bool {
	return d.DurationMax == DurationUnbounded
}

// ContainsDuration reports whether the given duration falls within the item's
// inclusive duration bounds.
func (d *CodeDefinition) ContainsDuration(minutes int) bool {
	if minutes < d.DurationMin {
		return false
	}
	return d.OpenEnded() || minutes <= d.DurationMax
}

// Excludes reports whether the item declares the other item as non-combinable.
func (d *CodeDefinition) Excludes(itemNumber string) bool {
	for _, ex := range d.Exclusions {
		if ex == itemNumber {
			return true
		}
	}
	return false
}

// Signal Models

// Tag is a canonical extracted signal identifier (e.g. "diabetes", "referral").
type Tag string

// SignalSet is the structured output of signal extraction over consultation
// text. Tag slices are kept sorted and deduplicated so two extractions of the
// same text compare equal.
type SignalSet struct {
	Symptoms   []Tag `json:"symptoms"`
	Diagnoses  []Tag `json:"diagnoses"`
	Treatments []Tag `json:"treatments"`
	IsUrgent   bool  `json:"is_urgent"`
	IsChronic  bool  `json:"is_chronic"`
}

// IsEmpty reports whether no signal of any kind was extracted.
func (s *SignalSet) IsEmpty() bool {
	return len(s.Symptoms) == 0 && len(s.Diagnoses) == 0 && len(s.Treatments) == 0 &&
		!s.IsUrgent && !s.IsChronic
}

// HasDiagnosis reports whether the diagnosis tag is present.
func (s *SignalSet) HasDiagnosis(tag Tag) bool {
	return containsTag(s.Diagnoses, tag)
}

// HasTreatment reports whether the treatment tag is present.
func (s *SignalSet) HasTreatment(tag Tag) bool {
	return containsTag(s.Treatments, tag)
}

// HasSymptom reports whether the symptom tag is present.
func (s *SignalSet) HasSymptom(tag Tag) bool {
	return containsTag(s.Symptoms, tag)
}

func containsTag(tags []Tag, tag Tag) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SortTags sorts a tag slice in place into canonical order.
func SortTags(tags []Tag) {
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
}

// ConsultationInfo is the full extraction result: the signal set plus
// supplementary details mentioned in the text itself.
type ConsultationInfo struct {
	Signals             SignalSet `json:"signals"`
	DurationMentioned   *int      `json:"duration_mentioned,omitempty"`
	PatientAgeMentioned *int      `json:"patient_age_mentioned,omitempty"`
	NeedsFollowup       bool      `json:"needs_followup"`
	KeyPhrases          []string  `json:"key_phrases,omitempty"`
}

// Recommendation Models

// Recommendation is one ranked billing-code suggestion.
type Recommendation struct {
	ItemNumber  string   `json:"item_number"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Fee         float64  `json:"fee"`
	Confidence  float64  `json:"confidence"`
	Rationale   []string `json:"rationale"`
}

// Compliance Models

// Severity classifies a compliance violation.
type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityWarning  Severity = "warning"
)

// Compliance rule identifiers, reported on violations.
const (
	RuleMutualExclusion     = "mutual_exclusion"
	RuleSingleStandardTier  = "single_standard_tier"
	RuleAgeEligibility      = "age_eligibility"
	RuleCategoryPairing     = "category_pairing"
	RuleDurationConsistency = "duration_consistency"
)

// Violation records one broken schedule rule.
type Violation struct {
	ItemNumbers []string `json:"item_numbers"`
	Rule        string   `json:"rule"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
}

// ComplianceInput is a proposed billing combination to validate.
type ComplianceInput struct {
	ItemNumbers     []string `json:"item_numbers"`
	PatientAge      *int     `json:"patient_age,omitempty"`
	DurationMinutes *int     `json:"duration_minutes,omitempty"`
}

// ComplianceVerdict is the outcome of checking a billing combination.
// IsCompliant is true iff no blocking violation was recorded; warnings are
// surfaced but never flip compliance.
type ComplianceVerdict struct {
	IsCompliant bool        `json:"is_compliant"`
	Violations  []Violation `json:"violations"`
	Suggestions []string    `json:"suggestions"`
}

// Consultation Models

// ConsultationRecord is a persisted consultation with its extraction and
// recommendation results.
type ConsultationRecord struct {
	ID              string           `json:"id"`
	PatientID       string           `json:"patient_id"`
	ProviderID      string           `json:"provider_id"`
	RawText         string           `json:"raw_text"`
	DurationMinutes int              `json:"duration_minutes"`
	PatientAge      *int             `json:"patient_age,omitempty"`
	Info            ConsultationInfo `json:"info"`
	Recommendations []Recommendation `json:"recommendations"`
	Summary         string           `json:"summary,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Claim Models

// ClaimParty identifies a patient or provider on a claim document.
type ClaimParty struct {
	Name           string `json:"name"`
	MedicareNumber string `json:"medicare_number,omitempty"`
	ProviderNumber string `json:"provider_number,omitempty"`
	DateOfBirth    string `json:"dob,omitempty"`
}

// ClaimRequest describes a claim to render.
type ClaimRequest struct {
	ItemNumbers      []string   `json:"item_numbers"`
	Patient          ClaimParty `json:"patient"`
	Provider         ClaimParty `json:"provider"`
	ConsultationDate time.Time  `json:"consultation_date"`
}

// ClaimDocument is a rendered claim with its file locations.
type ClaimDocument struct {
	ClaimID      string    `json:"claim_id"`
	TextPath     string    `json:"text_path"`
	JSONPath     string    `json:"json_path"`
	TotalFee     float64   `json:"total_fee"`
	TotalBenefit float64   `json:"total_benefit"`
	GeneratedAt  time.Time `json:"generated_at"`
}
