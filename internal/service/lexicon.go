package service

import "github.com/mbs-billing-assistant/internal/domain"

// Lexicon holds the keyword tables driving signal extraction. Each entry maps
// a canonical tag to the surface forms that trigger it; matching is
// case-insensitive substring search, independent per tag. The tables are data
// so the rule set can be audited and extended without touching control flow.
type Lexicon struct {
	Symptoms   map[domain.Tag][]string
	Diagnoses  map[domain.Tag][]string
	Treatments map[domain.Tag][]string

	// UrgencyPhrases flag the consultation as urgent directly.
	UrgencyPhrases []string
	// ChronicPhrases flag chronic care directly, independent of diagnosis.
	ChronicPhrases []string
	// FollowupPhrases flag that a review or follow-up was arranged.
	FollowupPhrases []string

	// ChronicDiagnoses is the diagnosis subset that implies chronic care.
	ChronicDiagnoses map[domain.Tag]bool
	// UrgentDiagnoses is the diagnosis subset that implies urgency on its own.
	UrgentDiagnoses map[domain.Tag]bool
}

// DefaultLexicon returns the baseline keyword tables.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Symptoms: map[domain.Tag][]string{
			"pain":       {"pain", "ache", "hurt", "sore"},
			"fever":      {"fever", "temperature", "febrile"},
			"cough":      {"cough"},
			"headache":   {"headache", "migraine"},
			"fatigue":    {"tired", "fatigue", "exhausted", "lethargic"},
			"nausea":     {"nausea", "vomit"},
			"anxiety":    {"anxiety", "anxious", "worried"},
			"depression": {"depression", "depressed", "low mood"},
		},
		Diagnoses: map[domain.Tag][]string{
			"respiratory":    {"respiratory", "bronchitis", "pneumonia", "asthma"},
			"cardiovascular": {"heart", "cardiac", "hypertension", "blood pressure"},
			"diabetes":       {"diabetes", "diabetic", "blood sugar", "glucose", "hba1c"},
			"mental_health":  {"mental", "psychiatric", "depression", "anxiety"},
		},
		Treatments: map[domain.Tag][]string{
			"medication":  {"prescribe", "prescription", "medication", "drug", "script"},
			"referral":    {"refer", "specialist"},
			"test":        {"test", "examination", "x-ray", "blood test", "pathology"},
			"counselling": {"counsel", "therapy", "psychologist"},
		},
		UrgencyPhrases:  []string{"urgent", "emergency", "severe", "acute"},
		ChronicPhrases:  []string{"chronic", "long-term", "long term", "ongoing"},
		FollowupPhrases: []string{"follow up", "follow-up", "review", "return"},
		ChronicDiagnoses: map[domain.Tag]bool{
			"diabetes":       true,
			"cardiovascular": true,
		},
		// No diagnosis tag in the baseline tables is urgent on its own;
		// urgency comes from explicit phrasing. Kept as data for schedules
		// that add acute condition tags.
		UrgentDiagnoses: map[domain.Tag]bool{},
	}
}
