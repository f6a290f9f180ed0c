package knowledge

import (
	"context"
	"fmt"

	"github.com/clinic-suggestion-engine/internal/domain"
)

// Seed loads the built-in reference formulary into the store so a fresh
// standalone deployment answers requests immediately. Existing rows with
// the same identity are replaced, so seeding is idempotent.
func (s *SQLiteStore) Seed(ctx context.Context) error {
	for i := range seedMedicines {
		if err := s.UpsertMedicine(ctx, &seedMedicines[i]); err != nil {
			return fmt.Errorf("seeding medicine %s: %w", seedMedicines[i].Name, err)
		}
	}
	for i := range seedRules {
		if err := s.UpsertRule(ctx, &seedRules[i]); err != nil {
			return fmt.Errorf("seeding interaction rule: %w", err)
		}
	}
	return nil
}

// seedMedicines is a compact starter formulary covering the common
// outpatient categories. Production deployments replace it with a full
// catalog import.
var seedMedicines = []domain.MedicineRecord{
	{
		ID: "seed-amoxicillin", Name: "Amoxicillin", GenericName: "Amoxicillin",
		BrandName: "Amoxil", Category: "Antibiotic", Form: "Capsule",
		Strength: "500mg", Route: "oral",
		Indications:       []string{"Bacterial infection", "Otitis media", "Sinusitis", "Pharyngitis"},
		Contraindications: []string{"Penicillin allergy"},
		SideEffects:       []string{"Nausea", "Diarrhea", "Rash"},
		DosageText:        "Adults: 500mg every 8 hours for 7 days. Children: 25mg/kg/day divided every 12 hours for 7 days.",
		IsPrescription:    true, IsActive: true,
	},
	{
		ID: "seed-azithromycin", Name: "Azithromycin", GenericName: "Azithromycin",
		BrandName: "Zithromax", Category: "Antibiotic", Form: "Tablet",
		Strength: "250mg", Route: "oral",
		Indications:       []string{"Bacterial infection", "Pneumonia", "Pharyngitis"},
		Contraindications: []string{"Macrolide allergy", "Severe hepatic impairment"},
		SideEffects:       []string{"Nausea", "Abdominal pain"},
		DosageText:        "Adults: 500mg once daily for 3 days.",
		IsPrescription:    true, IsActive: true,
	},
	{
		ID: "seed-ibuprofen", Name: "Ibuprofen", GenericName: "Ibuprofen",
		BrandName: "Advil", Category: "NSAID", Form: "Tablet",
		Strength: "400mg", Route: "oral",
		Indications:       []string{"Pain", "Inflammation", "Fever", "Headache"},
		Contraindications: []string{"Peptic ulcer", "Severe renal impairment"},
		SideEffects:       []string{"Dyspepsia", "Gastric irritation"},
		DosageText:        "Adults: 400mg every 6 hours as needed for 5 days. Children: 10mg/kg every 8 hours as needed.",
		IsActive:          true,
	},
	{
		ID: "seed-naproxen", Name: "Naproxen", GenericName: "Naproxen",
		BrandName: "Aleve", Category: "NSAID", Form: "Tablet",
		Strength: "250mg", Route: "oral",
		Indications:       []string{"Pain", "Inflammation", "Arthritis"},
		Contraindications: []string{"Peptic ulcer", "Severe renal impairment"},
		SideEffects:       []string{"Dyspepsia", "Headache"},
		DosageText:        "Adults: 250mg every 12 hours for 7 days.",
		IsActive:          true,
	},
	{
		ID: "seed-paracetamol", Name: "Paracetamol", GenericName: "Acetaminophen",
		BrandName: "Tylenol", Category: "Analgesic", Form: "Tablet",
		Strength: "500mg", Route: "oral",
		Indications:       []string{"Pain", "Fever", "Headache"},
		Contraindications: []string{"Severe hepatic impairment"},
		SideEffects:       []string{"Rare at therapeutic doses"},
		DosageText:        "Adults: 500mg every 6 hours as needed. Children: 15mg/kg every 6 hours as needed.",
		IsActive:          true,
	},
	{
		ID: "seed-aspirin", Name: "Aspirin", GenericName: "Acetylsalicylic acid",
		Category: "Antiplatelet", Form: "Tablet",
		Strength: "81mg", Route: "oral",
		Indications:       []string{"Cardiovascular prophylaxis", "Pain", "Fever"},
		Contraindications: []string{"Bleeding disorder", "Peptic ulcer", "Children with viral illness"},
		SideEffects:       []string{"Gastric irritation", "Bleeding"},
		DosageText:        "Adults: 81mg once daily.",
		IsActive:          true,
	},
	{
		ID: "seed-warfarin", Name: "Warfarin", GenericName: "Warfarin",
		BrandName: "Coumadin", Category: "Anticoagulant", Form: "Tablet",
		Strength: "5mg", Route: "oral",
		Indications:       []string{"Thrombosis", "Atrial fibrillation", "Pulmonary embolism"},
		Contraindications: []string{"Active bleeding", "Pregnancy"},
		SideEffects:       []string{"Bleeding", "Bruising"},
		DosageText:        "Adults: 5mg once daily, adjusted to INR.",
		IsPrescription:    true, IsActive: true,
	},
	{
		ID: "seed-lisinopril", Name: "Lisinopril", GenericName: "Lisinopril",
		BrandName: "Zestril", Category: "ACE Inhibitor", Form: "Tablet",
		Strength: "10mg", Route: "oral",
		Indications:       []string{"Hypertension", "Heart failure"},
		Contraindications: []string{"Angioedema history", "Pregnancy"},
		SideEffects:       []string{"Dry cough", "Dizziness"},
		DosageText:        "Adults: 10mg once daily. Elderly: 2.5mg once daily initially.",
		IsPrescription:    true, IsActive: true,
	},
	{
		ID: "seed-amlodipine", Name: "Amlodipine", GenericName: "Amlodipine",
		BrandName: "Norvasc", Category: "Calcium Channel Blocker", Form: "Tablet",
		Strength: "5mg", Route: "oral",
		Indications:       []string{"Hypertension", "Angina"},
		Contraindications: []string{"Severe hypotension"},
		SideEffects:       []string{"Ankle edema", "Flushing"},
		DosageText:        "Adults: 5mg once daily. Elderly: 2.5mg once daily initially.",
		IsPrescription:    true, IsActive: true,
	},
	{
		ID: "seed-metformin", Name: "Metformin", GenericName: "Metformin",
		BrandName: "Glucophage", Category: "Antidiabetic", Form: "Tablet",
		Strength: "500mg", Route: "oral",
		Indications:       []string{"Type 2 diabetes"},
		Contraindications: []string{"Severe renal impairment", "Metabolic acidosis"},
		SideEffects:       []string{"Nausea", "Diarrhea"},
		DosageText:        "Adults: 500mg every 12 hours with meals.",
		IsPrescription:    true, IsActive: true,
	},
	{
		ID: "seed-omeprazole", Name: "Omeprazole", GenericName: "Omeprazole",
		BrandName: "Prilosec", Category: "Proton Pump Inhibitor", Form: "Capsule",
		Strength: "20mg", Route: "oral",
		Indications:       []string{"Gastroesophageal reflux", "Peptic ulcer", "Dyspepsia"},
		SideEffects:       []string{"Headache", "Abdominal pain"},
		DosageText:        "Adults: 20mg once daily before breakfast for 14 days.",
		IsActive:          true,
	},
	{
		ID: "seed-cetirizine", Name: "Cetirizine", GenericName: "Cetirizine",
		BrandName: "Zyrtec", Category: "Antihistamine", Form: "Tablet",
		Strength: "10mg", Route: "oral",
		Indications:       []string{"Allergic rhinitis", "Urticaria", "Seasonal allergies"},
		SideEffects:       []string{"Drowsiness", "Dry mouth"},
		DosageText:        "Adults: 10mg once daily. Children: 5mg once daily.",
		IsActive:          true,
	},
	{
		ID: "seed-tramadol", Name: "Tramadol", GenericName: "Tramadol",
		BrandName: "Ultram", Category: "Opioid Analgesic", Form: "Tablet",
		Strength: "50mg", Route: "oral",
		Indications:       []string{"Moderate pain", "Severe pain"},
		Contraindications: []string{"Seizure disorder", "MAOI use"},
		SideEffects:       []string{"Drowsiness", "Nausea", "Constipation"},
		DosageText:        "Adults: 50mg every 6 hours as needed for 3 days.",
		IsPrescription:    true, IsControlled: true, IsActive: true,
	},
}

// seedRules is the starter interaction rule table for the seed formulary.
var seedRules = []domain.InteractionWarning{
	{
		Medications:    []string{"Warfarin", "Aspirin"},
		Severity:       domain.SEVERITY_HIGH,
		Description:    "Combined anticoagulant and antiplatelet effect markedly increases bleeding risk",
		Recommendation: "Avoid combination unless specifically indicated; monitor INR closely",
	},
	{
		Medications:    []string{"Warfarin", "Ibuprofen"},
		Severity:       domain.SEVERITY_HIGH,
		Description:    "NSAIDs potentiate warfarin and irritate gastric mucosa, raising bleeding risk",
		Recommendation: "Prefer paracetamol for analgesia in anticoagulated patients",
	},
	{
		Medications:    []string{"Warfarin", "Naproxen"},
		Severity:       domain.SEVERITY_HIGH,
		Description:    "NSAIDs potentiate warfarin and irritate gastric mucosa, raising bleeding risk",
		Recommendation: "Prefer paracetamol for analgesia in anticoagulated patients",
	},
	{
		Medications:    []string{"Warfarin", "Azithromycin"},
		Severity:       domain.SEVERITY_MODERATE,
		Description:    "Macrolides may potentiate warfarin effect",
		Recommendation: "Monitor INR during and after the antibiotic course",
	},
	{
		Medications:    []string{"Aspirin", "Ibuprofen"},
		Severity:       domain.SEVERITY_MODERATE,
		Description:    "Ibuprofen can blunt the antiplatelet effect of low-dose aspirin",
		Recommendation: "Separate dosing; take aspirin at least 30 minutes before ibuprofen",
	},
	{
		Medications:    []string{"Ibuprofen", "Naproxen"},
		Severity:       domain.SEVERITY_MODERATE,
		Description:    "Duplicate NSAID therapy increases gastrointestinal and renal toxicity without added benefit",
		Recommendation: "Use a single NSAID at the lowest effective dose",
	},
	{
		Medications:    []string{"Ibuprofen", "Lisinopril"},
		Severity:       domain.SEVERITY_MODERATE,
		Description:    "NSAIDs reduce the antihypertensive effect of ACE inhibitors and may impair renal function",
		Recommendation: "Monitor blood pressure and renal function with prolonged concurrent use",
	},
	{
		Medications:    []string{"Tramadol", "Warfarin"},
		Severity:       domain.SEVERITY_MODERATE,
		Description:    "Tramadol may potentiate warfarin effect",
		Recommendation: "Monitor INR when starting or stopping tramadol",
	},
	{
		Medications:    []string{"Aspirin", "Paracetamol"},
		Severity:       domain.SEVERITY_LOW,
		Description:    "Generally safe together at therapeutic doses",
		Recommendation: "No routine monitoring required",
	},
}
