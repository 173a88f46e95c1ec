// Package vocab holds the medical vocabulary tables used by the
// corrected transcription tier and the entity comprehension engine:
// symptom and condition terms, medication names with brand/generic
// pairs, clinical measurements, and abbreviation expansions.
package vocab

import (
	"sort"
	"strings"
)

// SymptomTerm describes a recognized symptom phrase. Location and
// Character seed the extracted entity's attributes when the phrase
// itself implies them ("chest pain" implies location=chest).
type SymptomTerm struct {
	Canonical string
	Location  string
	Character string
}

// Symptoms maps lowercase symptom phrases to their canonical terms.
// Multi-word phrases are matched longest-first.
var Symptoms = map[string]SymptomTerm{
	"chest pain":          {Canonical: "chest pain", Location: "chest"},
	"chest pressure":      {Canonical: "chest pain", Location: "chest", Character: "pressure"},
	"chest tightness":     {Canonical: "chest pain", Location: "chest", Character: "tightness"},
	"shortness of breath": {Canonical: "dyspnea"},
	"dyspnea":             {Canonical: "dyspnea"},
	"trouble breathing":   {Canonical: "dyspnea"},
	"abdominal pain":      {Canonical: "abdominal pain", Location: "abdomen"},
	"stomach pain":        {Canonical: "abdominal pain", Location: "abdomen"},
	"headache":            {Canonical: "headache", Location: "head"},
	"back pain":           {Canonical: "back pain", Location: "back"},
	"nausea":              {Canonical: "nausea"},
	"vomiting":            {Canonical: "vomiting"},
	"diarrhea":            {Canonical: "diarrhea"},
	"constipation":        {Canonical: "constipation"},
	"fever":               {Canonical: "fever"},
	"chills":              {Canonical: "chills"},
	"sweats":              {Canonical: "diaphoresis"},
	"sweating":            {Canonical: "diaphoresis"},
	"diaphoresis":         {Canonical: "diaphoresis"},
	"fatigue":             {Canonical: "fatigue"},
	"weakness":            {Canonical: "weakness"},
	"dizziness":           {Canonical: "dizziness"},
	"vertigo":             {Canonical: "vertigo"},
	"syncope":             {Canonical: "syncope"},
	"fainting":            {Canonical: "syncope"},
	"palpitations":        {Canonical: "palpitations"},
	"cough":               {Canonical: "cough"},
	"wheezing":            {Canonical: "wheezing"},
	"sore throat":         {Canonical: "sore throat", Location: "throat"},
	"numbness":            {Canonical: "numbness"},
	"tingling":            {Canonical: "tingling"},
	"confusion":           {Canonical: "confusion"},
	"neck stiffness":      {Canonical: "neck stiffness", Location: "neck"},
	"stiff neck":          {Canonical: "neck stiffness", Location: "neck"},
	"rash":                {Canonical: "rash"},
	"swelling":            {Canonical: "swelling"},
	"leg swelling":        {Canonical: "swelling", Location: "leg"},
	"heartburn":           {Canonical: "heartburn"},
	"blurred vision":      {Canonical: "blurred vision"},
	"anxiety":             {Canonical: "anxiety"},
	"insomnia":            {Canonical: "insomnia"},
}

// PainCharacters are descriptors that refine a symptom's character
// attribute when they appear near a pain mention.
var PainCharacters = []string{
	"sharp", "dull", "throbbing", "stabbing", "burning", "aching",
	"cramping", "shooting", "crushing", "squeezing", "tearing",
	"pressure", "tightness",
}

// Medications maps lowercase medication names to canonical generic names.
var Medications = map[string]string{
	"acetaminophen":       "acetaminophen",
	"ibuprofen":           "ibuprofen",
	"aspirin":             "aspirin",
	"naproxen":            "naproxen",
	"tramadol":            "tramadol",
	"oxycodone":           "oxycodone",
	"morphine":            "morphine",
	"amoxicillin":         "amoxicillin",
	"azithromycin":        "azithromycin",
	"penicillin":          "penicillin",
	"ciprofloxacin":       "ciprofloxacin",
	"doxycycline":         "doxycycline",
	"lisinopril":          "lisinopril",
	"losartan":            "losartan",
	"amlodipine":          "amlodipine",
	"metoprolol":          "metoprolol",
	"atenolol":            "atenolol",
	"carvedilol":          "carvedilol",
	"furosemide":          "furosemide",
	"hydrochlorothiazide": "hydrochlorothiazide",
	"simvastatin":         "simvastatin",
	"atorvastatin":        "atorvastatin",
	"rosuvastatin":        "rosuvastatin",
	"warfarin":            "warfarin",
	"clopidogrel":         "clopidogrel",
	"nitroglycerin":       "nitroglycerin",
	"metformin":           "metformin",
	"insulin":             "insulin",
	"glipizide":           "glipizide",
	"sertraline":          "sertraline",
	"fluoxetine":          "fluoxetine",
	"escitalopram":        "escitalopram",
	"lorazepam":           "lorazepam",
	"alprazolam":          "alprazolam",
	"albuterol":           "albuterol",
	"montelukast":         "montelukast",
	"prednisone":          "prednisone",
	"omeprazole":          "omeprazole",
	"esomeprazole":        "esomeprazole",
	"famotidine":          "famotidine",
	"ondansetron":         "ondansetron",
	"levothyroxine":       "levothyroxine",
	"gabapentin":          "gabapentin",
	"sumatriptan":         "sumatriptan",
	"epinephrine":         "epinephrine",
}

// BrandGeneric maps brand names (lowercase) to their generic equivalent.
// The corrected tier and the extractor normalize brands to generics.
var BrandGeneric = map[string]string{
	"tylenol":    "acetaminophen",
	"advil":      "ibuprofen",
	"motrin":     "ibuprofen",
	"aleve":      "naproxen",
	"lipitor":    "atorvastatin",
	"crestor":    "rosuvastatin",
	"nexium":     "esomeprazole",
	"prilosec":   "omeprazole",
	"zoloft":     "sertraline",
	"prozac":     "fluoxetine",
	"xanax":      "alprazolam",
	"ativan":     "lorazepam",
	"glucophage": "metformin",
	"lasix":      "furosemide",
	"coumadin":   "warfarin",
	"plavix":     "clopidogrel",
	"ventolin":   "albuterol",
	"synthroid":  "levothyroxine",
	"neurontin":  "gabapentin",
	"imitrex":    "sumatriptan",
	"epipen":     "epinephrine",
}

// Abbreviations maps spoken medical abbreviations (lowercase) to full
// forms, used by the corrected tier to expand transcribed shorthand.
var Abbreviations = map[string]string{
	"bp":   "blood pressure",
	"hr":   "heart rate",
	"rr":   "respiratory rate",
	"sob":  "shortness of breath",
	"htn":  "hypertension",
	"dm":   "diabetes mellitus",
	"cad":  "coronary artery disease",
	"chf":  "congestive heart failure",
	"copd": "chronic obstructive pulmonary disease",
	"uti":  "urinary tract infection",
	"dvt":  "deep vein thrombosis",
	"mi":   "myocardial infarction",
	"tia":  "transient ischemic attack",
	"gerd": "gastroesophageal reflux",
	"bid":  "twice daily",
	"tid":  "three times daily",
	"prn":  "as needed",
	"po":   "by mouth",
}

// Conditions maps lowercase condition phrases (pathology + chronic
// disease) used for history items.
var Conditions = map[string]string{
	"hypertension":                          "hypertension",
	"high blood pressure":                   "hypertension",
	"diabetes":                              "diabetes mellitus",
	"diabetes mellitus":                     "diabetes mellitus",
	"asthma":                                "asthma",
	"copd":                                  "chronic obstructive pulmonary disease",
	"chronic obstructive pulmonary disease": "chronic obstructive pulmonary disease",
	"coronary artery disease":               "coronary artery disease",
	"heart disease":                         "coronary artery disease",
	"congestive heart failure":              "congestive heart failure",
	"heart failure":                         "congestive heart failure",
	"atrial fibrillation":                   "atrial fibrillation",
	"myocardial infarction":                 "myocardial infarction",
	"heart attack":                          "myocardial infarction",
	"stroke":                                "stroke",
	"seizure":                               "seizure disorder",
	"epilepsy":                              "seizure disorder",
	"migraine":                              "migraine",
	"hypothyroidism":                        "hypothyroidism",
	"hyperthyroidism":                       "hyperthyroidism",
	"kidney disease":                        "chronic kidney disease",
	"cancer":                                "malignancy",
	"depression":                            "depression",
	"gastroesophageal reflux":               "gastroesophageal reflux",
	"acid reflux":                           "gastroesophageal reflux",
	"pneumonia":                             "pneumonia",
	"anemia":                                "anemia",
}

// VitalSigns maps lowercase vital-sign phrases to canonical names.
var VitalSigns = map[string]string{
	"blood pressure":    "blood pressure",
	"heart rate":        "heart rate",
	"pulse":             "heart rate",
	"respiratory rate":  "respiratory rate",
	"temperature":       "temperature",
	"oxygen saturation": "oxygen saturation",
	"o2 sat":            "oxygen saturation",
	"spo2":              "oxygen saturation",
}

// Treatments maps lowercase procedure/treatment phrases.
var Treatments = map[string]string{
	"ekg":               "electrocardiogram",
	"ecg":               "electrocardiogram",
	"electrocardiogram": "electrocardiogram",
	"chest x-ray":       "chest x-ray",
	"chest xray":        "chest x-ray",
	"ct scan":           "ct scan",
	"mri":               "mri",
	"ultrasound":        "ultrasound",
	"blood work":        "laboratory panel",
	"blood test":        "laboratory panel",
	"iv fluids":         "intravenous fluids",
	"oxygen":            "supplemental oxygen",
	"physical therapy":  "physical therapy",
	"stress test":       "cardiac stress test",
	"catheterization":   "cardiac catheterization",
	"angioplasty":       "angioplasty",
	"dialysis":          "dialysis",
	"surgery":           "surgery",
}

// Misheard maps common STT confusions of medical terms to the intended
// term. Applied by the corrected tier before dictionary lookup; keys
// containing a space are matched by its phrase pass, since single-token
// lookup can never see a term the recognizer split in two.
var Misheard = map[string]string{
	"lysinopril":    "lisinopril",
	"lisinapril":    "lisinopril",
	"a torvastatin": "atorvastatin",
	"warfin":        "warfarin",
	"die aphoresis": "diaphoresis",
	"dispnea":       "dyspnea",
	"new monia":     "pneumonia",
	"asprin":        "aspirin",
}

// Normalize lowercases a token and maps brand names and misheard forms
// to their canonical generic term. Unknown tokens pass through.
func Normalize(token string) string {
	t := strings.ToLower(strings.Trim(token, ".,;:!?"))
	if g, ok := Misheard[t]; ok {
		t = g
	}
	if g, ok := BrandGeneric[t]; ok {
		return g
	}
	return t
}

// Expand returns the full form of a spoken abbreviation, or the token
// unchanged.
func Expand(token string) string {
	t := strings.ToLower(strings.Trim(token, ".,;:!?"))
	if full, ok := Abbreviations[t]; ok {
		return full
	}
	return token
}

// Hints returns the full vocabulary as a sorted phrase list for
// provider speech contexts.
func Hints() []string {
	set := make(map[string]bool)
	for p := range Symptoms {
		set[p] = true
	}
	for p := range Medications {
		set[p] = true
	}
	for p := range Conditions {
		set[p] = true
	}
	for p := range VitalSigns {
		set[p] = true
	}
	for p := range Treatments {
		set[p] = true
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// IsCritical reports whether a canonical term belongs to the critical
// set whose misrecognition carries clinical risk. Derived from the
// weighting used during model evaluation.
func IsCritical(canonical string) bool {
	_, med := Medications[canonical]
	switch canonical {
	case "chest pain", "myocardial infarction", "stroke", "anaphylaxis",
		"dyspnea", "syncope", "diaphoresis":
		return true
	}
	return med
}
