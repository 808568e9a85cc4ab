package pipeline

import "strings"

// abbreviations is the built-in clinical shorthand lexicon. Any all-caps
// token found here never yields an unresolved_abbreviation uncertainty; the
// expansion is also used when building patient summaries.
var abbreviations = map[string]string{
	"BP":   "blood pressure",
	"HR":   "heart rate",
	"RR":   "respiratory rate",
	"SPO2": "oxygen saturation",
	"O2":   "oxygen",
	"TEMP": "temperature",
	"NPO":  "nothing by mouth",
	"PRN":  "as needed",
	"BID":  "twice daily",
	"TID":  "three times daily",
	"QID":  "four times daily",
	"IV":   "intravenous",
	"IM":   "intramuscular",
	"PO":   "by mouth",
	"IO":   "intake and output",
	"I&O":  "intake and output",
	"UO":   "urine output",
	"DNR":  "do not resuscitate",
	"CPR":  "cardiopulmonary resuscitation",
	"ER":   "emergency room",
	"ED":   "emergency department",
	"ICU":  "intensive care unit",
	"OR":   "operating room",
	"CBC":  "complete blood count",
	"BMP":  "basic metabolic panel",
	"EKG":  "electrocardiogram",
	"ECG":  "electrocardiogram",
	"CXR":  "chest x-ray",
	"UTI":  "urinary tract infection",
	"GI":   "gastrointestinal",
	"SOB":  "shortness of breath",
	"LOC":  "level of consciousness",
	"ROM":  "range of motion",
	"ADL":  "activities of daily living",
	"AMS":  "altered mental status",
	"CHF":  "congestive heart failure",
	"COPD": "chronic obstructive pulmonary disease",
	"DVT":  "deep vein thrombosis",
	"PE":   "pulmonary embolism",
	"MI":   "myocardial infarction",
	"CVA":  "cerebrovascular accident",
	"TIA":  "transient ischemic attack",
	"A1C":  "hemoglobin A1c",
	"BG":   "blood glucose",
	"BS":   "blood sugar",
	"D5W":  "dextrose 5% in water",
	"NS":   "normal saline",
	"LR":   "lactated ringer's",
	"FOLEY": "urinary catheter",
	"STAT": "immediately",
	"NGT":  "nasogastric tube",
	"PT":   "physical therapy",
	"OT":   "occupational therapy",
	"WNL":  "within normal limits",
	"HOB":  "head of bed",
}

// ExpandAbbreviation returns the lexicon expansion for an all-caps token and
// whether the token is known. Lookups are case-sensitive on purpose: "or" in
// running prose is not the operating room.
func ExpandAbbreviation(token string) (string, bool) {
	exp, ok := abbreviations[strings.TrimSuffix(token, ".")]
	return exp, ok
}
