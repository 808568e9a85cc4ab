package pipeline

import "regexp"

// Identifying-token patterns. Room/bed numbers are the most specific handle a
// narration carries; honorific-plus-surname aliases come second. Both are the
// only identifying values the rest of the system guards.
var (
	roomPattern  = regexp.MustCompile(`(?i)\b(?:room|rm|bed)\s*#?\s*(\d+[A-Za-z]?)\b`)
	aliasPattern = regexp.MustCompile(`\b((?:Mr|Mrs|Ms|Mx|Miss)\.?\s+[A-Z][a-zA-Z'-]+)`)

	// bare all-caps tokens, candidate abbreviations
	abbrevPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9&]{1,5}\b`)

	// a clause that opens with an unbound reference pronoun
	pronounLead = regexp.MustCompile(`(?i)^\s*(he|she|they|him|her|them|this one|that one)\b`)

	// hedged numeric values
	hedgePattern = regexp.MustCompile(`(?i)\b(maybe|not sure|i think|possibly|around|roughly|about|couldn't tell|unclear)\b`)
)

// Vital-sign patterns, keyed by models.VitalSign.Kind.
var vitalPatterns = []struct {
	Kind string
	Re   *regexp.Regexp
}{
	{"bp", regexp.MustCompile(`\b(\d{2,3}\s*/\s*\d{2,3})\b`)},
	{"glucose", regexp.MustCompile(`(?i)\b(?:glucose|blood sugar|sugar|BG|BS)\b[^.;\d]{0,24}(\d{2,3})`)},
	{"hr", regexp.MustCompile(`(?i)\b(?:HR|heart rate|pulse)\b[^.;\d]{0,16}(\d{2,3})`)},
	{"temp", regexp.MustCompile(`(?i)\b(?:temp|temperature)\b[^.;\d]{0,16}(\d{2,3}(?:\.\d)?)`)},
	{"spo2", regexp.MustCompile(`(?i)\b(?:spo2|sat|sats|o2 sat)\b[^.;\d]{0,16}(\d{2,3})\s*%?`)},
	{"rr", regexp.MustCompile(`(?i)\b(?:RR|resp rate|respirations)\b[^.;\d]{0,16}(\d{1,2})\b`)},
	{"urine_output", regexp.MustCompile(`(?i)\b(?:urine output|UO|output)\b[^.;\d]{0,24}(\d{1,4})\s*(?:ml|cc)`)},
}

// riskCue ties a risk phrase to a severity and a de-identified globalTop
// rendering. Weight-bearing severity cues dominate mention frequency when the
// cross-patient ranking is assembled.
type riskCue struct {
	Re       *regexp.Regexp
	Severity string // high|moderate|low
	Signal   string // short ranking label
}

var riskCues = []riskCue{
	{regexp.MustCompile(`(?i)\bunstable\b`), "high", "unstable"},
	{regexp.MustCompile(`(?i)\b(?:bleed|bleeding|hemorrhage)\b`), "high", "bleeding risk"},
	{regexp.MustCompile(`(?i)\bfall(?:s|ing)?\s*risk\b|\bhigh\s+fall\b|\bfell\b`), "moderate", "fall risk"},
	{regexp.MustCompile(`(?i)\b(?:confus(?:ed|ion)|disoriented|altered)\b`), "moderate", "altered mental status"},
	{regexp.MustCompile(`(?i)\bmed(?:ication)?\s*(?:error|risk|interaction)\b`), "high", "medication risk"},
	{regexp.MustCompile(`(?i)\b(?:desat|desaturat|hypox)`), "high", "oxygen desaturation"},
	{regexp.MustCompile(`(?i)\bchest pain\b`), "high", "chest pain"},
	{regexp.MustCompile(`(?i)\b(?:sepsis|septic)\b`), "high", "sepsis concern"},
	{regexp.MustCompile(`(?i)\bpressure\s+(?:ulcer|injury|sore)\b|\bskin breakdown\b`), "moderate", "skin integrity"},
	{regexp.MustCompile(`(?i)\baspiration\b`), "moderate", "aspiration risk"},
	{regexp.MustCompile(`(?i)\bpain\s+(?:uncontrolled|not controlled|\d+\s*/\s*10)`), "moderate", "pain control"},
}

// Abnormal-value cues scored directly from vital mentions. Glucose extremes
// and a dropping urine-output trend are the signals the ranking must surface
// even after identifying tokens are stripped.
var (
	urineDropPattern = regexp.MustCompile(`(?i)\b(?:urine\s*output|UO|output)\b[^.;]{0,40}\b(?:down|dropp|decreas|falling|trending\s+down|low(?:er)?)\b` +
		`|(?i)\b(?:down|dropp|decreas|falling|low)\w*\b[^.;]{0,40}\b(?:urine\s*output|UO)\b`)
	glucoseHighThreshold = 250.0
	glucoseLowThreshold  = 60.0
)

// Plan-action cues. A clause containing one of these verbs becomes a
// PlanItem; priority and due window come from the temporal cues below.
var planVerbPattern = regexp.MustCompile(`(?i)\b(re-?check|check|monitor|reassess|re-?assess|give|administer|hold|draw|page|call|notify|start|stop|titrate|turn|ambulate|follow\s*up|watch|repeat|recheck|document|chart|flush|change|transfuse|push)\b`)

// Priority cues. P0 means an imminent re-check order or instability; P1 a
// near-term task; everything else defaults to P2 routine.
var (
	p0Pattern = regexp.MustCompile(`(?i)\b(stat|immediately|right away|now|critical|unstable|emergen|asap|rapid response)\b`)
	p1Pattern = regexp.MustCompile(`(?i)\b(within the hour|within an hour|in \d{1,2}\s*min|soon|shortly|before \d|at \d{1,2}(?::\d{2})?\b|next hour|q1h|hourly)\b`)
)

// Due-window cues, checked most-urgent first.
var (
	dueNowPattern = regexp.MustCompile(`(?i)\b(stat|now|immediately|right away|asap)\b`)
	dueHourPattern = regexp.MustCompile(`(?i)\b(within (?:the |an )?hour|in \d{1,2}\s*min|next hour|at \d{1,2}(?::\d{2})?\b|q1h|hourly|top of the hour)\b`)
	dueTodayPattern = regexp.MustCompile(`(?i)\b(today|this (?:morning|afternoon|evening)|by (?:end of|the end of) (?:day|shift)|before (?:lunch|dinner|noon))\b`)
	dueNextShiftPattern = regexp.MustCompile(`(?i)\b(next shift|night shift|day shift|oncoming|at handoff|hand ?over|when nights? come|for the next (?:nurse|crew|team))\b`)
)

// known proper nouns and sentence-leading words that the abbreviation scan
// must not flag; single letters and roman-numeral artifacts are filtered by
// the length guard in the pattern itself.
var abbrevStopwords = map[string]bool{
	"A": true, "I": true, "OK": true, "NO": true, "SO": true, "AND": true,
	"THE": true, "TO": true, "IN": true, "ON": true, "AT": true, "IS": true,
	"ROOM": true, "BED": true, "RM": true,
}
