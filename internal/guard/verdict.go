package guard

// Action is the decision a guard takes for an intercepted action.
type Action string

// Actions
const (
	ActionPass  Action = "pass"
	ActionWarn  Action = "warn"
	ActionBlock Action = "block"
)

// Verdict is the outcome of one guard evaluation. A nil *Verdict means
// pass-through. Verdicts are produced fresh per evaluation and never
// persisted.
type Verdict struct {
	Action   Action  `json:"action"`
	Label    string  `json:"label,omitempty"`    // rule name, category, or classifier label
	Score    float64 `json:"score"`              // confidence in [0,1]; 1.0 for deterministic matches
	Reason   string  `json:"reason,omitempty"`   // human-readable block reason / warn message
	Evidence string  `json:"evidence,omitempty"` // the matched fragment, host, or chunk excerpt
}

// Block builds a blocking verdict with full confidence.
func Block(label, reason string) *Verdict {
	return &Verdict{Action: ActionBlock, Label: label, Score: 1.0, Reason: reason}
}

// Warn builds an advisory verdict with full confidence.
func Warn(label, message string) *Verdict {
	return &Verdict{Action: ActionWarn, Label: label, Score: 1.0, Reason: message}
}

// Blocked reports whether the verdict blocks the action.
func (v *Verdict) Blocked() bool {
	return v != nil && v.Action == ActionBlock
}

// Warned reports whether the verdict is advisory.
func (v *Verdict) Warned() bool {
	return v != nil && v.Action == ActionWarn
}
