package selection

// DirectiveKind names one visible affordance change requested by the controller.
type DirectiveKind int

const (
	ShowPrompt DirectiveKind = iota + 1
	HidePrompt
	ShowClear
	HideClear
	ShowCounter
	HideCounter
	CounterText
	ToggleAllChecked
)

// String returns the directive name.
func (k DirectiveKind) String() string {
	switch k {
	case ShowPrompt:
		return "showPrompt"
	case HidePrompt:
		return "hidePrompt"
	case ShowClear:
		return "showClear"
	case HideClear:
		return "hideClear"
	case ShowCounter:
		return "showCounter"
	case HideCounter:
		return "hideCounter"
	case CounterText:
		return "counterText"
	case ToggleAllChecked:
		return "toggleAllChecked"
	default:
		return "unknown"
	}
}

// Directive is one instruction for the presentation layer. Text is set for CounterText and
// Checked for ToggleAllChecked.
type Directive struct {
	Kind    DirectiveKind
	Text    string
	Checked bool
}

// Affordances is the visible state produced by folding directives in order.
type Affordances struct {
	PromptVisible  bool
	ClearVisible   bool
	CounterVisible bool
	Counter        string
	AllChecked     bool
}

// Apply folds directives into a copy of the affordance state.
func (a Affordances) Apply(directives []Directive) Affordances {
	for _, d := range directives {
		switch d.Kind {
		case ShowPrompt:
			a.PromptVisible = true
		case HidePrompt:
			a.PromptVisible = false
		case ShowClear:
			a.ClearVisible = true
		case HideClear:
			a.ClearVisible = false
		case ShowCounter:
			a.CounterVisible = true
		case HideCounter:
			a.CounterVisible = false
		case CounterText:
			a.Counter = d.Text
		case ToggleAllChecked:
			a.AllChecked = d.Checked
		}
	}
	return a
}

func counterText(text string) Directive {
	return Directive{Kind: CounterText, Text: text}
}

func toggleAll(checked bool) Directive {
	return Directive{Kind: ToggleAllChecked, Checked: checked}
}
