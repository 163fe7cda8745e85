// Package selection tracks bulk row selection for one page of a grid, including the
// "every row matching the query" state that a page cannot enumerate.
package selection

import (
	"errors"
	"fmt"

	charmLog "github.com/charmbracelet/log"
)

// ErrInvalidTransition is returned when an operation is not allowed in the current mode.
var ErrInvalidTransition = errors.New("invalid selection transition")

// Mode is the selection mode of one page.
type Mode int

const (
	// ModeNone means no row is selected.
	ModeNone Mode = iota
	// ModePartial means some, but not all, selectable rows are selected.
	ModePartial
	// ModePage means every selectable row on the page is selected.
	ModePage
	// ModeAcross means the user confirmed the selection covers every row matching the query.
	ModeAcross
)

// String returns the lowercase mode name.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModePartial:
		return "partial"
	case ModePage:
		return "page"
	case ModeAcross:
		return "across"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Row is one selectable line of a page in display order.
type Row struct {
	ID      string
	Enabled bool
	Checked bool
}

// Submission is what a bulk action request needs to know about the selection.
type Submission struct {
	Mode         Mode
	SelectAcross bool
	IDs          []string
}

// Option configures a Controller.
type Option func(*Controller)

// WithAcross restores a confirmed across selection. It only applies when the seeded rows
// already select the full page.
func WithAcross(across bool) Option {
	return func(c *Controller) {
		c.seedAcross = across
	}
}

// WithSuppressSinglePagePrompt hides the across prompt when the total count fits on the page.
func WithSuppressSinglePagePrompt(suppress bool) Option {
	return func(c *Controller) {
		c.suppressSinglePage = suppress
	}
}

// WithLogger sets a logger for mode transitions.
func WithLogger(logger *charmLog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// Controller owns the selection state of one rendered page. It is not safe for concurrent use;
// every grid instance needs its own controller.
type Controller struct {
	rows  []Row
	index map[string]int

	anchor string
	mode   Mode
	total  int

	seedAcross         bool
	suppressSinglePage bool
	logger             *charmLog.Logger
}

// New constructs a controller for one page. Rows already checked are kept as the seeded
// selection; checked disabled rows are ignored.
func New(rows []Row, totalCount int, opts ...Option) *Controller {
	c := &Controller{total: max(totalCount, 0)}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.loadRows(rows, nil)
	c.mode = c.computeMode(ModeNone)
	if c.seedAcross && c.mode == ModePage {
		c.mode = ModeAcross
	}
	return c
}

// loadRows replaces the row collection. Ids in keep stay checked when the row is still enabled.
func (c *Controller) loadRows(rows []Row, keep map[string]struct{}) {
	c.rows = make([]Row, 0, len(rows))
	c.index = make(map[string]int, len(rows))
	for _, row := range rows {
		if row.ID == "" {
			continue
		}
		if _, dup := c.index[row.ID]; dup {
			continue
		}
		if _, ok := keep[row.ID]; ok {
			row.Checked = true
		}
		if !row.Enabled {
			row.Checked = false
		}
		c.index[row.ID] = len(c.rows)
		c.rows = append(c.rows, row)
	}
}

// ToggleRow sets one row, or a shift range ending at id, to checked. Unknown and disabled
// rows are ignored. It returns nil when nothing changed.
func (c *Controller) ToggleRow(id string, checked, shift bool) []Directive {
	target, ok := c.index[id]
	if !ok || !c.rows[target].Enabled {
		return nil
	}

	changed := false
	if shift && c.anchor != "" && c.anchor != id {
		if from, ok := c.anchorIndex(); ok {
			changed = c.applyRange(from, target, checked)
		} else {
			c.log("stale selection anchor, toggling single row", "anchor", c.anchor, "id", id)
			changed = c.set(target, checked)
			c.anchor = id
		}
	} else {
		changed = c.set(target, checked)
		c.anchor = id
	}
	if !changed {
		return nil
	}
	return c.recompute()
}

// ToggleAll sets every selectable row. Checking all yields page mode, never across.
func (c *Controller) ToggleAll(checked bool) []Directive {
	for i := range c.rows {
		if c.rows[i].Enabled {
			c.rows[i].Checked = checked
		}
	}
	if c.mode == ModeAcross {
		c.setMode(ModePage)
	}
	return c.recompute()
}

// ConfirmAcross extends a full page selection to every row matching the query.
func (c *Controller) ConfirmAcross() ([]Directive, error) {
	if c.mode != ModePage {
		return nil, fmt.Errorf("confirm across in %s mode: %w", c.mode, ErrInvalidTransition)
	}
	c.setMode(ModeAcross)
	return []Directive{
		{Kind: ShowClear},
		{Kind: HideCounter},
		{Kind: HidePrompt},
	}, nil
}

// ClearAcross drops an across selection and unchecks every row.
func (c *Controller) ClearAcross() ([]Directive, error) {
	if c.mode != ModeAcross {
		return nil, fmt.Errorf("clear across in %s mode: %w", c.mode, ErrInvalidTransition)
	}
	for i := range c.rows {
		c.rows[i].Checked = false
	}
	c.anchor = ""
	c.setMode(ModeNone)
	return c.Snapshot(), nil
}

// SetRows applies a partial re-render. Selected ids that are still present and enabled stay
// selected; the anchor is kept even if its row is gone.
func (c *Controller) SetRows(rows []Row) []Directive {
	keep := make(map[string]struct{}, len(c.rows))
	for _, row := range c.rows {
		if row.Checked {
			keep[row.ID] = struct{}{}
		}
	}
	c.loadRows(rows, keep)
	return c.recompute()
}

// AddRow appends a row rendered after construction. Duplicate ids are ignored.
func (c *Controller) AddRow(row Row) []Directive {
	if row.ID == "" {
		return nil
	}
	if _, dup := c.index[row.ID]; dup {
		return nil
	}
	if !row.Enabled {
		row.Checked = false
	}
	c.index[row.ID] = len(c.rows)
	c.rows = append(c.rows, row)
	return c.recompute()
}

// Snapshot returns the full directive set describing the current state.
func (c *Controller) Snapshot() []Directive {
	text := counterText(c.CounterText())
	switch c.mode {
	case ModeAcross:
		return []Directive{text, {Kind: HideCounter}, {Kind: ShowClear}, {Kind: HidePrompt}, toggleAll(true)}
	case ModePage:
		prompt := Directive{Kind: ShowPrompt}
		if c.suppressSinglePage && c.total <= c.SelectableCount() {
			prompt = Directive{Kind: HidePrompt}
		}
		return []Directive{text, {Kind: ShowCounter}, {Kind: HideClear}, prompt, toggleAll(true)}
	default:
		return []Directive{text, {Kind: ShowCounter}, {Kind: HideClear}, {Kind: HidePrompt}, toggleAll(false)}
	}
}

// Submission describes the selection for a bulk action request.
func (c *Controller) Submission() Submission {
	if c.mode == ModeAcross {
		return Submission{Mode: c.mode, SelectAcross: true}
	}
	return Submission{Mode: c.mode, IDs: c.SelectedIDs()}
}

// CounterText renders "k of n selected" over the selectable rows of the page.
func (c *Controller) CounterText() string {
	return fmt.Sprintf("%d of %d selected", c.SelectedCount(), c.SelectableCount())
}

// Mode returns the current selection mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Anchor returns the range anchor id, or "" when unset.
func (c *Controller) Anchor() string {
	return c.anchor
}

// TotalCount returns the number of rows matching the query.
func (c *Controller) TotalCount() int {
	return c.total
}

// IsChecked reports whether a row is selected.
func (c *Controller) IsChecked(id string) bool {
	i, ok := c.index[id]
	return ok && c.rows[i].Checked
}

// IsEnabled reports whether a row exists and can be selected.
func (c *Controller) IsEnabled(id string) bool {
	i, ok := c.index[id]
	return ok && c.rows[i].Enabled
}

// SelectedIDs returns the checked ids in display order.
func (c *Controller) SelectedIDs() []string {
	out := make([]string, 0, len(c.rows))
	for _, row := range c.rows {
		if row.Checked {
			out = append(out, row.ID)
		}
	}
	return out
}

// SelectedCount returns the number of checked rows.
func (c *Controller) SelectedCount() int {
	n := 0
	for _, row := range c.rows {
		if row.Checked {
			n++
		}
	}
	return n
}

// SelectableCount returns the number of enabled rows.
func (c *Controller) SelectableCount() int {
	n := 0
	for _, row := range c.rows {
		if row.Enabled {
			n++
		}
	}
	return n
}

// Rows returns a copy of the row collection.
func (c *Controller) Rows() []Row {
	out := make([]Row, len(c.rows))
	copy(out, c.rows)
	return out
}

func (c *Controller) anchorIndex() (int, bool) {
	i, ok := c.index[c.anchor]
	if !ok || !c.rows[i].Enabled {
		return 0, false
	}
	return i, true
}

// applyRange sets every enabled row between both endpoints, inclusive, in display order.
func (c *Controller) applyRange(from, to int, checked bool) bool {
	if from > to {
		from, to = to, from
	}
	changed := false
	for i := from; i <= to; i++ {
		if !c.rows[i].Enabled {
			continue
		}
		if c.set(i, checked) {
			changed = true
		}
	}
	return changed
}

func (c *Controller) set(i int, checked bool) bool {
	if c.rows[i].Checked == checked {
		return false
	}
	c.rows[i].Checked = checked
	return true
}

// recompute derives the mode from the rows and returns the resulting directives.
func (c *Controller) recompute() []Directive {
	c.setMode(c.computeMode(c.mode))
	return c.Snapshot()
}

func (c *Controller) computeMode(prev Mode) Mode {
	k, n := c.SelectedCount(), c.SelectableCount()
	switch {
	case k == 0:
		return ModeNone
	case k < n:
		return ModePartial
	case prev == ModeAcross:
		return ModeAcross
	default:
		return ModePage
	}
}

func (c *Controller) setMode(next Mode) {
	if next == c.mode {
		return
	}
	c.log("selection mode changed", "from", c.mode, "to", next, "selected", c.SelectedCount(), "selectable", c.SelectableCount())
	c.mode = next
}

func (c *Controller) log(msg string, keyvals ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, keyvals...)
}
