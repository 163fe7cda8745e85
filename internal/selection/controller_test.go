package selection

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	charmLog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

// rowsN builds n enabled rows named "1".."n".
func rowsN(n int) []Row {
	rows := make([]Row, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, Row{ID: fmt.Sprint(i), Enabled: true})
	}
	return rows
}

func hasDirective(ds []Directive, kind DirectiveKind) bool {
	for _, d := range ds {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

func TestNewSeedsCheckedRows(t *testing.T) {
	rows := rowsN(3)
	rows[0].Checked = true
	rows = append(rows, Row{ID: "locked", Enabled: false, Checked: true})

	c := New(rows, 40)
	require.Equal(t, ModePartial, c.Mode())
	require.Equal(t, []string{"1"}, c.SelectedIDs())
	require.False(t, c.IsChecked("locked"))
	require.Equal(t, "1 of 3 selected", c.CounterText())
	require.Equal(t, 40, c.TotalCount())
	require.Empty(t, c.Anchor())
}

func TestNewRestoresAcrossOnlyForFullSeed(t *testing.T) {
	full := rowsN(2)
	full[0].Checked, full[1].Checked = true, true
	require.Equal(t, ModeAcross, New(full, 10, WithAcross(true)).Mode())

	partial := rowsN(2)
	partial[0].Checked = true
	require.Equal(t, ModePartial, New(partial, 10, WithAcross(true)).Mode())
}

func TestNewSkipsDuplicateAndEmptyIDs(t *testing.T) {
	c := New([]Row{{ID: "a", Enabled: true}, {ID: "a", Enabled: true}, {ID: "", Enabled: true}}, 1)
	require.Len(t, c.Rows(), 1)
	require.Equal(t, 1, c.SelectableCount())
}

func TestToggleRowPromotesToPage(t *testing.T) {
	c := New(rowsN(3), 30)
	var last []Directive
	for _, id := range []string{"1", "2", "3"} {
		last = c.ToggleRow(id, true, false)
	}
	require.Equal(t, ModePage, c.Mode())
	require.True(t, hasDirective(last, ShowPrompt))

	viaAll := New(rowsN(3), 30)
	viaAll.ToggleAll(true)
	require.Equal(t, c.Mode(), viaAll.Mode())
	require.Equal(t, c.SelectedIDs(), viaAll.SelectedIDs())
}

func TestToggleRowDisabledIsNoop(t *testing.T) {
	rows := rowsN(2)
	rows = append(rows, Row{ID: "locked", Enabled: false})
	c := New(rows, 3)
	c.ToggleRow("1", true, false)
	before := c.CounterText()

	require.Nil(t, c.ToggleRow("locked", true, false))
	require.Nil(t, c.ToggleRow("missing", true, true))
	require.Equal(t, before, c.CounterText())
	require.Equal(t, ModePartial, c.Mode())
	require.Equal(t, []string{"1"}, c.SelectedIDs())
	require.Equal(t, "1", c.Anchor())
}

func TestToggleRowIdempotent(t *testing.T) {
	c := New(rowsN(4), 4)
	first := c.ToggleRow("2", true, false)
	require.NotNil(t, first)
	snapshot := c.Rows()

	require.Nil(t, c.ToggleRow("2", true, false))
	require.Equal(t, snapshot, c.Rows())
	require.Equal(t, ModePartial, c.Mode())
	require.Equal(t, "2", c.Anchor())
}

func TestShiftRangeInclusive(t *testing.T) {
	c := New(rowsN(6), 6)
	c.ToggleRow("2", true, false)

	ds := c.ToggleRow("5", true, true)
	require.Equal(t, []string{"2", "3", "4", "5"}, c.SelectedIDs())
	require.Equal(t, "2", c.Anchor())
	require.Equal(t, "4 of 6 selected", c.CounterText())
	require.Equal(t, "4 of 6 selected", Affordances{}.Apply(ds).Counter)
}

func TestShiftRangeBackwardsAndUncheck(t *testing.T) {
	c := New(rowsN(6), 6)
	c.ToggleAll(true)
	c.ToggleRow("5", false, false)
	c.ToggleRow("2", false, true)
	require.Equal(t, []string{"1", "6"}, c.SelectedIDs())
	require.Equal(t, "5", c.Anchor())
}

func TestShiftRangeSkipsDisabledRows(t *testing.T) {
	rows := rowsN(5)
	rows[2].Enabled = false
	c := New(rows, 5)
	c.ToggleRow("1", true, false)
	c.ToggleRow("5", true, true)
	require.Equal(t, []string{"1", "2", "4", "5"}, c.SelectedIDs())
	require.Equal(t, ModePage, c.Mode())
}

func TestShiftWithoutAnchorIsSingleToggle(t *testing.T) {
	c := New(rowsN(10), 10)
	c.ToggleRow("7", true, true)
	require.Equal(t, []string{"7"}, c.SelectedIDs())
	require.Equal(t, "7", c.Anchor())
}

func TestShiftOnAnchorIsSingleToggle(t *testing.T) {
	c := New(rowsN(3), 3)
	c.ToggleRow("2", true, false)
	c.ToggleRow("2", false, true)
	require.Empty(t, c.SelectedIDs())
	require.Equal(t, ModeNone, c.Mode())
}

func TestStaleAnchorDegradesToSingleToggle(t *testing.T) {
	c := New(rowsN(5), 5)
	c.ToggleRow("1", true, false)
	c.SetRows([]Row{
		{ID: "2", Enabled: true},
		{ID: "3", Enabled: true},
		{ID: "4", Enabled: true},
	})
	require.Equal(t, "1", c.Anchor())
	require.Equal(t, ModeNone, c.Mode())

	c.ToggleRow("4", true, true)
	require.Equal(t, []string{"4"}, c.SelectedIDs())
	require.Equal(t, "4", c.Anchor())
}

func TestConfirmAcrossRequiresPage(t *testing.T) {
	c := New(rowsN(3), 90)
	c.ToggleRow("1", true, false)

	ds, err := c.ConfirmAcross()
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Nil(t, ds)
	require.Equal(t, ModePartial, c.Mode())

	_, err = c.ClearAcross()
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, []string{"1"}, c.SelectedIDs())
}

func TestConfirmThenClearAcross(t *testing.T) {
	c := New(rowsN(4), 90)
	c.ToggleRow("3", true, false)
	c.ToggleAll(true)

	ds, err := c.ConfirmAcross()
	require.NoError(t, err)
	require.Equal(t, ModeAcross, c.Mode())
	state := Affordances{}.Apply(c.Snapshot()).Apply(ds)
	require.True(t, state.ClearVisible)
	require.False(t, state.CounterVisible)
	require.False(t, state.PromptVisible)

	sub := c.Submission()
	require.True(t, sub.SelectAcross)
	require.Empty(t, sub.IDs)

	ds, err = c.ClearAcross()
	require.NoError(t, err)
	require.Equal(t, ModeNone, c.Mode())
	require.Empty(t, c.SelectedIDs())
	require.Empty(t, c.Anchor())
	state = state.Apply(ds)
	require.False(t, state.ClearVisible)
	require.False(t, state.PromptVisible)
	require.True(t, state.CounterVisible)
	require.False(t, state.AllChecked)
	require.Equal(t, "0 of 4 selected", state.Counter)
}

func TestUncheckInAcrossDemotes(t *testing.T) {
	c := New(rowsN(4), 90)
	c.ToggleAll(true)
	_, err := c.ConfirmAcross()
	require.NoError(t, err)

	ds := c.ToggleRow("2", false, false)
	require.Equal(t, ModePartial, c.Mode())
	require.True(t, hasDirective(ds, HideClear))
	require.True(t, hasDirective(ds, ShowCounter))
	require.False(t, c.Submission().SelectAcross)
	require.Equal(t, []string{"1", "3", "4"}, c.Submission().IDs)

	c.ToggleRow("2", true, false)
	require.Equal(t, ModePage, c.Mode())
}

func TestRecheckInAcrossKeepsAcross(t *testing.T) {
	c := New(rowsN(2), 9)
	c.ToggleAll(true)
	_, err := c.ConfirmAcross()
	require.NoError(t, err)
	require.Nil(t, c.ToggleRow("1", true, false))
	require.Equal(t, ModeAcross, c.Mode())
}

func TestToggleAllClearsAcross(t *testing.T) {
	c := New(rowsN(2), 9)
	c.ToggleAll(true)
	_, err := c.ConfirmAcross()
	require.NoError(t, err)

	c.ToggleAll(true)
	require.Equal(t, ModePage, c.Mode())

	_, err = c.ConfirmAcross()
	require.NoError(t, err)
	ds := c.ToggleAll(false)
	require.Equal(t, ModeNone, c.Mode())
	require.Empty(t, c.SelectedIDs())
	require.False(t, Affordances{ClearVisible: true}.Apply(ds).ClearVisible)
}

func TestToggleAllWithoutSelectableRows(t *testing.T) {
	c := New([]Row{{ID: "x", Enabled: false}}, 1)
	c.ToggleAll(true)
	require.Equal(t, ModeNone, c.Mode())
	require.Equal(t, "0 of 0 selected", c.CounterText())
}

func TestSinglePagePromptSuppression(t *testing.T) {
	open := New(rowsN(3), 3)
	require.True(t, hasDirective(open.ToggleAll(true), ShowPrompt))

	quiet := New(rowsN(3), 3, WithSuppressSinglePagePrompt(true))
	ds := quiet.ToggleAll(true)
	require.False(t, hasDirective(ds, ShowPrompt))
	require.True(t, hasDirective(ds, HidePrompt))
	require.Equal(t, ModePage, quiet.Mode())

	paged := New(rowsN(3), 4, WithSuppressSinglePagePrompt(true))
	require.True(t, hasDirective(paged.ToggleAll(true), ShowPrompt))
}

func TestAddRowDemotesFullPage(t *testing.T) {
	c := New(rowsN(2), 5)
	c.ToggleAll(true)
	ds := c.AddRow(Row{ID: "3", Enabled: true})
	require.Equal(t, ModePartial, c.Mode())
	require.Equal(t, "2 of 3 selected", Affordances{}.Apply(ds).Counter)

	require.Nil(t, c.AddRow(Row{ID: "3", Enabled: true}))
	c.AddRow(Row{ID: "4", Enabled: false, Checked: true})
	require.False(t, c.IsChecked("4"))
	require.False(t, c.IsEnabled("4"))
}

func TestSetRowsKeepsSurvivingSelection(t *testing.T) {
	c := New(rowsN(4), 4)
	c.ToggleRow("2", true, false)
	c.ToggleRow("4", true, false)

	c.SetRows([]Row{{ID: "4", Enabled: true}, {ID: "2", Enabled: false}, {ID: "9", Enabled: true}})
	require.Equal(t, []string{"4"}, c.SelectedIDs())
	require.Equal(t, "1 of 2 selected", c.CounterText())
}

func TestSubmissionListsIDsInDisplayOrder(t *testing.T) {
	c := New(rowsN(5), 5)
	c.ToggleRow("4", true, false)
	c.ToggleRow("1", true, false)
	sub := c.Submission()
	require.Equal(t, ModePartial, sub.Mode)
	require.False(t, sub.SelectAcross)
	require.Equal(t, []string{"1", "4"}, sub.IDs)
}

func TestModeString(t *testing.T) {
	require.Equal(t, "none", ModeNone.String())
	require.Equal(t, "partial", ModePartial.String())
	require.Equal(t, "page", ModePage.String())
	require.Equal(t, "across", ModeAcross.String())
	require.Equal(t, "showPrompt", ShowPrompt.String())
}

func TestLoggerRecordsTransitions(t *testing.T) {
	var buf bytes.Buffer
	logger := charmLog.NewWithOptions(&buf, charmLog.Options{Level: charmLog.DebugLevel})
	c := New(rowsN(1), 1, WithLogger(logger))
	c.ToggleRow("1", true, false)
	require.True(t, strings.Contains(buf.String(), "selection mode changed"))
}

// TestRandomSequencesKeepInvariants drives random operations and checks the counter and mode
// always agree with the rows.
func TestRandomSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	rows := rowsN(12)
	rows[3].Enabled = false
	rows[8].Enabled = false
	c := New(rows, 200)

	for step := 0; step < 2000; step++ {
		id := fmt.Sprint(rng.IntN(14) + 1)
		switch rng.IntN(6) {
		case 0, 1, 2:
			c.ToggleRow(id, rng.IntN(2) == 0, rng.IntN(3) == 0)
		case 3:
			c.ToggleAll(rng.IntN(2) == 0)
		case 4:
			_, err := c.ConfirmAcross()
			if err != nil && !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("ConfirmAcross() error = %v", err)
			}
		case 5:
			_, err := c.ClearAcross()
			if err != nil && !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("ClearAcross() error = %v", err)
			}
		}

		k := 0
		for _, row := range c.Rows() {
			if row.Checked {
				require.True(t, row.Enabled, "disabled row %s checked", row.ID)
				k++
			}
		}
		require.Equal(t, fmt.Sprintf("%d of 10 selected", k), c.CounterText())
		switch c.Mode() {
		case ModeNone:
			require.Zero(t, k)
		case ModePartial:
			require.True(t, k > 0 && k < 10)
		case ModePage, ModeAcross:
			require.Equal(t, 10, k)
		}
	}
}
