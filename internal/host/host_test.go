package host

import (
	"context"
	"errors"
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/omnicomplete/internal/complete"
)

// fakeState implements State for testing.
type fakeState struct {
	text string
	row  int
	col  int
}

func (s *fakeState) BufferText() string { return s.text }
func (s *fakeState) CursorRow() int     { return s.row }
func (s *fakeState) CursorCol() int     { return s.col }

// staticProvider returns a fixed candidate list.
func staticProvider(candidates []complete.Candidate, err error) complete.Provider {
	return complete.ProviderFunc(func(context.Context, string, int, int) ([]complete.Candidate, error) {
		return candidates, err
	})
}

func newTestState(t *testing.T, m *Module) *lua.LState {
	t.Helper()
	L := lua.NewState()
	t.Cleanup(L.Close)
	if err := m.Register(L); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	return L
}

func TestOmnifuncFindStart(t *testing.T) {
	adapter := complete.New(staticProvider(nil, nil))
	m := NewModule(adapter, &fakeState{text: "import os", row: 1, col: 7})
	L := newTestState(t, m)

	if err := L.DoString(`result = _omni.omnifunc(1, "")`); err != nil {
		t.Fatalf("DoString() error: %v", err)
	}

	got, ok := L.GetGlobal("result").(lua.LNumber)
	if !ok {
		t.Fatalf("findstart result is %T, want number", L.GetGlobal("result"))
	}
	if int(got) != 7 {
		t.Errorf("findstart = %d, want 7", int(got))
	}
}

func TestOmnifuncCompletions(t *testing.T) {
	adapter := complete.New(staticProvider([]complete.Candidate{
		{
			Text:          "foo",
			Display:       "foo()",
			Detail:        "function",
			Documentation: "docstring",
			Kind:          "function",
		},
	}, nil))
	m := NewModule(adapter, &fakeState{text: "fo", row: 1, col: 2})
	L := newTestState(t, m)

	if err := L.DoString(`result = _omni.omnifunc(0, "fo")`); err != nil {
		t.Fatalf("DoString() error: %v", err)
	}

	tbl, ok := L.GetGlobal("result").(*lua.LTable)
	if !ok {
		t.Fatalf("completion result is %T, want table", L.GetGlobal("result"))
	}
	if tbl.Len() != 1 {
		t.Fatalf("got %d entries, want 1", tbl.Len())
	}

	entry, ok := tbl.RawGetInt(1).(*lua.LTable)
	if !ok {
		t.Fatalf("entry is %T, want table", tbl.RawGetInt(1))
	}

	fields := map[string]string{
		"word": "foo",
		"abbr": "foo()",
		"menu": "function",
		"info": "docstring",
		"kind": "function",
	}
	for field, want := range fields {
		if got := lua.LVAsString(entry.RawGetString(field)); got != want {
			t.Errorf("entry.%s = %q, want %q", field, got, want)
		}
	}
	for _, flag := range []string{"icase", "dup"} {
		if got := lua.LVAsNumber(entry.RawGetString(flag)); got != 1 {
			t.Errorf("entry.%s = %v, want 1", flag, got)
		}
	}
}

func TestOmnifuncProviderFailureYieldsEmptyTable(t *testing.T) {
	adapter := complete.New(staticProvider(nil, errors.New("syntax error")))
	m := NewModule(adapter, &fakeState{text: "def f(", row: 1, col: 6})
	L := newTestState(t, m)

	if err := L.DoString(`result = _omni.omnifunc(0, "")`); err != nil {
		t.Fatalf("DoString() error: %v", err)
	}

	tbl, ok := L.GetGlobal("result").(*lua.LTable)
	if !ok {
		t.Fatalf("result is %T, want table", L.GetGlobal("result"))
	}
	if tbl.Len() != 0 {
		t.Errorf("got %d entries on failure, want 0", tbl.Len())
	}
}

func TestOmnifuncNilState(t *testing.T) {
	adapter := complete.New(staticProvider(nil, nil))
	m := NewModule(adapter, nil)
	L := newTestState(t, m)

	if err := L.DoString(`col = _omni.omnifunc(1, "")`); err != nil {
		t.Fatalf("DoString() error: %v", err)
	}
	if got := lua.LVAsNumber(L.GetGlobal("col")); got != 0 {
		t.Errorf("findstart with nil state = %v, want 0", got)
	}

	if err := L.DoString(`list = _omni.omnifunc(0, "")`); err != nil {
		t.Fatalf("DoString() error: %v", err)
	}
	if _, ok := L.GetGlobal("list").(*lua.LTable); !ok {
		t.Errorf("completion with nil state is %T, want table", L.GetGlobal("list"))
	}
}

func TestOmnifuncForwardsCursorPosition(t *testing.T) {
	var gotRow, gotCol int
	var gotSource string
	provider := complete.ProviderFunc(func(_ context.Context, source string, row, col int) ([]complete.Candidate, error) {
		gotSource, gotRow, gotCol = source, row, col
		return nil, nil
	})

	adapter := complete.New(provider)
	m := NewModule(adapter, &fakeState{text: "a\nbc\ndef", row: 2, col: 1})
	L := newTestState(t, m)

	if err := L.DoString(`_omni.omnifunc(0, "")`); err != nil {
		t.Fatalf("DoString() error: %v", err)
	}

	if gotSource != "a\nbc\ndef" || gotRow != 2 || gotCol != 1 {
		t.Errorf("provider saw (%q, %d, %d), want (%q, 2, 1)", gotSource, gotRow, gotCol, "a\nbc\ndef")
	}
}
