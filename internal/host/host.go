// Package host binds the completion adapter into the editor's embedded Lua
// scripting runtime.
//
// The host editor drives completion through a two-phase callback it owns:
// called with a non-zero findstart flag it expects the column completion
// starts at, then called again for the completion-entry list. That calling
// convention is the host's, not ours; it is preserved here at the boundary
// while the adapter underneath keeps its two plain operations.
package host

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/omnicomplete/internal/complete"
)

// GlobalName is the Lua global the module table is registered under.
const GlobalName = "_omni"

// State exposes the host editor's buffer and cursor to the module. It is
// injected rather than read from runtime globals so the module can be
// exercised against a fake host.
type State interface {
	// BufferText returns the full buffer content with line breaks preserved.
	BufferText() string
	// CursorRow returns the 1-based cursor line.
	CursorRow() int
	// CursorCol returns the 0-based cursor byte column.
	CursorCol() int
}

// Module exposes the omni-completion hook to Lua.
type Module struct {
	adapter *complete.Adapter
	state   State
}

// NewModule creates a module around the adapter and host state.
func NewModule(adapter *complete.Adapter, state State) *Module {
	return &Module{
		adapter: adapter,
		state:   state,
	}
}

// Register installs the module table into the Lua state under GlobalName.
// Registration happens once at plugin load and lives for the editor session.
func (m *Module) Register(L *lua.LState) error {
	mod := L.NewTable()
	L.SetField(mod, "omnifunc", L.NewFunction(m.omnifunc))
	L.SetGlobal(GlobalName, mod)
	return nil
}

// omnifunc(findstart, base) implements the host's two-phase protocol.
//
// Phase 1 (findstart ~= 0) returns the current cursor column unmodified.
// Phase 2 returns the completion entries as an array of tables with the
// fields word/abbr/menu/info/kind/icase/dup. The base string is accepted and
// unused. Failures never escape into the host: the adapter boundary has
// already converted them to an empty list.
func (m *Module) omnifunc(L *lua.LState) int {
	findstart := L.CheckInt(1)
	_ = L.OptString(2, "") // base, unused by this adapter

	if m.state == nil {
		if findstart != 0 {
			L.Push(lua.LNumber(0))
		} else {
			L.Push(L.NewTable())
		}
		return 1
	}

	if findstart != 0 {
		L.Push(lua.LNumber(m.adapter.StartColumn(m.state.CursorCol())))
		return 1
	}

	req := complete.Request{
		Source: m.state.BufferText(),
		Row:    m.state.CursorRow(),
		Col:    m.state.CursorCol(),
	}

	entries := m.adapter.Completions(context.Background(), req)

	tbl := L.NewTable()
	for i, e := range entries {
		entryTbl := L.NewTable()
		L.SetField(entryTbl, "word", lua.LString(e.Word))
		L.SetField(entryTbl, "abbr", lua.LString(e.Abbr))
		L.SetField(entryTbl, "menu", lua.LString(e.Menu))
		L.SetField(entryTbl, "info", lua.LString(e.Info))
		L.SetField(entryTbl, "kind", lua.LString(e.Kind))
		L.SetField(entryTbl, "icase", lua.LNumber(e.ICase))
		L.SetField(entryTbl, "dup", lua.LNumber(e.Dup))
		tbl.RawSetInt(i+1, entryTbl)
	}

	L.Push(tbl)
	return 1
}
