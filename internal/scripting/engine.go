package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Fallbacks used when a script function is missing or fails.
const (
	DefaultSpeed          = 64.0 // pixels per second
	DefaultAttackDuration = 500 * time.Millisecond
)

// Engine wraps a single gopher-lua VM holding gameplay rules.
// Single-goroutine access only (tick loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads every script under scriptsDir.
// Missing directories are skipped, so an empty scripts dir yields an engine
// that answers with the Go fallbacks.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	for _, sub := range []string{"core", "character", "combat"} {
		if err := e.loadDir(filepath.Join(scriptsDir, sub)); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

// LoadString runs a chunk of Lua source in the engine.
func (e *Engine) LoadString(src string) error {
	return e.vm.DoString(src)
}

func (e *Engine) Close() {
	e.vm.Close()
}

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// CharacterDefaults are the starting values of a freshly created character.
type CharacterDefaults struct {
	Speed float64
	DirX  int32
	DirY  int32
}

func fallbackDefaults() CharacterDefaults {
	return CharacterDefaults{Speed: DefaultSpeed, DirX: 0, DirY: 1}
}

// CharacterDefaults calls character_defaults(vocation) which returns a table
// {speed=, dir_x=, dir_y=}.
func (e *Engine) CharacterDefaults(vocation uint8) CharacterDefaults {
	out := fallbackDefaults()
	ret, ok := e.call("character_defaults", lua.LNumber(vocation))
	if !ok {
		return out
	}
	tbl, isTable := ret.(*lua.LTable)
	if !isTable {
		e.log.Error("character_defaults returned non-table", zap.String("type", ret.Type().String()))
		return out
	}
	if v, ok := tbl.RawGetString("speed").(lua.LNumber); ok {
		out.Speed = float64(v)
	}
	if v, ok := tbl.RawGetString("dir_x").(lua.LNumber); ok {
		out.DirX = int32(v)
	}
	if v, ok := tbl.RawGetString("dir_y").(lua.LNumber); ok {
		out.DirY = int32(v)
	}
	return out
}

// AttackDuration calls attack_duration(vocation) which returns seconds.
// Non-positive results fall back to fallback.
func (e *Engine) AttackDuration(vocation uint8, fallback time.Duration) time.Duration {
	ret, ok := e.call("attack_duration", lua.LNumber(vocation))
	if !ok {
		return fallback
	}
	secs, isNum := ret.(lua.LNumber)
	if !isNum || secs <= 0 {
		return fallback
	}
	return time.Duration(float64(secs) * float64(time.Second))
}

// call invokes a global function with one return value. It reports false when
// the function is undefined or raises an error.
func (e *Engine) call(name string, args ...lua.LValue) (lua.LValue, bool) {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return lua.LNil, false
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		e.log.Error("lua call failed", zap.String("fn", name), zap.Error(err))
		return lua.LNil, false
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)
	return ret, true
}
