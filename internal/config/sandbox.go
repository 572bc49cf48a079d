package config

import (
	lua "github.com/yuin/gopher-lua"
)

// configLibs are the only standard libraries a config file gets. os, io,
// package and debug are never opened.
var configLibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// loaderGlobals are base-library functions that can pull in other code.
var loaderGlobals = []string{"dofile", "loadfile", "load", "loadstring", "require"}

// newSandboxedVM creates a Lua VM that can evaluate a declarative config
// table and nothing else.
func newSandboxedVM() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range configLibs {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range loaderGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}
