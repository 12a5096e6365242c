package cheevos

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

type memref struct {
	address uint32
	size    int
}

// condition is a compiled MemAddr expression.
type condition struct {
	source string
	fn     *lua.LFunction
}

// runtime owns the Lua state conditions run in and the memory values
// observed during the current and previous evaluation pass.
type runtime struct {
	L      *lua.LState
	reader MemoryReader

	cur  map[memref]uint32
	prev map[memref]uint32
	buf  [4]byte
}

func newRuntime() *runtime {
	rt := &runtime{
		L:    lua.NewState(lua.Options{SkipOpenLibs: true}),
		cur:  make(map[memref]uint32),
		prev: make(map[memref]uint32),
	}
	rt.L.SetGlobal("mem", rt.L.NewFunction(rt.luaMem))
	rt.L.SetGlobal("delta", rt.L.NewFunction(rt.luaDelta))
	return rt
}

func (rt *runtime) close() {
	rt.L.Close()
}

func (rt *runtime) compile(name, memAddr string) (*condition, error) {
	cmps, err := parseMemAddr(memAddr)
	if err != nil {
		return nil, err
	}
	src := compile(cmps)
	fn, err := rt.L.Load(strings.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("cheevos: compile %s: %w", name, err)
	}
	return &condition{source: src, fn: fn}, nil
}

func (rt *runtime) eval(c *condition) (bool, error) {
	if err := rt.L.CallByParam(lua.P{Fn: c.fn, NRet: 1, Protect: true}); err != nil {
		return false, err
	}
	ret := rt.L.Get(-1)
	rt.L.Pop(1)
	return lua.LVAsBool(ret), nil
}

func (rt *runtime) read(m memref) uint32 {
	if v, ok := rt.cur[m]; ok {
		return v
	}
	var v uint32
	if rt.reader != nil {
		b := rt.buf[:m.size]
		for i := range b {
			b[i] = 0
		}
		rt.reader.ReadMemory(m.address, b)
		for i := m.size - 1; i >= 0; i-- {
			v = v<<8 | uint32(b[i])
		}
	}
	rt.cur[m] = v
	return v
}

func (rt *runtime) luaMem(L *lua.LState) int {
	v := rt.read(memref{address: uint32(L.CheckInt64(1)), size: L.CheckInt(2)})
	L.Push(lua.LNumber(v))
	return 1
}

func (rt *runtime) luaDelta(L *lua.LState) int {
	m := memref{address: uint32(L.CheckInt64(1)), size: L.CheckInt(2)}
	rt.read(m)
	L.Push(lua.LNumber(rt.prev[m]))
	return 1
}

// endFrame makes this pass's values the delta values of the next.
func (rt *runtime) endFrame() {
	rt.prev, rt.cur = rt.cur, rt.prev
	for k := range rt.cur {
		delete(rt.cur, k)
	}
}

// discard forgets this pass's values without touching delta values.
func (rt *runtime) discard() {
	for k := range rt.cur {
		delete(rt.cur, k)
	}
}
