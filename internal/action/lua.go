package action

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Shopify/go-lua"
	"github.com/kode4food/lru"

	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

type (
	// LuaEnv compiles and runs Lua actions, pooling interpreter states
	LuaEnv struct {
		cache     *lru.Cache[*LuaAction]
		statePool chan *lua.State
	}

	// LuaAction is a compiled Lua action. The script sees its positional
	// arguments as the table args, keyword arguments as kwargs, and the
	// instance working directory as work_dir. Its return value is the
	// action result
	LuaAction struct {
		env      *LuaEnv
		bytecode []byte
	}
)

const (
	luaCacheSize        = 1024
	luaStatePoolSize    = 10
	luaGlobalTableIndex = -2
	luaArrayTableIndex  = -3
	luaMapTableIndex    = -3
	luaArgCount         = 3
	luaPreamble         = "local args, kwargs, work_dir = ..."
	luaGlobalTableName  = "_G"
	luaSeparator        = "\n"
)

var (
	ErrLuaLoad      = errors.New("lua load error")
	ErrLuaExecution = errors.New("lua execution error")
)

var luaExclude = [...]string{
	"io", "os", "debug", "package", "require", "dofile", "loadfile", "load",
}

var _ Invocable = (*LuaAction)(nil)

// NewLuaEnv creates a Lua environment with a compiled script cache
func NewLuaEnv() *LuaEnv {
	return &LuaEnv{
		cache:     lru.NewCache[*LuaAction](luaCacheSize),
		statePool: make(chan *lua.State, luaStatePoolSize),
	}
}

// Compile returns the compiled form of script, reusing earlier compilations
// of the same source
func (e *LuaEnv) Compile(script string) (*LuaAction, error) {
	return e.cache.Get(hashScript(script), func() (*LuaAction, error) {
		L := lua.NewState()
		e.setupSandbox(L)

		src := luaPreamble + luaSeparator + script
		if err := lua.LoadString(L, src); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
		}

		var buf bytes.Buffer
		if err := L.Dump(&buf); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
		}
		return &LuaAction{env: e, bytecode: buf.Bytes()}, nil
	})
}

// Invoke runs the script. Lua execution cannot be interrupted, so ctx is
// not consulted
func (a *LuaAction) Invoke(_ context.Context, c *Call) (any, error) {
	e := a.env
	L := e.getState()
	defer e.returnState(L)

	e.setupSandbox(L)
	if err := L.Load(bytes.NewReader(a.bytecode), "action", "b"); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	pushLuaArray(L, c.Args)
	pushLuaMap(L, c.Kwargs.Plain())
	L.PushString(c.WorkDir)

	if err := L.ProtectedCall(luaArgCount, 1, 0); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaExecution, err)
	}

	res := luaToGo(L, -1)
	L.Pop(1)
	return res, nil
}

func (e *LuaEnv) setupSandbox(L *lua.State) {
	lua.OpenLibraries(L)
	L.Global(luaGlobalTableName)
	for _, name := range luaExclude {
		L.PushNil()
		L.SetField(luaGlobalTableIndex, name)
	}
	L.Pop(1)
}

func (e *LuaEnv) getState() *lua.State {
	select {
	case L := <-e.statePool:
		return L
	default:
		return lua.NewState()
	}
}

func (e *LuaEnv) returnState(L *lua.State) {
	L.SetTop(0)

	select {
	case e.statePool <- L:
	default:
	}
}

func hashScript(script string) string {
	h := sha256.Sum256([]byte(script))
	return hex.EncodeToString(h[:])
}

func goToLua(L *lua.State, value any) {
	switch v := value.(type) {
	case string:
		L.PushString(v)
	case bool:
		L.PushBoolean(v)
	case int:
		L.PushInteger(v)
	case int64:
		L.PushInteger(int(v))
	case float64:
		L.PushNumber(v)
	case []any:
		pushLuaArray(L, v)
	case []string:
		arr := make([]any, len(v))
		for i, s := range v {
			arr[i] = s
		}
		pushLuaArray(L, arr)
	case map[string]any:
		pushLuaMap(L, v)
	case api.Args:
		pushLuaMap(L, v.Plain())
	case nil:
		L.PushNil()
	default:
		L.PushString(fmt.Sprintf("%v", v))
	}
}

func pushLuaArray(L *lua.State, arr []any) {
	L.CreateTable(len(arr), 0)
	for i, item := range arr {
		L.PushInteger(i + 1)
		goToLua(L, item)
		L.SetTable(luaArrayTableIndex)
	}
}

func pushLuaMap(L *lua.State, m map[string]any) {
	L.CreateTable(0, len(m))
	for k, val := range m {
		L.PushString(k)
		goToLua(L, val)
		L.SetTable(luaMapTableIndex)
	}
}

func luaNumberToGo(L *lua.State, index int) any {
	num, _ := L.ToNumber(index)
	if num == float64(int(num)) {
		return int(num)
	}
	return num
}

func luaToGo(L *lua.State, index int) any {
	switch L.TypeOf(index) {
	case lua.TypeNil:
		return nil
	case lua.TypeBoolean:
		return L.ToBoolean(index)
	case lua.TypeNumber:
		return luaNumberToGo(L, index)
	case lua.TypeString:
		s, _ := L.ToString(index)
		return s
	case lua.TypeTable:
		return luaTableToAny(L, L.AbsIndex(index))
	default:
		return nil
	}
}

// luaTableToAny converts the table at the absolute stack index to a list
// when its keys are exactly 1..n, and to a map otherwise
func luaTableToAny(L *lua.State, index int) any {
	isArray := true
	length := 0

	L.PushNil()
	for L.Next(index) {
		if L.TypeOf(-2) != lua.TypeNumber {
			isArray = false
			L.Pop(2)
			break
		}
		length++
		L.Pop(1)
	}

	if isArray && length > 0 && L.RawLength(index) == length {
		return convertLuaArray(L, index, length)
	}

	result := map[string]any{}
	L.PushNil()
	for L.Next(index) {
		var key string
		if L.TypeOf(-2) == lua.TypeString {
			key, _ = L.ToString(-2)
		} else {
			key = fmt.Sprintf("%v", luaToGo(L, -2))
		}
		result[key] = luaToGo(L, -1)
		L.Pop(1)
	}
	return result
}

func convertLuaArray(L *lua.State, index, length int) []any {
	arr := make([]any, length)
	for i := 1; i <= length; i++ {
		L.RawGetInt(index, i)
		arr[i-1] = luaToGo(L, -1)
		L.Pop(1)
	}
	return arr
}
