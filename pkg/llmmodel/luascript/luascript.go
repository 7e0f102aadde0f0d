// Package luascript runs provider modules written in Lua. A module is a
// single script that defines an invoke(prompt, request) function; the host
// exposes logging and JSON helpers through the llmhub global.
package luascript

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmhub/pkg/llmmodel"
	"github.com/effective-security/llmhub/pkg/modelcfg"
	"github.com/effective-security/xlog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	lua "github.com/yuin/gopher-lua"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmhub", "luascript")

// Ext is the file extension of provider module scripts.
const Ext = ".lua"

// InvokeFunc is the function every provider module must define.
const InvokeFunc = "invoke"

// ErrInvalidScript is returned when a module does not compile or does not
// satisfy the provider contract.
var ErrInvalidScript = errors.New("invalid provider script")

// Script is a compiled provider module, reusable across models.
type Script struct {
	key   string
	proto *lua.FunctionProto
}

// Compile compiles the module source and verifies it defines the invoke
// function.
func Compile(key string, src []byte) (*Script, error) {
	L := newState()
	defer L.Close()

	fn, err := L.LoadString(string(src))
	if err != nil {
		return nil, errors.WithMessagef(ErrInvalidScript, "provider %q: %s", key, err.Error())
	}

	s := &Script{
		key:   key,
		proto: fn.Proto,
	}
	if err := s.run(L); err != nil {
		return nil, errors.WithMessagef(ErrInvalidScript, "provider %q: %s", key, err.Error())
	}
	if L.GetGlobal(InvokeFunc).Type() != lua.LTFunction {
		return nil, errors.WithMessagef(ErrInvalidScript, "provider %q does not define %s()", key, InvokeFunc)
	}
	return s, nil
}

// Key returns the provider key the module was loaded under.
func (s *Script) Key() string {
	return s.key
}

// Builder returns a Builder that constructs models executing this module.
func (s *Script) Builder() llmmodel.Builder {
	return func(name string, cfg *modelcfg.ModelConfig) (llmmodel.Model, error) {
		m := &model{
			name:   name,
			cfg:    cfg,
			script: s,
		}
		m.state = llmmodel.NewLazy(m.newState)
		return m, nil
	}
}

// run executes the module chunk in the given state, populating its globals.
func (s *Script) run(L *lua.LState) error {
	L.Push(L.NewFunctionFromProto(s.proto))
	return L.PCall(0, lua.MultRet, nil)
}

// newState creates a sandboxed interpreter. Only side-effect free stdlib
// modules are opened; io, os and dofile/loadfile stay unavailable.
func newState() *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	registerHostModule(L)
	return L
}

// registerHostModule exposes the llmhub global to scripts.
func registerHostModule(L *lua.LState) {
	mod := L.NewTable()

	L.SetField(mod, "log", L.NewFunction(func(L *lua.LState) int {
		msg := L.CheckString(1)
		logger.KV(xlog.INFO, "source", "lua", "msg", msg)
		return 0
	}))
	L.SetField(mod, "json_get", L.NewFunction(func(L *lua.LState) int {
		doc := L.CheckString(1)
		path := L.CheckString(2)
		L.Push(lua.LString(gjson.Get(doc, path).String()))
		return 1
	}))
	L.SetField(mod, "json_set", L.NewFunction(func(L *lua.LState) int {
		doc := L.CheckString(1)
		path := L.CheckString(2)
		value := L.CheckString(3)
		out, err := sjson.Set(doc, path, value)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LString(out))
		return 1
	}))

	L.SetGlobal("llmhub", mod)
}

type model struct {
	name   string
	cfg    *modelcfg.ModelConfig
	script *Script

	// the interpreter is single-threaded; calls are serialized
	mu    sync.Mutex
	state *llmmodel.Lazy[*lua.LState]
}

var _ llmmodel.Model = (*model)(nil)

func (m *model) Name() string {
	return m.name
}

func (m *model) Config() *modelcfg.ModelConfig {
	return m.cfg
}

func (m *model) newState(_ context.Context) (*lua.LState, error) {
	L := newState()
	if err := m.script.run(L); err != nil {
		L.Close()
		return nil, errors.WithMessagef(err, "provider %q: failed to initialize script state", m.script.key)
	}
	return L, nil
}

// Invoke implements the Model interface by calling the module's invoke
// function with the prompt and a request table.
func (m *model) Invoke(ctx context.Context, prompt string, opts ...llmmodel.CallOption) (*llmmodel.Response, error) {
	co := llmmodel.ResolveCallOptions(m.cfg, opts...)

	m.mu.Lock()
	defer m.mu.Unlock()

	L, err := m.state.Get(ctx)
	if err != nil {
		return nil, err
	}
	L.SetContext(ctx)

	L.Push(L.GetGlobal(InvokeFunc))
	L.Push(lua.LString(prompt))
	L.Push(m.requestTable(L, co))
	if err := L.PCall(2, 1, nil); err != nil {
		return nil, errors.WithMessagef(err, "provider %q: invoke failed for model %q", m.script.key, m.name)
	}

	result := L.Get(-1)
	L.Pop(1)

	switch v := result.(type) {
	case lua.LString:
		return &llmmodel.Response{Content: string(v)}, nil
	case *lua.LTable:
		resp := &llmmodel.Response{
			Content:      lua.LVAsString(L.GetField(v, "content")),
			InputTokens:  int64(lua.LVAsNumber(L.GetField(v, "input_tokens"))),
			OutputTokens: int64(lua.LVAsNumber(L.GetField(v, "output_tokens"))),
		}
		if resp.Content == "" {
			return nil, errors.WithMessagef(llmmodel.ErrEmptyResponse, "provider %q: model %q", m.script.key, m.name)
		}
		return resp, nil
	default:
		return nil, errors.WithMessagef(llmmodel.ErrEmptyResponse, "provider %q: model %q returned %s", m.script.key, m.name, result.Type().String())
	}
}

// requestTable builds the Lua request argument from the descriptor and the
// resolved call options.
func (m *model) requestTable(L *lua.LState, co *llmmodel.CallOptions) *lua.LTable {
	tbl := L.NewTable()
	L.SetField(tbl, "model", lua.LString(m.cfg.Name))
	L.SetField(tbl, "model_id", lua.LString(m.cfg.ModelID))
	L.SetField(tbl, "provider", lua.LString(m.cfg.Provider))
	L.SetField(tbl, "max_tokens", lua.LNumber(co.MaxTokens))
	L.SetField(tbl, "temperature", lua.LNumber(co.Temperature))
	if co.SystemPrompt != "" {
		L.SetField(tbl, "system_prompt", lua.LString(co.SystemPrompt))
	}

	extra := L.NewTable()
	for k, v := range m.cfg.Extra {
		switch val := v.(type) {
		case string:
			L.SetField(extra, k, lua.LString(val))
		case bool:
			L.SetField(extra, k, lua.LBool(val))
		case int:
			L.SetField(extra, k, lua.LNumber(val))
		case int64:
			L.SetField(extra, k, lua.LNumber(val))
		case float64:
			L.SetField(extra, k, lua.LNumber(val))
		}
	}
	L.SetField(tbl, "extra", extra)
	return tbl
}
