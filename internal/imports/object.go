package imports

import (
	"strconv"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/woxQAQ/wbg-host/internal/bridge"
	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

func objectShims() []*Shim {
	shims := []*Shim{
		{
			Key: "Object.new", Base: "__wbg_new", Capability: CapObject, Preferred: true,
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				c.Return(protocol.NewObject())
			},
		},
		{
			// obj[take(key)] = take(value)
			Key: "Object.set", Base: "__wbg_set", Capability: CapObject, Preferred: true,
			Params: []api.ValueType{i32, i32, i32},
			Fn: func(c *Call) {
				target := Arg[protocol.PropertySetter](c, 0, "object")
				key := c.Take(1)
				value := c.Take(2)
				target.Set(propertyKey(key), value)
			},
		},
		{
			Key: "Reflect.set", Base: "__wbg_set", Capability: CapObject, Catching: true,
			Params:  []api.ValueType{i32, i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				target := c.Object(0)
				key := c.Object(1)
				value := c.Object(2)
				if protocol.TypeOf(target) != "object" || protocol.IsLikeNone(target) {
					c.Fail(protocol.NewTypeError("Reflect.set called on non-object"))
				}
				setter, ok := target.(protocol.PropertySetter)
				if ok {
					setter.Set(propertyKey(key), value)
				}
				c.ReturnBool(ok)
			},
		},
		{
			Key: "Function.call0", Base: "__wbg_call", Capability: CapObject, Catching: true,
			Params:  []api.ValueType{i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				fn := Arg[protocol.Function](c, 0, "function")
				this := c.Object(1)
				res, err := fn.Call(c.ctx, this)
				c.Check(err)
				c.Return(res)
			},
		},
		{
			Key: "Function.call1", Base: "__wbg_call", Capability: CapObject, Catching: true,
			Params:  []api.ValueType{i32, i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				fn := Arg[protocol.Function](c, 0, "function")
				this := c.Object(1)
				arg := c.Object(2)
				res, err := fn.Call(c.ctx, this, arg)
				c.Check(err)
				c.Return(res)
			},
		},
		{
			Key: "Function.newNoArgs", Base: "__wbg_newnoargs", Capability: CapObject,
			Params:  []api.ValueType{i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				fn, err := c.Host().NewFunction(c.Str(0))
				c.Check(err)
				c.Return(fn)
			},
		},
		{
			Key: "require", Base: "__wbg_require", Capability: CapObject,
			Params:  []api.ValueType{i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				mod, err := c.Host().Require(c.Str(0))
				c.Check(err)
				c.Return(mod)
			},
		},
	}

	for _, name := range []string{"globalThis", "self", "window", "global"} {
		shims = append(shims, &Shim{
			Key: "global." + name, Base: "__wbg_" + name, Capability: CapObject, Catching: true,
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				v, err := c.Host().Global(name)
				c.Check(err)
				c.Return(v)
			},
		})
	}

	for _, lvl := range []struct {
		name  string
		level zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"log", zapcore.InfoLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	} {
		shims = append(shims, &Shim{
			Key: "console." + lvl.name, Base: "__wbg_" + lvl.name, Capability: CapConsole,
			Params: []api.ValueType{i32},
			Fn: func(c *Call) {
				consoleLog(c, lvl.level, c.Object(0))
			},
		})
	}

	return shims
}

// consoleLog routes guest console output through the host logger.
func consoleLog(c *Call, level zapcore.Level, v any) {
	msg, ok := v.(string)
	if !ok {
		msg = bridge.DebugString(v)
	}
	if ce := c.env.Logger.Check(level, msg); ce != nil {
		ce.Write(zap.String("source", "guest"))
	}
}

// propertyKey converts a host value used as a property name to its string form.
func propertyKey(v any) string {
	switch k := v.(type) {
	case string:
		return k
	}
	if n, ok := protocol.ToNumber(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return bridge.DebugString(v)
}
