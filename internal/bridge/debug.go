package bridge

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

// DebugString renders a host value for guest-side Debug output.
func DebugString(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case protocol.Undefined, *protocol.Undefined:
		return "undefined"
	case protocol.Null, *protocol.Null:
		return "null"
	case bool:
		return strconv.FormatBool(x)
	case string:
		return `"` + x + `"`
	case *protocol.NamedFunction:
		if x.Name != "" {
			return "Function(" + x.Name + ")"
		}
		return "Function"
	case protocol.Function:
		return "Function"
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = DebugString(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *protocol.Object:
		data, err := json.Marshal(x)
		if err != nil {
			return "Object"
		}
		return "Object(" + string(data) + ")"
	case *protocol.ErrorValue:
		return x.Name + ": " + x.Message
	case error:
		return "Error: " + x.Error()
	}

	if n, ok := protocol.ToNumber(v); ok {
		return strconv.FormatFloat(n, 'g', -1, 64)
	}

	return className(v)
}

func className(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return fmt.Sprintf("%T", v)
	}
	return t.Name()
}
