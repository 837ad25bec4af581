package irexec

import (
	"fmt"
	"runtime"
	"sort"

	diag "github.com/tangzhangming/lowir/internal/errors"
)

// ============================================================================
// 宿主函数
// ============================================================================

// Native 宿主函数，参数已按被调方法的声明类型排好
type Native func(m *Machine, args []Value) (Value, error)

// Bind 把宿主函数绑定到方法全名，如 "testutil/T.printInt"
func (m *Machine) Bind(name string, fn Native) {
	m.natives[name] = fn
}

// Bound 返回已绑定的宿主函数名，按字典序排列
func (m *Machine) Bound() []string {
	names := make([]string, 0, len(m.natives))
	for name := range m.natives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// testutil 测试库 testutil.T 的宿主实现
var testutil = map[string]Native{
	"printInt": func(m *Machine, args []Value) (Value, error) {
		_, err := fmt.Fprintf(m.out, "%d\n", args[0].Int())
		return Value{}, err
	},
	"printLong": func(m *Machine, args []Value) (Value, error) {
		_, err := fmt.Fprintf(m.out, "%d\n", args[0].Long())
		return Value{}, err
	},
	"printIntArray": func(m *Machine, args []Value) (Value, error) {
		arr := args[0].Array()
		if arr == nil {
			return Value{}, m.runtimeError(diag.R0300, "printIntArray: array is null")
		}
		_, err := fmt.Fprintln(m.out, arr.String())
		return Value{}, err
	},
	"isub": func(m *Machine, args []Value) (Value, error) {
		return IntValue(args[0].Int() - args[1].Int()), nil
	},
	"isub3": func(m *Machine, args []Value) (Value, error) {
		return IntValue(args[0].Int() - args[1].Int() - args[2].Int()), nil
	},
	"ii_l": func(m *Machine, args []Value) (Value, error) {
		return LongValue(int64(args[0].Int() - args[1].Int())), nil
	},
	"li_i": func(m *Machine, args []Value) (Value, error) {
		return IntValue(int32(args[0].Long()) - args[1].Int()), nil
	},
	"il_i": func(m *Machine, args []Value) (Value, error) {
		return IntValue(args[0].Int() - int32(args[1].Long())), nil
	},
	"ilil_i": func(m *Machine, args []Value) (Value, error) {
		return IntValue(args[0].Int() - int32(args[1].Long()) - args[2].Int() - int32(args[3].Long())), nil
	},
	"GC": func(m *Machine, args []Value) (Value, error) {
		runtime.GC()
		return Value{}, nil
	},
}

// BindTestutil 绑定 testutil.T 的全部宿主函数
func (m *Machine) BindTestutil() {
	for name, fn := range testutil {
		m.Bind("testutil/T."+name, fn)
	}
}
