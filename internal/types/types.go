package types

// ============================================================================
// Type - Java 子集的静态类型
// ============================================================================
//
// 只有基本类型和一维基本类型数组。Type 是可比较的值类型，
// 可以直接用 == 判断相等，也可以作为 map 的键。
//
// ============================================================================

// Kind 类型种类
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindBoolean
	KindInt
	KindLong
	KindDouble
	KindArray
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindVoid:    "void",
	KindBoolean: "boolean",
	KindInt:     "int",
	KindLong:    "long",
	KindDouble:  "double",
	KindArray:   "array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Type 静态类型
//
// Elem 只在 Kind == KindArray 时有意义，表示元素类型。
type Type struct {
	Kind Kind
	Elem Kind
}

// 预定义类型
var (
	Invalid     = Type{Kind: KindInvalid}
	Void        = Type{Kind: KindVoid}
	Boolean     = Type{Kind: KindBoolean}
	Int         = Type{Kind: KindInt}
	Long        = Type{Kind: KindLong}
	Double      = Type{Kind: KindDouble}
	IntArray    = Type{Kind: KindArray, Elem: KindInt}
	LongArray   = Type{Kind: KindArray, Elem: KindLong}
	DoubleArray = Type{Kind: KindArray, Elem: KindDouble}
	BoolArray   = Type{Kind: KindArray, Elem: KindBoolean}
)

// ArrayOf 返回元素类型为 elem 的数组类型
func ArrayOf(elem Type) Type {
	return Type{Kind: KindArray, Elem: elem.Kind}
}

// ElemType 返回数组的元素类型
func (t Type) ElemType() Type {
	return Type{Kind: t.Elem}
}

func (t Type) String() string {
	if t.Kind == KindArray {
		return t.Elem.String() + "[]"
	}
	return t.Kind.String()
}

// IsArray 是否为数组（引用）类型
func (t Type) IsArray() bool { return t.Kind == KindArray }

// IsIntLike 是否按 int 存储（int 与 boolean）
func (t Type) IsIntLike() bool { return t.Kind == KindInt || t.Kind == KindBoolean }

// IsIntegral 是否为整数类型
func (t Type) IsIntegral() bool { return t.Kind == KindInt || t.Kind == KindLong }

// IsNumeric 是否为数值类型
func (t Type) IsNumeric() bool { return t.IsIntegral() || t.Kind == KindDouble }

// Width 返回该类型在局部变量帧中占用的槽位数
//
// long 与 double 占 2 个槽位，其余占 1 个，void 占 0 个。
func (t Type) Width() int {
	switch t.Kind {
	case KindVoid, KindInvalid:
		return 0
	case KindLong, KindDouble:
		return 2
	default:
		return 1
	}
}

// Descriptor 返回 JVM 风格的类型描述符（I, J, D, Z, V, [I）
func (t Type) Descriptor() string {
	switch t.Kind {
	case KindVoid:
		return "V"
	case KindBoolean:
		return "Z"
	case KindInt:
		return "I"
	case KindLong:
		return "J"
	case KindDouble:
		return "D"
	case KindArray:
		return "[" + t.ElemType().Descriptor()
	default:
		return "?"
	}
}

// Promote 返回二元数值运算的结果类型（二元数值提升）
//
// 任一操作数为 double 时结果为 double，其次为 long，否则为 int。
func Promote(a, b Type) Type {
	switch {
	case a.Kind == KindDouble || b.Kind == KindDouble:
		return Double
	case a.Kind == KindLong || b.Kind == KindLong:
		return Long
	default:
		return Int
	}
}

// AssignableTo 检查 from 类型的值能否隐式赋给 to 类型
//
// 允许相同类型与拓宽转换（int -> long -> double）。
func AssignableTo(from, to Type) bool {
	if from == to {
		return true
	}
	switch to.Kind {
	case KindLong:
		return from.Kind == KindInt
	case KindDouble:
		return from.Kind == KindInt || from.Kind == KindLong
	}
	return false
}
