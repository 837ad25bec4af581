package symbol

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/atomic"

	"github.com/tangzhangming/lowir/internal/types"
)

// ============================================================================
// ID - 紧凑的全局符号标识
// ============================================================================
//
// ID 布局:
//   - 3 字节: 包索引
//   - 3 字节: 包内类索引
//   - 2 字节: 类内成员索引
//
// 上限:
//   - 16_777_215 个包
//   - 每个包 16_777_215 个类
//   - 每个类 65_535 个成员
//
// ============================================================================

// ID 符号标识
type ID uint64

// NewID 由各部分构造一个符号 ID
func NewID(pkg, class, member uint64) ID {
	return ID((pkg << (8 * 5)) | (class << (8 * 2)) | (member << (8 * 0)))
}

func (id ID) PackageIndex() uint { return uint(id >> (8 * 5)) }

func (id ID) ClassIndex() uint { return uint((id << (8 * 3)) >> (8 * 5)) }

func (id ID) MemberIndex() uint { return uint(uint16(id)) }

func (id ID) String() string {
	return fmt.Sprintf("sym{%d,%d,%d}", id.PackageIndex(), id.ClassIndex(), id.MemberIndex())
}

const (
	maxPackages = 1<<24 - 1
	maxClasses  = 1<<24 - 1
	maxMembers  = 1<<16 - 1
)

// ============================================================================
// 符号定义
// ============================================================================

// Package 包符号
type Package struct {
	Index   int
	Name    string // 点分形式，如 "testutil"
	Classes []*Class
}

// Class 类符号
type Class struct {
	ID      ID
	Package *Package
	Name    string
	Methods []*Method
	Consts  []*Const

	methodByName map[string]*Method
	constByName  map[string]*Const
}

// Method 静态方法符号
type Method struct {
	ID     ID
	Class  *Class
	Name   string
	Params []types.Type
	Result types.Type
	Static bool
	Native bool // 由宿主（Go）实现
}

// Const static final 常量，按 javac 的方式在使用处内联
type Const struct {
	Class *Class
	Name  string
	Type  types.Type
	Value int64 // int/long 常量值
}

// Descriptor 返回 JVM 风格的方法描述符，如 "(IJ)I"
func (m *Method) Descriptor() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range m.Params {
		b.WriteString(p.Descriptor())
	}
	b.WriteByte(')')
	b.WriteString(m.Result.Descriptor())
	return b.String()
}

// QualifiedName 返回用于绑定宿主函数的全名，如 "testutil/T.printInt"
func (m *Method) QualifiedName() string {
	return m.Class.QualifiedName() + "." + m.Name
}

// QualifiedName 返回类的全名，如 "testutil/T"
func (c *Class) QualifiedName() string {
	if c.Package.Name == "" {
		return c.Name
	}
	return strings.ReplaceAll(c.Package.Name, ".", "/") + "/" + c.Name
}

// Method 按名称查找方法
func (c *Class) Method(name string) *Method {
	return c.methodByName[name]
}

// Const 按名称查找常量
func (c *Class) Const(name string) *Const {
	return c.constByName[name]
}

// ============================================================================
// Table - 符号表
// ============================================================================
//
// 符号表在检查阶段构建，在降级之前通过 Freeze 发布。
// 冻结之后不允许再修改，查询不再加锁。
//
// ============================================================================

// Table 符号表
type Table struct {
	mu       sync.RWMutex
	frozen   atomic.Bool
	packages []*Package
	byName   map[string]*Package
}

// NewTable 创建空符号表
func NewTable() *Table {
	return &Table{
		byName: make(map[string]*Package),
	}
}

// Freeze 发布符号表，之后的修改会返回错误
func (t *Table) Freeze() {
	t.mu.Lock()
	t.frozen.Store(true)
	t.mu.Unlock()
}

// Frozen 是否已冻结
func (t *Table) Frozen() bool {
	return t.frozen.Load()
}

func (t *Table) checkMutable() error {
	if t.frozen.Load() {
		return fmt.Errorf("symbol table is frozen")
	}
	return nil
}

// AddClass 注册一个类，包不存在时自动创建
func (t *Table) AddClass(pkgName, className string) (*Class, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkMutable(); err != nil {
		return nil, err
	}

	pkg := t.byName[pkgName]
	if pkg == nil {
		if len(t.packages) >= maxPackages {
			return nil, fmt.Errorf("too many packages")
		}
		pkg = &Package{Index: len(t.packages), Name: pkgName}
		t.packages = append(t.packages, pkg)
		t.byName[pkgName] = pkg
	}
	for _, c := range pkg.Classes {
		if c.Name == className {
			return nil, fmt.Errorf("duplicate class %s", c.QualifiedName())
		}
	}
	if len(pkg.Classes) >= maxClasses {
		return nil, fmt.Errorf("too many classes in package %s", pkgName)
	}

	class := &Class{
		ID:           NewID(uint64(pkg.Index), uint64(len(pkg.Classes)), 0),
		Package:      pkg,
		Name:         className,
		methodByName: make(map[string]*Method),
		constByName:  make(map[string]*Const),
	}
	pkg.Classes = append(pkg.Classes, class)
	return class, nil
}

// AddMethod 在类中注册一个方法
//
// 方法不支持重载，同名方法返回错误。
func (t *Table) AddMethod(class *Class, m *Method) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkMutable(); err != nil {
		return err
	}
	if _, ok := class.methodByName[m.Name]; ok {
		return fmt.Errorf("duplicate method %s.%s", class.Name, m.Name)
	}
	if len(class.Methods) >= maxMembers {
		return fmt.Errorf("too many methods in class %s", class.Name)
	}
	m.Class = class
	m.ID = NewID(uint64(class.ID.PackageIndex()), uint64(class.ID.ClassIndex()), uint64(len(class.Methods)))
	class.Methods = append(class.Methods, m)
	class.methodByName[m.Name] = m
	return nil
}

// AddConst 在类中注册一个 static final 常量
func (t *Table) AddConst(class *Class, c *Const) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkMutable(); err != nil {
		return err
	}
	if _, ok := class.constByName[c.Name]; ok {
		return fmt.Errorf("duplicate field %s.%s", class.Name, c.Name)
	}
	c.Class = class
	class.Consts = append(class.Consts, c)
	class.constByName[c.Name] = c
	return nil
}

// ============================================================================
// 查询
// ============================================================================

// rlock 冻结前的查询需要加读锁，冻结后直接读取
func (t *Table) rlock() func() {
	if t.frozen.Load() {
		return func() {}
	}
	t.mu.RLock()
	return t.mu.RUnlock
}

// Package 按名称查找包
func (t *Table) Package(name string) *Package {
	defer t.rlock()()
	return t.byName[name]
}

// Packages 返回所有包
func (t *Table) Packages() []*Package {
	defer t.rlock()()
	return t.packages
}

// Class 按包名和类名查找类
func (t *Table) Class(pkgName, className string) *Class {
	defer t.rlock()()
	pkg := t.byName[pkgName]
	if pkg == nil {
		return nil
	}
	for _, c := range pkg.Classes {
		if c.Name == className {
			return c
		}
	}
	return nil
}

// ClassByID 按 ID 查找类（成员索引被忽略）
func (t *Table) ClassByID(id ID) *Class {
	defer t.rlock()()
	pi, ci := int(id.PackageIndex()), int(id.ClassIndex())
	if pi >= len(t.packages) || ci >= len(t.packages[pi].Classes) {
		return nil
	}
	return t.packages[pi].Classes[ci]
}

// Method 按 ID 查找方法
func (t *Table) Method(id ID) *Method {
	class := t.ClassByID(id)
	if class == nil {
		return nil
	}
	defer t.rlock()()
	mi := int(id.MemberIndex())
	if mi >= len(class.Methods) {
		return nil
	}
	return class.Methods[mi]
}

// LookupQualified 按全名查找方法，如 "testutil/T.printInt"
func (t *Table) LookupQualified(name string) *Method {
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return nil
	}
	classPath, methodName := name[:dot], name[dot+1:]
	pkgName, className := "", classPath
	if slash := strings.LastIndexByte(classPath, '/'); slash >= 0 {
		pkgName = strings.ReplaceAll(classPath[:slash], "/", ".")
		className = classPath[slash+1:]
	}
	class := t.Class(pkgName, className)
	if class == nil {
		return nil
	}
	defer t.rlock()()
	return class.methodByName[methodName]
}
