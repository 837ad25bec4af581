package symbol

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/tangzhangming/lowir/internal/types"
)

func TestID(t *testing.T) {
	for i := 0; i < 1000; i++ {
		pkg := uint64(rand.Intn(16777215))
		class := uint64(rand.Intn(16777215))
		member := uint64(rand.Intn(65535))
		id := NewID(pkg, class, member)
		if id.PackageIndex() != uint(pkg) {
			t.Fatalf("id(%x,%x,%x) package mismatch:\nhave: %d\nwant: %d\nbits: %x",
				pkg, class, member, id.PackageIndex(), pkg, id)
		}
		if id.ClassIndex() != uint(class) {
			t.Fatalf("id(%x,%x,%x) class mismatch:\nhave: %d\nwant: %d\nbits: %x",
				pkg, class, member, id.ClassIndex(), class, id)
		}
		if id.MemberIndex() != uint(member) {
			t.Fatalf("id(%x,%x,%x) member mismatch:\nhave: %d\nwant: %d\nbits: %x",
				pkg, class, member, id.MemberIndex(), member, id)
		}
	}
}

func newTestTable(t *testing.T) (*Table, *Method) {
	t.Helper()
	tab := NewTable()
	if _, err := tab.AddClass("irgen", "C1"); err != nil {
		t.Fatal(err)
	}
	tutil, err := tab.AddClass("testutil", "T")
	if err != nil {
		t.Fatal(err)
	}
	m := &Method{
		Name:   "ilil_i",
		Params: []types.Type{types.Int, types.Long, types.Int, types.Long},
		Result: types.Int,
		Native: true,
	}
	if err := tab.AddMethod(tutil, &Method{Name: "printInt", Params: []types.Type{types.Int}, Result: types.Void, Native: true}); err != nil {
		t.Fatal(err)
	}
	if err := tab.AddMethod(tutil, m); err != nil {
		t.Fatal(err)
	}
	return tab, m
}

func TestTableLookup(t *testing.T) {
	tab, m := newTestTable(t)

	if m.ID.PackageIndex() != 1 || m.ID.ClassIndex() != 0 || m.ID.MemberIndex() != 1 {
		t.Errorf("unexpected id %s", m.ID)
	}
	if got := tab.Method(m.ID); got != m {
		t.Errorf("Method(%s) = %v", m.ID, got)
	}
	if got := m.QualifiedName(); got != "testutil/T.ilil_i" {
		t.Errorf("QualifiedName = %q", got)
	}
	if got := tab.LookupQualified("testutil/T.ilil_i"); got != m {
		t.Errorf("LookupQualified = %v", got)
	}
	if got := m.Descriptor(); got != "(IJIJ)I" {
		t.Errorf("Descriptor = %q", got)
	}
	if tab.Method(NewID(7, 0, 0)) != nil {
		t.Error("lookup of unknown package should fail")
	}
	if tab.LookupQualified("testutil/T.missing") != nil {
		t.Error("lookup of unknown method should fail")
	}
}

func TestTableDuplicates(t *testing.T) {
	tab, _ := newTestTable(t)
	if _, err := tab.AddClass("testutil", "T"); err == nil {
		t.Error("duplicate class accepted")
	}
	class := tab.Class("testutil", "T")
	if err := tab.AddMethod(class, &Method{Name: "printInt"}); err == nil {
		t.Error("duplicate method accepted")
	}
	if err := tab.AddConst(class, &Const{Name: "TRUE", Type: types.Int, Value: 1}); err != nil {
		t.Fatal(err)
	}
	if err := tab.AddConst(class, &Const{Name: "TRUE", Type: types.Int, Value: 1}); err == nil {
		t.Error("duplicate const accepted")
	}
}

func TestTableFreeze(t *testing.T) {
	tab, m := newTestTable(t)
	tab.Freeze()

	if !tab.Frozen() {
		t.Fatal("table not frozen")
	}
	if _, err := tab.AddClass("other", "X"); err == nil {
		t.Error("AddClass after Freeze should fail")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if tab.Method(m.ID) != m {
					t.Error("concurrent lookup mismatch")
					return
				}
			}
		}()
	}
	wg.Wait()
}
