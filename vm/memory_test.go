package vm

import (
	"bytes"
	"testing"

	"github.com/holiman/uint256"
)

func TestMemorySetWordAndWord(t *testing.T) {
	m := NewMemory()
	m.Resize(32)

	v := uint256.NewInt(0xDEADBEEF)
	m.SetWord(0, v)

	var out uint256.Int
	m.Word(0, &out)
	if !out.Eq(v) {
		t.Fatalf("Word() = %d, want %d", out.Uint64(), v.Uint64())
	}
}

func TestMemoryResizeIsMonotonic(t *testing.T) {
	m := NewMemory()
	m.Resize(64)
	if m.Len() != 64 {
		t.Fatalf("Len() = %d, want 64", m.Len())
	}
	m.Resize(32) // shrink request must be a no-op
	if m.Len() != 64 {
		t.Fatalf("Len() after smaller Resize = %d, want 64 (memory never shrinks)", m.Len())
	}
}

func TestMemoryGetCopyDoesNotAliasStore(t *testing.T) {
	m := NewMemory()
	m.Resize(32)
	m.Set(0, []byte{1, 2, 3, 4})

	cp := m.GetCopy(0, 4)
	cp[0] = 0xFF
	if m.store[0] == 0xFF {
		t.Fatalf("GetCopy aliased the backing store")
	}
}

func TestMemoryCopyWithinOverlap(t *testing.T) {
	m := NewMemory()
	m.Resize(64)
	m.Set(0, []byte{1, 2, 3, 4, 5})

	m.CopyWithin(2, 0, 5) // overlapping forward copy, like MCOPY
	want := []byte{1, 2, 1, 2, 3, 4, 5}
	if !bytes.Equal(m.store[:7], want) {
		t.Fatalf("CopyWithin overlap result = %v, want %v", m.store[:7], want)
	}
}

func TestToWordSize(t *testing.T) {
	cases := []struct{ in, want uint64 }{
		{0, 0}, {1, 1}, {32, 1}, {33, 2}, {64, 2}, {65, 3},
	}
	for _, c := range cases {
		if got := toWordSize(c.in); got != c.want {
			t.Fatalf("toWordSize(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
