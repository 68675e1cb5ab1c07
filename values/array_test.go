package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedMapInsertionOrder(t *testing.T) {
	m := NewOrderedMap()
	m.Set(NewKey("x"), Int(1))
	m.Set(NewKey("y"), Int(2))
	m.Set(IntKey(10), Int(3))

	var keys []Key
	m.Each(func(k Key, v *Value) bool {
		keys = append(keys, k)
		return true
	})
	require.Len(t, keys, 3)
	assert.Equal(t, NewKey("x"), keys[0])
	assert.Equal(t, NewKey("y"), keys[1])
	assert.Equal(t, IntKey(10), keys[2])
}

func TestOrderedMapAutoIndexIsMaxIntKeyPlusOne(t *testing.T) {
	m := NewOrderedMap()
	m.Set(IntKey(5), Int(1))
	k := m.Append(Int(2))
	assert.Equal(t, IntKey(6), k)

	m2 := NewOrderedMap()
	k2 := m2.Append(String("first"))
	assert.Equal(t, IntKey(0), k2)
}

func TestOrderedMapSetOverwritePreservesPosition(t *testing.T) {
	m := NewOrderedMap()
	m.Set(NewKey("a"), Int(1))
	m.Set(NewKey("b"), Int(2))
	m.Set(NewKey("a"), Int(99))

	var keys []Key
	m.Each(func(k Key, v *Value) bool {
		keys = append(keys, k)
		return true
	})
	assert.Equal(t, []Key{NewKey("a"), NewKey("b")}, keys)
	v, ok := m.Get(NewKey("a"))
	require.True(t, ok)
	assert.Equal(t, int64(99), v.ToInt())
}

func TestOrderedMapCursorAdvancesPastDeletedCurrent(t *testing.T) {
	m := NewOrderedMap()
	m.Set(NewKey("a"), Int(1))
	m.Set(NewKey("b"), Int(2))
	m.Set(NewKey("c"), Int(3))

	m.Reset()
	k, _ := m.CurrentKey()
	require.Equal(t, NewKey("a"), k)

	m.cur = m.index[NewKey("b")]
	m.Delete(NewKey("b"))

	require.True(t, m.Valid())
	k, ok := m.CurrentKey()
	require.True(t, ok)
	assert.Equal(t, NewKey("c"), k)
}

func TestOrderedMapDeleteLastEntryExhaustsCursor(t *testing.T) {
	m := NewOrderedMap()
	m.Set(NewKey("a"), Int(1))
	m.cur = m.index[NewKey("a")]
	m.Delete(NewKey("a"))
	assert.False(t, m.Valid())
}

func TestOrderedMapDuplicateIsDeepCopy(t *testing.T) {
	m := NewOrderedMap()
	m.Set(NewKey("a"), Int(1))
	dup := m.Duplicate()
	dup.Set(NewKey("a"), Int(2))

	orig, _ := m.Get(NewKey("a"))
	copied, _ := dup.Get(NewKey("a"))
	assert.Equal(t, int64(1), orig.ToInt())
	assert.Equal(t, int64(2), copied.ToInt())
}

func TestCanonicalIntKeyRejectsLeadingZero(t *testing.T) {
	k1 := NewKey("01")
	assert.False(t, k1.IsInt)
	assert.Equal(t, "01", k1.S)

	k2 := NewKey("0")
	assert.True(t, k2.IsInt)
	assert.Equal(t, int64(0), k2.I)

	k3 := NewKey("-0")
	assert.False(t, k3.IsInt)

	k4 := NewKey("-5")
	assert.True(t, k4.IsInt)
	assert.Equal(t, int64(-5), k4.I)

	k5 := NewKey("5")
	assert.True(t, k5.IsInt)
}

func TestOrderedMapStrictAndLooseEqual(t *testing.T) {
	a := NewOrderedMap()
	a.Set(NewKey("x"), Int(1))
	a.Set(NewKey("y"), String("2"))

	b := NewOrderedMap()
	b.Set(NewKey("x"), Int(1))
	b.Set(NewKey("y"), String("2"))

	assert.True(t, a.StrictEqual(b))
	assert.True(t, a.LooseEqual(b))

	c := NewOrderedMap()
	c.Set(NewKey("y"), String("2"))
	c.Set(NewKey("x"), Int(1))
	assert.False(t, a.StrictEqual(c), "key order matters for ===")
}

func TestUnionKeepsLeftAndAddsMissingRightKeys(t *testing.T) {
	left := NewOrderedMap()
	left.Set(NewKey("a"), Int(1))
	right := NewOrderedMap()
	right.Set(NewKey("a"), Int(99))
	right.Set(NewKey("b"), Int(2))

	u := Union(left, right)
	va, _ := u.Get(NewKey("a"))
	vb, _ := u.Get(NewKey("b"))
	assert.Equal(t, int64(1), va.ToInt())
	assert.Equal(t, int64(2), vb.ToInt())
}
