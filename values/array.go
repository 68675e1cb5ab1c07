package values

// Key is a hashmap key: either an int64 index or a byte-string key.
// String keys that parse as canonical decimal integers are normalized to
// int64 keys by NewKey.
type Key struct {
	IsInt bool
	I     int64
	S     string
}

func IntKey(i int64) Key { return Key{IsInt: true, I: i} }

// NewKey normalizes a PHP-style array key: integer-looking strings
// (no leading zero unless "0" itself, optional leading '-', digits only,
// within int64 range) become integer keys; everything else is a string
// key.
func NewKey(s string) Key {
	if s == "" {
		return Key{S: s}
	}
	i, ok := canonicalInt(s)
	if ok {
		return Key{IsInt: true, I: i}
	}
	return Key{S: s}
}

func canonicalInt(s string) (int64, bool) {
	neg := false
	i := 0
	if s[0] == '-' {
		neg = true
		i = 1
	}
	if i >= len(s) {
		return 0, false
	}
	if s[i] == '0' && len(s) > i+1 {
		return 0, false // leading zero disqualifies, except "0" and "-0" (PHP also rejects "-0")
	}
	if neg && s[i] == '0' {
		return 0, false
	}
	var n int64
	for ; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}

// mapEntry is one ordered-map node: a doubly linked list for insertion
// order, plus membership in the index map for O(1) lookup.
type mapEntry struct {
	key        Key
	val        *Value
	prev, next *mapEntry
}

// OrderedMap is the language's "array": simultaneously a list and an
// associative map, iterated in insertion order, with a live cursor for
// foreach/current()/next().
type OrderedMap struct {
	index     map[Key]*mapEntry
	first, last *mapEntry
	cur       *mapEntry
	count     int
	nextIdx   int64
	refs      int32
}

func NewOrderedMap() *OrderedMap {
	return &OrderedMap{index: make(map[Key]*mapEntry), refs: 1}
}

func (m *OrderedMap) Retain() { m.refs++ }
func (m *OrderedMap) Release() {
	m.refs--
}

func (m *OrderedMap) Len() int { return m.count }

// Set inserts or overwrites the entry for key, appending at the end on
// insert and preserving position on overwrite.
func (m *OrderedMap) Set(k Key, v *Value) {
	if e, ok := m.index[k]; ok {
		e.val = v
		return
	}
	e := &mapEntry{key: k, val: v}
	if m.last == nil {
		m.first, m.last = e, e
	} else {
		e.prev = m.last
		m.last.next = e
		m.last = e
	}
	m.index[k] = e
	m.count++
	if k.IsInt && k.I >= m.nextIdx {
		m.nextIdx = k.I + 1
	}
}

// Append auto-indexes: the new key is max(existing_int_keys)+1, or 0 if
// none exist.
func (m *OrderedMap) Append(v *Value) Key {
	k := IntKey(m.nextIdx)
	m.Set(k, v)
	return k
}

func (m *OrderedMap) Get(k Key) (*Value, bool) {
	e, ok := m.index[k]
	if !ok {
		return nil, false
	}
	return e.val, true
}

// Delete removes the entry for key. If the cursor currently points at
// the deleted entry, it advances to the following entry (or becomes
// exhausted).
func (m *OrderedMap) Delete(k Key) bool {
	e, ok := m.index[k]
	if !ok {
		return false
	}
	if m.cur == e {
		m.cur = e.next
	}
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		m.first = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		m.last = e.prev
	}
	delete(m.index, k)
	m.count--
	return true
}

// --- cursor protocol (reset/current/key/next/valid) ---

func (m *OrderedMap) Reset()        { m.cur = m.first }
func (m *OrderedMap) End()          { m.cur = m.last }
func (m *OrderedMap) Valid() bool   { return m.cur != nil }
func (m *OrderedMap) CurrentKey() (Key, bool) {
	if m.cur == nil {
		return Key{}, false
	}
	return m.cur.key, true
}
func (m *OrderedMap) CurrentValue() (*Value, bool) {
	if m.cur == nil {
		return nil, false
	}
	return m.cur.val, true
}
func (m *OrderedMap) Next() {
	if m.cur != nil {
		m.cur = m.cur.next
	}
}
func (m *OrderedMap) Prev() {
	if m.cur != nil {
		m.cur = m.cur.prev
	}
}

// Each calls fn for every entry in insertion order. fn must not mutate
// the map.
func (m *OrderedMap) Each(fn func(k Key, v *Value) bool) {
	for e := m.first; e != nil; e = e.next {
		if !fn(e.key, e.val) {
			return
		}
	}
}

// Duplicate deep-copies the map. Assignment always deep-copies a map
// that is not shared through an explicit reference; copy-on-write is
// not used.
func (m *OrderedMap) Duplicate() *OrderedMap {
	out := NewOrderedMap()
	m.Each(func(k Key, v *Value) bool {
		out.Set(k, v.Clone())
		return true
	})
	out.nextIdx = m.nextIdx
	return out
}

func (m *OrderedMap) StrictEqual(o *OrderedMap) bool {
	if m.count != o.count {
		return false
	}
	oe := o.first
	for e := m.first; e != nil; e, oe = e.next, oe.next {
		if oe == nil || e.key != oe.key || !StrictEqual(e.val, oe.val) {
			return false
		}
	}
	return true
}

func (m *OrderedMap) LooseEqual(o *OrderedMap) bool {
	if m.count != o.count {
		return false
	}
	eq := true
	m.Each(func(k Key, v *Value) bool {
		ov, ok := o.Get(k)
		if !ok || !LooseEqual(v, ov) {
			eq = false
			return false
		}
		return true
	})
	return eq
}

// Union implements `+` over two arrays: entries of the right operand
// are added only for keys missing from the left.
func Union(left, right *OrderedMap) *OrderedMap {
	out := left.Duplicate()
	right.Each(func(k Key, v *Value) bool {
		if _, exists := out.Get(k); !exists {
			out.Set(k, v.Clone())
		}
		return true
	})
	return out
}
