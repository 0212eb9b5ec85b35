package value

// Dictionary is a value→value mapping with structural equality of keys.
// Because Value is not comparable with Go's built-in map (arrays/lists
// carry pointers that must be compared structurally, not by identity),
// the dictionary keeps an ordered slice of entries and does linear
// lookup via value.Equal. Dictionaries in PhySL programs are small
// (configuration-shaped), so this trades a little lookup speed for
// correct structural-equality semantics.
type Dictionary struct {
	keys   []Value
	values []Value
}

// NewDictionary returns an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{}
}

// Get returns the value bound to key, if present.
func (d *Dictionary) Get(key Value) (Value, bool) {
	for i, k := range d.keys {
		if Equal(k, key) {
			return d.values[i], true
		}
	}
	return Nil(), false
}

// Set binds key to val, replacing any existing binding for an
// equal key.
func (d *Dictionary) Set(key, val Value) {
	for i, k := range d.keys {
		if Equal(k, key) {
			d.values[i] = val
			return
		}
	}
	d.keys = append(d.keys, key)
	d.values = append(d.values, val)
}

// Delete removes the binding for key, if present.
func (d *Dictionary) Delete(key Value) {
	for i, k := range d.keys {
		if Equal(k, key) {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			d.values = append(d.values[:i], d.values[i+1:]...)
			return
		}
	}
}

// Len returns the number of entries.
func (d *Dictionary) Len() int { return len(d.keys) }

// Keys returns the dictionary's keys in insertion order.
func (d *Dictionary) Keys() []Value { return d.keys }

// Equal reports structural equality regardless of insertion order.
func (d *Dictionary) Equal(other *Dictionary) bool {
	if d == other {
		return true
	}
	if d == nil || other == nil {
		return false
	}
	if d.Len() != other.Len() {
		return false
	}
	for i, k := range d.keys {
		ov, ok := other.Get(k)
		if !ok || !Equal(d.values[i], ov) {
			return false
		}
	}
	return true
}
