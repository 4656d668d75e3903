package vdf

import "strconv"

// Find walks keys starting at n. Every key but the last must name a Node;
// the last one names the returned value. A missing key or a non-Node
// intermediate value yields false.
func (n Node) Find(keys ...string) (Value, bool) {
	if len(keys) == 0 {
		return nil, false
	}
	cur := n
	for i, key := range keys {
		v, ok := cur[key]
		if !ok {
			return nil, false
		}
		if i == len(keys)-1 {
			return v, true
		}
		next, ok := v.(Node)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// Node returns the subtree at keys.
func (n Node) Node(keys ...string) (Node, bool) {
	v, ok := n.Find(keys...)
	if !ok {
		return nil, false
	}
	child, ok := v.(Node)
	return child, ok
}

// Str returns the string at keys. Both narrow and wide strings match.
func (n Node) Str(keys ...string) (string, bool) {
	v, ok := n.Find(keys...)
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case String:
		return string(s), true
	case WideString:
		return string(s), true
	}
	return "", false
}

// Int32 returns the Int32 leaf at keys.
func (n Node) Int32(keys ...string) (int32, bool) {
	v, ok := n.Find(keys...)
	if !ok {
		return 0, false
	}
	i, ok := v.(Int32)
	return int32(i), ok
}

// Int returns the integer at keys. Any integer variant matches, and so
// does a string holding a decimal number: Steam stores several numeric
// fields either way depending on the age of the record.
func (n Node) Int(keys ...string) (int64, bool) {
	v, ok := n.Find(keys...)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case Int32:
		return int64(x), true
	case Pointer:
		return int64(x), true
	case Color:
		return int64(x), true
	case Int64:
		return int64(x), true
	case Uint64:
		return int64(x), true
	case String:
		i, err := strconv.ParseInt(string(x), 10, 64)
		return i, err == nil
	case WideString:
		i, err := strconv.ParseInt(string(x), 10, 64)
		return i, err == nil
	}
	return 0, false
}
