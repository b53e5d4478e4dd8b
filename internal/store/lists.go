package store

import "errors"

// LPush prepends values to key's list in the order given, so
// LPush("k", []string{"a","b","c"}) leaves the list head = c, b, a.
// Returns the new length. Unlike RPush, LPush does not wake BLPOP
// waiters (spec §4.C design note, see §9).
func (e *Engine) LPush(key string, values []string) int {
	list := e.lists[key]
	for _, v := range values {
		list = append([]string{v}, list...)
	}
	e.lists[key] = list
	return len(list)
}

// RPush appends values to key's list left-to-right, returns the new
// length, and drains any BLPOP waiters on key.
func (e *Engine) RPush(key string, values []string) int {
	list := append(e.lists[key], values...)
	e.lists[key] = list

	e.coordinator.DrainList(key, func() (string, bool) {
		cur := e.lists[key]
		if len(cur) == 0 {
			return "", false
		}
		head := cur[0]
		e.lists[key] = cur[1:]
		return head, true
	})

	return len(e.lists[key])
}

// LPop removes and returns the head element, if any.
func (e *Engine) LPop(key string) (string, bool) {
	list := e.lists[key]
	if len(list) == 0 {
		return "", false
	}
	head := list[0]
	e.lists[key] = list[1:]
	return head, true
}

// LPopCount removes and returns up to min(count, len) elements from
// the head. A negative count is a range error.
func (e *Engine) LPopCount(key string, count int) ([]string, error) {
	if count < 0 {
		return nil, errors.New("ERR value is out of range, must be positive")
	}

	list := e.lists[key]
	if count > len(list) {
		count = len(list)
	}

	popped := make([]string, count)
	copy(popped, list[:count])
	e.lists[key] = list[count:]
	return popped, nil
}

// LRange returns elements between start and end inclusive, using Redis
// index-clamping semantics: negative indices count from the end,
// start clamps up to 0, end clamps down to len-1, and start > end
// yields an empty slice.
func (e *Engine) LRange(key string, start, end int) []string {
	list := e.lists[key]
	n := len(list)
	if n == 0 {
		return []string{}
	}

	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	if start < 0 {
		start = 0
	}
	if end > n-1 {
		end = n - 1
	}
	if start > end || start >= n {
		return []string{}
	}

	out := make([]string, end-start+1)
	copy(out, list[start:end+1])
	return out
}

// LLen returns the length of key's list, 0 if absent.
func (e *Engine) LLen(key string) int {
	return len(e.lists[key])
}
