package store

import (
	"errors"
	"strconv"
	"time"
)

// Get returns a key's value if present and not expired. An
// observed-expired key is deleted as a side effect (spec §4.B).
func (e *Engine) Get(key string) (string, bool) {
	v, ok := e.strings[key]
	if !ok {
		return "", false
	}
	if v.expired(time.Now()) {
		delete(e.strings, key)
		return "", false
	}
	return v.value, true
}

// Set stores value unconditionally. expiresAt nil means immortal.
func (e *Engine) Set(key, value string, expiresAt *time.Time) {
	e.strings[key] = stringEntry{value: value, expiresAt: expiresAt}
}

// Delete removes key from the string store. Not reachable from any
// recognized command (there is no DEL in spec §4.G's command list);
// lazy and periodic expiry delete from the map directly and do not
// call it.
func (e *Engine) Delete(key string) {
	delete(e.strings, key)
}

// Incr increments key as a signed 64-bit integer, initializing absent
// keys to 0 first. Per spec §4.B this always clears any existing
// expiry, matching the teacher's SET-style overwrite semantics.
func (e *Engine) Incr(key string) (int64, error) {
	var x int64

	if v, ok := e.strings[key]; ok && !v.expired(time.Now()) {
		parsed, err := strconv.ParseInt(v.value, 10, 64)
		if err != nil {
			return 0, errors.New("ERR value is not an integer or out of range")
		}
		x = parsed
	}

	x++
	e.strings[key] = stringEntry{value: strconv.FormatInt(x, 10)}
	return x, nil
}
