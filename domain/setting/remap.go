package setting

import (
	"sort"
	"strings"
)

// Remap matches flattened update paths against the registered setting keys
// of a module. Paths rooted at a reserved protocol segment pass through
// unchanged. Every other path is matched by progressively stripping leading
// segments until the remaining suffix addresses a registered key; the first
// match wins and the stripped prefix is removed from every sibling path
// sharing it. Paths that match no registered key are dropped: stale or
// extra form fields are tolerated, never an error.
func Remap(flat map[string]any, registered []Key) map[string]any {
	paths := make([]string, 0, len(flat))
	for p := range flat {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := make(map[string]any, len(flat))
	done := make(map[string]bool, len(flat))

	for _, path := range paths {
		if done[path] {
			continue
		}
		done[path] = true

		if IsReservedRoot(path) {
			out[path] = flat[path]
			continue
		}

		prefix, suffix, ok := stripToMatch(path, registered)
		if !ok {
			continue // unregistered, dropped
		}
		out[suffix] = flat[path]
		if prefix == "" {
			continue
		}

		// Remap siblings under the same matched prefix in one go.
		for _, sib := range paths {
			if done[sib] || !strings.HasPrefix(sib, prefix+".") {
				continue
			}
			done[sib] = true
			stripped := strings.TrimPrefix(sib, prefix+".")
			if matchesKey(stripped, registered) {
				out[stripped] = flat[sib]
			}
		}
	}
	return out
}

// stripToMatch removes leading segments from path one at a time until the
// remainder addresses a registered key. It returns the stripped prefix and
// the matching remainder.
func stripToMatch(path string, registered []Key) (prefix, suffix string, ok bool) {
	segs := strings.Split(path, ".")
	for i := 0; i < len(segs); i++ {
		suffix = strings.Join(segs[i:], ".")
		if matchesKey(suffix, registered) {
			return strings.Join(segs[:i], "."), suffix, true
		}
	}
	return "", "", false
}

// matchesKey reports whether a dotted path addresses one of the registered
// keys, either exactly or as a descendant of one.
func matchesKey(path string, registered []Key) bool {
	for _, k := range registered {
		kp := k.Path()
		if path == kp || strings.HasPrefix(path, kp+".") {
			return true
		}
	}
	return false
}
