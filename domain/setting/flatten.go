package setting

import "strings"

// Flatten converts a nested tree into dot-joined leaf paths. Only
// map[string]any values are descended into; anything else, including an
// empty map, is a leaf. Flatten and Nest are lossless inverses for trees
// whose keys contain no dots.
func Flatten(tree map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", tree)
	return out
}

func flattenInto(out map[string]any, prefix string, tree map[string]any) {
	for k, v := range tree {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok && len(sub) > 0 {
			flattenInto(out, path, sub)
			continue
		}
		out[path] = v
	}
}

// Nest rebuilds a nested tree from dot-joined leaf paths. A leaf written
// under a path that is also a prefix of a deeper path loses to the deeper
// structure; callers are expected to pass well-formed flat maps.
func Nest(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for path, v := range flat {
		segs := strings.Split(path, ".")
		node := out
		for _, seg := range segs[:len(segs)-1] {
			next, ok := node[seg].(map[string]any)
			if !ok {
				next = make(map[string]any)
				node[seg] = next
			}
			node = next
		}
		node[segs[len(segs)-1]] = v
	}
	return out
}
