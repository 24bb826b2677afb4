package tags

import "sort"

// TagsMap holds at most one tag per id, always the strongest merged so far.
type TagsMap map[string]Tag

// FromTags reduces a list of detections with strongest-wins.
func FromTags(list ...Tag) TagsMap {
	m := make(TagsMap, len(list))
	for _, t := range list {
		m.Add(t)
	}
	return m
}

// Merge flattens maps into a single strongest-wins map.
func Merge(maps ...TagsMap) TagsMap {
	out := make(TagsMap)
	for _, m := range maps {
		for _, t := range m {
			out.Add(t)
		}
	}
	return out
}

// Add keeps the stronger of the existing entry and t.
func (m TagsMap) Add(t Tag) {
	old, ok := m[t.ID]
	if !ok || t.Stronger(old) {
		m[t.ID] = t
	}
}

func (m TagsMap) Clone() TagsMap {
	out := make(TagsMap, len(m))
	for id, t := range m {
		out[id] = t
	}
	return out
}

// Sorted returns the tags strongest first, then by id.
func (m TagsMap) Sorted() []Tag {
	out := make([]Tag, 0, len(m))
	for _, t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		return out[i].ID < out[j].ID
	})
	return out
}
