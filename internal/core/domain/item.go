package domain

// Item is one installed software package as reported by an inventory source.
// Its identity inside a batch is its position in the input list.
type Item struct {
	Name             string `json:"name"              db:"name"`
	InstalledVersion string `json:"installed_version" db:"version"`
}

// Dedupe drops repeated (name, version) pairs, keeping the first occurrence.
func Dedupe(items []Item) []Item {
	seen := make(map[Item]struct{}, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
