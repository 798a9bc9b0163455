package membership

// AddID appends id unless it is already present. The input slice is not modified.
func AddID(ids []string, id string) []string {
	if Contains(ids, id) {
		return ids
	}
	out := make([]string, len(ids), len(ids)+1)
	copy(out, ids)
	return append(out, id)
}

// RemoveID drops every occurrence of id. Removing an absent id is a no-op.
func RemoveID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// MergeIDs is the additive union used for project members: existing order is
// kept, new ids are appended in first-seen order, duplicates collapse.
func MergeIDs(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, id := range list {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func Contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
