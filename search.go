package kdbx

// FindGroups walks the group tree rooted at gs, returning every group for
// which match returns true.
func FindGroups(gs []Group, match func(*Group) bool) []*Group {
	var found []*Group
	var walk func([]Group)
	walk = func(groups []Group) {
		for i := range groups {
			if match(&groups[i]) {
				found = append(found, &groups[i])
			}
			walk(groups[i].Groups)
		}
	}
	walk(gs)
	return found
}

// FindEntries walks the group tree rooted at gs, returning every entry
// (including ones nested in subgroups) for which match returns true.
func FindEntries(gs []Group, match func(*Entry) bool) []*Entry {
	var found []*Entry
	var walk func([]Group)
	walk = func(groups []Group) {
		for i := range groups {
			for j := range groups[i].Entries {
				if match(&groups[i].Entries[j]) {
					found = append(found, &groups[i].Entries[j])
				}
			}
			walk(groups[i].Groups)
		}
	}
	walk(gs)
	return found
}

// FindEntryByTitle returns the first entry anywhere in gs whose Title field
// equals title, or nil.
func FindEntryByTitle(gs []Group, title string) *Entry {
	results := FindEntries(gs, func(e *Entry) bool {
		return e.GetTitle() == title
	})
	if len(results) == 0 {
		return nil
	}
	return results[0]
}

// FindGroupByName returns the first group anywhere in gs named name, or nil.
func FindGroupByName(gs []Group, name string) *Group {
	results := FindGroups(gs, func(g *Group) bool {
		return g.Name == name
	})
	if len(results) == 0 {
		return nil
	}
	return results[0]
}
