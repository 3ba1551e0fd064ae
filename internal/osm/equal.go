package osm

// Equal reports whether a and b are structurally equal per the
// conflict-detection definition: meta fields (timestamp, uid, user,
// changeset, version) are ignored; visibility, tags, node positions,
// way node sequences, and relation member sequences must match. A node
// moved on both sides is a real divergence of map content, unlike the
// meta fields that drift on every touch.
func Equal(a, b Element) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Visible() != b.Visible() {
		return false
	}
	if !tagsEqual(a.Tags(), b.Tags()) {
		return false
	}
	switch a.Kind {
	case KindNode:
		return a.Node.Lat == b.Node.Lat && a.Node.Lon == b.Node.Lon
	case KindWay:
		return int64SliceEqual(a.Way.Nodes, b.Way.Nodes)
	case KindRelation:
		return membersEqual(a.Relation.Members, b.Relation.Members)
	}
	return false
}

// tagsEqual compares tags as unordered key->value mappings.
func tagsEqual(a, b []Tag) bool {
	if len(a) != len(b) {
		return false
	}
	am := make(map[string]string, len(a))
	for _, t := range a {
		am[t.Key] = t.Value
	}
	bm := make(map[string]string, len(b))
	for _, t := range b {
		bm[t.Key] = t.Value
	}
	if len(am) != len(bm) {
		return false
	}
	for k, v := range am {
		if bv, ok := bm[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func int64SliceEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// membersEqual compares relation members as ordered sequences of
// (ref, role, kind).
func membersEqual(a, b []Member) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Ref != b[i].Ref || a[i].Role != b[i].Role || a[i].Type != b[i].Type {
			return false
		}
	}
	return true
}
