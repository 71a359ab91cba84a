package element

// NameKey is the tag key names are read from. Matching is case-sensitive.
const NameKey = "name"

// PointWayName returns the first name of a Point or Way. Every other variant
// is not applicable.
func PointWayName(r Record) (string, bool) {
	switch rec := r.(type) {
	case Point:
		return rec.Tags.First(NameKey)
	case *Point:
		return rec.Tags.First(NameKey)
	case Way:
		return rec.Tags.First(NameKey)
	case *Way:
		return rec.Tags.First(NameKey)
	default:
		return "", false
	}
}

// DenseNames returns the first name of every entry of a DensePointBatch that
// has one. Every other variant is not applicable.
func DenseNames(r Record) []string {
	var entries []DenseEntry
	switch rec := r.(type) {
	case DensePointBatch:
		entries = rec.Entries
	case *DensePointBatch:
		entries = rec.Entries
	default:
		return nil
	}
	var names []string
	for _, entry := range entries {
		if name, ok := entry.Tags.First(NameKey); ok {
			names = append(names, name)
		}
	}
	return names
}

// RelationName returns the first name of a Relation. Every other variant is
// not applicable.
func RelationName(r Record) (string, bool) {
	switch rec := r.(type) {
	case Relation:
		return rec.Tags.First(NameKey)
	case *Relation:
		return rec.Tags.First(NameKey)
	default:
		return "", false
	}
}

// Names runs every extractor against r and returns the names found, in
// original case.
func Names(r Record) []string {
	var names []string
	if name, ok := PointWayName(r); ok {
		names = append(names, name)
	}
	names = append(names, DenseNames(r)...)
	if name, ok := RelationName(r); ok {
		names = append(names, name)
	}
	return names
}
