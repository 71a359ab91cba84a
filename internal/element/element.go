// Package element models the records an OSM extract is made of. Record is a
// closed set of variants; code outside this package cannot add new ones.
package element

// Kind identifies a Record variant.
type Kind uint8

const (
	KindPoint Kind = iota + 1
	KindDensePointBatch
	KindWay
	KindRelation
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindDensePointBatch:
		return "dense_point_batch"
	case KindWay:
		return "way"
	case KindRelation:
		return "relation"
	default:
		return "unknown"
	}
}

// Tag is a single key/value pair.
type Tag struct {
	Key   string
	Value string
}

// Tags keeps the order the source delivered them in.
type Tags []Tag

// First returns the value of the first tag with exactly the given key.
func (t Tags) First(key string) (string, bool) {
	for _, tag := range t {
		if tag.Key == key {
			return tag.Value, true
		}
	}
	return "", false
}

// Coord is a WGS84 position in degrees.
type Coord struct {
	Lat float64
	Lon float64
}

// Record is one element of the extract.
type Record interface {
	Kind() Kind
	sealed()
}

type Point struct {
	ID    int64
	Coord Coord
	Tags  Tags
}

// DenseEntry is one node inside a DensePointBatch.
type DenseEntry struct {
	ID    int64
	Coord Coord
	Tags  Tags
}

type DensePointBatch struct {
	Entries []DenseEntry
}

type Way struct {
	ID     int64
	Coords []Coord
	Tags   Tags
}

type Relation struct {
	ID   int64
	Tags Tags
}

func (Point) Kind() Kind           { return KindPoint }
func (DensePointBatch) Kind() Kind { return KindDensePointBatch }
func (Way) Kind() Kind             { return KindWay }
func (Relation) Kind() Kind        { return KindRelation }

func (Point) sealed()           {}
func (DensePointBatch) sealed() {}
func (Way) sealed()             {}
func (Relation) sealed()        {}
