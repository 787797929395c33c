package schema

type CanPrimaryKey interface {
	PrimaryKey() int64
	SetPrimaryKey(id int64)
}

type CanIndexes interface {
	Indexes() map[string]IndexType
}

type IndexType int

const (
	NormalIndex IndexType = iota
	UniqueIndex
	MultiEntryIndex
)

// Index declares a secondary index of a store.
type Index struct {
	Name string
	// KeyPath of the indexed value; more than one path makes an array key.
	KeyPath    KeyPaths
	Unique     bool
	MultiEntry bool
}

func (i Index) String() string {
	return i.Name + "(" + i.KeyPath.String() + ")"
}
