package schema

var _ CanPrimaryKey = &PKey{}

// PKey gives a model an auto-increment "id" key.
type PKey struct {
	ID int64 `json:"id,omitempty"`
}

func (p PKey) PrimaryKey() int64 {
	return p.ID
}

func (p *PKey) SetPrimaryKey(id int64) {
	p.ID = id
}
