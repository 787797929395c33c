package schema_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/octohelm/moviedb/pkg/schema"
	. "github.com/octohelm/x/testing"
)

func TestKeyPath(t *testing.T) {
	t.Run("parse dotted with array segments", func(t *testing.T) {
		kp, err := schema.ParseKeyPath("a.b[1].c")
		Expect(t, err, Be[error](nil))
		Expect(t, kp, Equal(schema.KeyPath{"a", "b", int64(1), "c"}))
		Expect(t, kp.String(), Be("a.b[1].c"))
		Expect(t, kp.Selector(), Be("a.b.1.c"))
	})

	t.Run("selector escapes special chars", func(t *testing.T) {
		Expect(t, schema.KeyPath{"a*b"}.Selector(), Be(`a\*b`))
	})

	t.Run("invalid index", func(t *testing.T) {
		_, err := schema.ParseKeyPath("a[x]")
		Expect(t, err, Not(Be[error](nil)))
	})

	t.Run("compound", func(t *testing.T) {
		kps, err := schema.ParseKeyPaths("rating", "title")
		Expect(t, err, Be[error](nil))
		Expect(t, kps.IsCompound(), Be(true))
		Expect(t, kps.String(), Be("rating,title"))
		Expect(t, kps.IsEqual(schema.KeyPaths{{"rating"}, {"title"}}), Be(true))
	})
}

func TestValidate(t *testing.T) {
	valid := func() schema.Database {
		return schema.Database{
			Name:    "movie-rating-machine",
			Version: 1,
			Stores: []schema.Store{
				{
					Name:          "movies",
					KeyPath:       schema.KeyPath{"id"},
					AutoIncrement: true,
					Indexes: []schema.Index{
						{Name: "by_title", KeyPath: schema.KeyPaths{{"title"}}},
					},
				},
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		Expect(t, valid().Validate(), Be[error](nil))
	})

	cases := map[string]func(d *schema.Database){
		"empty name": func(d *schema.Database) {
			d.Name = ""
		},
		"zero version": func(d *schema.Database) {
			d.Version = 0
		},
		"duplicate store": func(d *schema.Database) {
			d.Stores = append(d.Stores, d.Stores[0])
		},
		"duplicate index": func(d *schema.Database) {
			d.Stores[0].Indexes = append(d.Stores[0].Indexes, d.Stores[0].Indexes[0])
		},
		"index without key path": func(d *schema.Database) {
			d.Stores[0].Indexes[0].KeyPath = nil
		},
		"store key path segment with dot": func(d *schema.Database) {
			d.Stores[0].KeyPath = schema.KeyPath{"a.b"}
		},
		"index key path segment with bracket": func(d *schema.Database) {
			d.Stores[0].Indexes[0].KeyPath = schema.KeyPaths{{"a]"}}
		},
		"compound multi-entry": func(d *schema.Database) {
			d.Stores[0].Indexes[0].KeyPath = schema.KeyPaths{{"a"}, {"b"}}
			d.Stores[0].Indexes[0].MultiEntry = true
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := valid()
			mutate(&d)
			Expect(t, d.Validate(), Not(Be[error](nil)))
		})
	}

	t.Run("valid key paths survive parsing back", func(t *testing.T) {
		for _, kp := range []schema.KeyPath{{"a"}, {"a", "b"}, {"tags", int64(0)}, {"a", int64(2), "b"}} {
			d := valid()
			d.Stores[0].Indexes[0].KeyPath = schema.KeyPaths{kp}
			Expect(t, d.Validate(), Be[error](nil))

			parsed, err := schema.ParseKeyPath(kp.String())
			Expect(t, err, Be[error](nil))
			Expect(t, parsed.IsEqual(kp), Be(true))
		}
	})
}

type Movie struct {
	schema.PKey
	Title  string `json:"title"`
	Rating int    `json:"rating"`
}

func (Movie) TableName() string {
	return "movies"
}

func (Movie) Indexes() map[string]schema.IndexType {
	return map[string]schema.IndexType{
		"title":        schema.NormalIndex,
		"rating,title": schema.UniqueIndex,
	}
}

func TestStoreFor(t *testing.T) {
	s, err := schema.StoreFor(&Movie{})
	Expect(t, err, Be[error](nil))

	Expect(t, s.Name, Be("movies"))
	Expect(t, s.KeyPath, Equal(schema.KeyPath{"id"}))
	Expect(t, s.AutoIncrement, Be(true))
	Expect(t, len(s.Indexes), Be(2))
	Expect(t, s.Indexes[0].Name, Be("by_rating_title"))
	Expect(t, s.Indexes[0].Unique, Be(true))
	Expect(t, s.Indexes[0].KeyPath.IsCompound(), Be(true))
	Expect(t, s.Indexes[1].Name, Be("by_title"))

	_, err = schema.StoreFor(1)
	Expect(t, err, Not(Be[error](nil)))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"schema.toml": `
name = "movie-rating-machine"
version = 2

[[stores]]
name = "movies"
keyPath = "id"
autoIncrement = true

[[stores.indexes]]
name = "by_title"
keyPath = "title"

[[stores.indexes]]
name = "by_rating_title"
keyPath = ["rating", "title"]
unique = true
`,
		"schema.yaml": `
name: movie-rating-machine
version: 2
stores:
  - name: movies
    keyPath: id
    autoIncrement: true
    indexes:
      - name: by_title
        keyPath: title
      - name: by_rating_title
        keyPath: [rating, title]
        unique: true
`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			filename := filepath.Join(dir, name)
			Expect(t, os.WriteFile(filename, []byte(content), 0o644), Be[error](nil))

			d, err := schema.LoadFile(filename)
			Expect(t, err, Be[error](nil))
			Expect(t, d.Name, Be("movie-rating-machine"))
			Expect(t, d.Version, Be(uint64(2)))

			s, ok := d.Store("movies")
			Expect(t, ok, Be(true))
			Expect(t, s.AutoIncrement, Be(true))

			idx, ok := s.Index("by_rating_title")
			Expect(t, ok, Be(true))
			Expect(t, idx.Unique, Be(true))
			Expect(t, idx.KeyPath, Equal(schema.KeyPaths{{"rating"}, {"title"}}))

			t.Run("marshal back", func(t *testing.T) {
				data, err := schema.Marshal(filepath.Ext(name), d)
				Expect(t, err, Be[error](nil))

				again, err := schema.Unmarshal(filepath.Ext(name), data)
				Expect(t, err, Be[error](nil))
				Expect(t, again, Equal(d))
			})
		})
	}

	t.Run("unsupported format", func(t *testing.T) {
		_, err := schema.Unmarshal(".ini", nil)
		Expect(t, err, Not(Be[error](nil)))
	})
}
