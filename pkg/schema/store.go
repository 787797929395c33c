package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Store declares a named collection of records.
//
// Primary key policy:
//   - no KeyPath, no AutoIncrement: the caller passes an explicit key on every put
//   - KeyPath: the key is read from the record field
//   - KeyPath and AutoIncrement: the field is filled with the next integer when absent
//   - AutoIncrement only: the key is generated unless the caller passes one
type Store struct {
	Name          string
	KeyPath       KeyPath
	AutoIncrement bool
	Indexes       []Index
}

func (s Store) String() string {
	return fmt.Sprintf("%s (keyPath=%q, autoIncrement=%v)", s.Name, s.KeyPath.String(), s.AutoIncrement)
}

// InlineKey reports whether keys live inside the records.
func (s Store) InlineKey() bool {
	return len(s.KeyPath) > 0
}

func (s Store) Index(name string) (Index, bool) {
	for _, idx := range s.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index{}, false
}

type CanTableName interface {
	TableName() string
}

func TypeOfModel(model any) (reflect.Type, error) {
	t := reflect.TypeOf(model)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() == reflect.Slice {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return Nil, fmt.Errorf("store model must be struct type, but got %T", model)
	}

	return t, nil
}

var Nil reflect.Type

// StoreFor derives a store declaration from a model type.
// TableName names the store, an embedded PKey makes an auto-increment "id" key,
// and Indexes keys (comma separated key paths) become "by_<paths>" indexes.
func StoreFor(model any) (Store, error) {
	tpe, err := TypeOfModel(model)
	if err != nil {
		return Store{}, err
	}

	m := reflect.New(tpe).Interface()

	s := Store{}

	if canTableName, ok := m.(CanTableName); ok {
		s.Name = canTableName.TableName()
	} else {
		s.Name = tpe.Name()
	}

	if _, ok := m.(CanPrimaryKey); ok {
		s.KeyPath = KeyPath{"id"}
		s.AutoIncrement = true
	}

	if canIndexes, ok := m.(CanIndexes); ok {
		for name, indexType := range canIndexes.Indexes() {
			paths, err := ParseKeyPaths(strings.Split(name, ",")...)
			if err != nil {
				return Store{}, err
			}

			s.Indexes = append(s.Indexes, Index{
				Name:       "by_" + strings.NewReplacer(",", "_", ".", "_").Replace(name),
				KeyPath:    paths,
				Unique:     indexType == UniqueIndex,
				MultiEntry: indexType == MultiEntryIndex,
			})
		}

		sort.Slice(s.Indexes, func(i, j int) bool {
			return s.Indexes[i].Name < s.Indexes[j].Name
		})
	}

	return s, nil
}
