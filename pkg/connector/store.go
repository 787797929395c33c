package connector

import (
	"context"
)

// StoreOf returns a typed view of one store of c.
func StoreOf[T any](c Connector, name string) *Store[T] {
	return &Store[T]{c: c, name: name}
}

type Store[T any] struct {
	c    Connector
	name string
}

func (s *Store[T]) Name() string {
	return s.name
}

func (s *Store[T]) GetAll(ctx context.Context) ([]T, error) {
	records, err := s.c.GetAll(ctx, s.name)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](records)
}

func (s *Store[T]) Get(ctx context.Context, key Key) (T, bool, error) {
	var v T
	rec, ok, err := s.c.Get(ctx, s.name, key)
	if err != nil || !ok {
		return v, false, err
	}
	if err := rec.Decode(&v); err != nil {
		return v, false, err
	}
	return v, true, nil
}

func (s *Store[T]) Put(ctx context.Context, value T, key Key) (Key, error) {
	return s.c.Put(ctx, s.name, value, key)
}

func (s *Store[T]) Delete(ctx context.Context, key Key) error {
	return s.c.Delete(ctx, s.name, key)
}

func (s *Store[T]) Clear(ctx context.Context) error {
	return s.c.Clear(ctx, s.name)
}

func (s *Store[T]) GetByIndex(ctx context.Context, index string, query Query) ([]T, error) {
	records, err := s.c.GetByIndex(ctx, s.name, index, query)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](records)
}

func decodeAll[T any](records []Record) ([]T, error) {
	list := make([]T, len(records))
	for i := range records {
		if err := records[i].Decode(&list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}
