package postgres

import (
	"reflect"
	"sync"
)

// columnIndex maps the "db" tags of a row struct to field index paths.
type columnIndex struct {
	columns []string
	fields  map[string][]int
}

var columnCache sync.Map // map[reflect.Type]*columnIndex

func indexOf(t reflect.Type) *columnIndex {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := columnCache.Load(t); ok {
		return cached.(*columnIndex)
	}

	idx := &columnIndex{fields: make(map[string][]int)}
	collectColumns(t, nil, idx)
	actual, _ := columnCache.LoadOrStore(t, idx)
	return actual.(*columnIndex)
}

func collectColumns(t reflect.Type, prefix []int, idx *columnIndex) {
	if t.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		path := append(append([]int(nil), prefix...), i)

		if field.Anonymous {
			ft := field.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			collectColumns(ft, path, idx)
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		if _, dup := idx.fields[tag]; dup {
			continue
		}
		idx.columns = append(idx.columns, tag)
		idx.fields[tag] = path
	}
}

// DBColumns returns the "db" tags of T in field order, embedded structs inlined.
//
//	var movementColumns = postgres.DBColumns[entity.QuantityMovement]()
func DBColumns[T any]() []string {
	var zero T
	cols := indexOf(reflect.TypeOf(zero)).columns
	return append([]string(nil), cols...)
}

// DBValues returns the values of v for columns, in the same order. It panics
// when a column has no tagged field, which is a programming error.
func DBValues(v any, columns []string) []any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	idx := indexOf(rv.Type())

	out := make([]any, len(columns))
	for i, col := range columns {
		path, ok := idx.fields[col]
		if !ok {
			panic("postgres: no db field " + col + " on " + rv.Type().String())
		}
		out[i] = rv.FieldByIndex(path).Interface()
	}
	return out
}
