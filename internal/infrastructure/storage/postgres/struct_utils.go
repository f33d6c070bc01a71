package postgres

import (
	"reflect"
	"sync"
)

type dbField struct {
	column string
	index  []int
}

// fieldCache holds the db fields per struct type; reflection runs once
// per type.
var fieldCache sync.Map // map[reflect.Type][]dbField

func dbFields(t reflect.Type) []dbField {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]dbField)
	}
	var fields []dbField
	if t.Kind() == reflect.Struct {
		// VisibleFields flattens embedded structs.
		for _, f := range reflect.VisibleFields(t) {
			if f.Anonymous {
				continue
			}
			tag := f.Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			fields = append(fields, dbField{column: tag, index: f.Index})
		}
	}
	fieldCache.Store(t, fields)
	return fields
}

// ExtractDBColumns lists the "db" tags of T in declaration order.
//
//	cols := ExtractDBColumns[inventory.Variant]()
//	// ["id", "product_id", "sku", "capacity", ...]
func ExtractDBColumns[T any]() []string {
	fields := dbFields(reflect.TypeFor[T]())
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.column
	}
	return cols
}

// StructToMap maps the db columns of a struct or struct pointer to the
// field values.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	fields := dbFields(rv.Type())
	res := make(map[string]any, len(fields))
	for _, f := range fields {
		res[f.column] = rv.FieldByIndex(f.index).Interface()
	}
	return res
}
