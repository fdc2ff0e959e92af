package orm

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// fieldCache maps a struct type to its normalized column names.
var fieldCache sync.Map // reflect.Type -> map[string][]int

// mapRows reads every row into a slice of elem.
func (c *Configuration) mapRows(rows *sql.Rows, elem reflect.Type) (reflect.Value, error) {
	columns, err := rows.Columns()
	if err != nil {
		return reflect.Value{}, err
	}

	out := reflect.MakeSlice(reflect.SliceOf(elem), 0, 0)

	for rows.Next() {
		raw := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range raw {
			dest[i] = &raw[i]
		}

		if err := rows.Scan(dest...); err != nil {
			return reflect.Value{}, err
		}

		v, err := c.mapRow(columns, raw, elem)
		if err != nil {
			return reflect.Value{}, err
		}

		out = reflect.Append(out, v)
	}

	if err := rows.Err(); err != nil {
		return reflect.Value{}, err
	}

	return out, nil
}

// mapRow builds one elem from a scanned row.
func (c *Configuration) mapRow(columns []string, raw []any, elem reflect.Type) (reflect.Value, error) {
	v, err := c.objectFactory.Create(elem)
	if err != nil {
		return reflect.Value{}, err
	}

	target := v
	if elem.Kind() == reflect.Pointer {
		if v.IsNil() {
			v.Set(reflect.New(elem.Elem()))
		}

		target = v.Elem()
	}

	switch {
	case c.isScalar(target.Type()):
		if len(columns) != 1 {
			return reflect.Value{}, fmt.Errorf("scalar result %v needs one column, got %d", target.Type(), len(columns))
		}

		if err := c.assign(target, raw[0]); err != nil {
			return reflect.Value{}, fmt.Errorf("column %s: %w", columns[0], err)
		}

	case target.Kind() == reflect.Map:
		if target.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, fmt.Errorf("map results need string keys, got %v", target.Type())
		}

		if target.IsNil() {
			target.Set(reflect.MakeMap(target.Type()))
		}

		for i, col := range columns {
			val := reflect.New(target.Type().Elem()).Elem()
			if err := c.assign(val, raw[i]); err != nil {
				return reflect.Value{}, fmt.Errorf("column %s: %w", col, err)
			}

			target.SetMapIndex(reflect.ValueOf(col).Convert(target.Type().Key()), val)
		}

	case target.Kind() == reflect.Struct:
		fields := structFields(target.Type())
		for i, col := range columns {
			index, ok := fields[normalizeColumn(col)]
			if !ok {
				continue
			}

			field, err := target.FieldByIndexErr(index)
			if err != nil {
				return reflect.Value{}, err
			}

			if err := c.assign(field, raw[i]); err != nil {
				return reflect.Value{}, fmt.Errorf("column %s: %w", col, err)
			}
		}

	default:
		return reflect.Value{}, fmt.Errorf("cannot map rows into %v", elem)
	}

	return v, nil
}

// isScalar reports whether t is filled from a single column.
func (c *Configuration) isScalar(t reflect.Type) bool {
	if _, ok := c.handlers[t]; ok {
		return true
	}

	if t == timeType || reflect.PointerTo(t).Implements(scannerType) {
		return true
	}

	return t.Kind() != reflect.Struct && t.Kind() != reflect.Map
}

// assign stores a column value in dst, applying type handlers first.
func (c *Configuration) assign(dst reflect.Value, src any) error {
	if h, ok := c.handlers[dst.Type()]; ok {
		v, err := h.FromDriver(src)
		if err != nil {
			return err
		}

		return setValue(dst, v)
	}

	if dst.CanAddr() && dst.Addr().Type().Implements(scannerType) {
		return dst.Addr().Interface().(sql.Scanner).Scan(src)
	}

	if dst.Kind() == reflect.Pointer && dst.Type() != reflect.TypeOf(src) {
		if src == nil {
			dst.Set(reflect.Zero(dst.Type()))

			return nil
		}

		p := reflect.New(dst.Type().Elem())
		if err := c.assign(p.Elem(), src); err != nil {
			return err
		}

		dst.Set(p)

		return nil
	}

	return setValue(dst, src)
}

// setValue converts src to dst's type where the conversion is lossless in
// meaning (numbers to numbers, text to text).
func setValue(dst reflect.Value, src any) error {
	if src == nil {
		dst.Set(reflect.Zero(dst.Type()))

		return nil
	}

	sv := reflect.ValueOf(src)
	dt := dst.Type()

	if sv.Type().AssignableTo(dt) {
		dst.Set(sv)

		return nil
	}

	switch {
	case isNumber(sv.Kind()) && isNumber(dt.Kind()):
		dst.Set(sv.Convert(dt))

		return nil

	case dt.Kind() == reflect.Bool && isNumber(sv.Kind()):
		dst.SetBool(!sv.IsZero())

		return nil

	case dt.Kind() == reflect.String && sv.Type() == bytesType:
		dst.SetString(string(sv.Bytes()))

		return nil

	case dt == bytesType && sv.Kind() == reflect.String:
		dst.SetBytes([]byte(sv.String()))

		return nil

	case dt.Kind() == reflect.String && sv.Kind() == reflect.String:
		dst.Set(sv.Convert(dt))

		return nil

	case dt == timeType && (sv.Kind() == reflect.String || sv.Type() == bytesType):
		t, err := parseTime(fmt.Sprint(sv.Convert(reflect.TypeOf("")).Interface()))
		if err != nil {
			return err
		}

		dst.Set(reflect.ValueOf(t))

		return nil

	case dt.Kind() == reflect.Interface && sv.Type().Implements(dt):
		dst.Set(sv)

		return nil
	}

	return fmt.Errorf("cannot assign %T to %v", src, dt)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot parse %q as time", s)
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}

	return false
}

// structFields returns the field index of every mappable field of t, keyed by
// normalized column name. A `db` tag overrides the field name; `db:"-"` skips
// the field.
func structFields(t reflect.Type) map[string][]int {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(map[string][]int)
	}

	fields := make(map[string][]int)

	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous && f.Type.Kind() == reflect.Struct && f.Type != timeType {
			continue
		}

		name := f.Name
		if tag, ok := f.Tag.Lookup("db"); ok {
			if tag == "-" {
				continue
			}

			name = tag
		}

		key := normalizeColumn(name)
		if _, taken := fields[key]; !taken {
			fields[key] = f.Index
		}
	}

	actual, _ := fieldCache.LoadOrStore(t, fields)

	return actual.(map[string][]int)
}

// normalizeColumn folds case and drops underscores so user_id matches UserID.
func normalizeColumn(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}
