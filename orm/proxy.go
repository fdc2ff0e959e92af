package orm

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
)

// NewMapper returns a pointer to a new t whose statement funcs run on sf.
// t must be a mapper registered in the factory's configuration.
func NewMapper(sf *SessionFactory, t reflect.Type) (any, error) {
	if sf == nil {
		return nil, fmt.Errorf("mapper %v: session factory is nil", t)
	}

	info, ok := sf.cfg.mapper(t)
	if !ok {
		return nil, NewUnknownMapperError(t)
	}

	proxy := reflect.New(info.typ)
	for _, stmt := range info.statements {
		proxy.Elem().Field(stmt.index).Set(reflect.MakeFunc(stmt.fnType, sf.statementFunc(stmt)))
	}

	return proxy.Interface(), nil
}

// GetMapper is the generic form of NewMapper.
func GetMapper[T any](sf *SessionFactory) (*T, error) {
	m, err := NewMapper(sf, reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, err
	}

	return m.(*T), nil
}

// statementFunc builds the implementation of one statement func.
func (f *SessionFactory) statementFunc(stmt statementInfo) func([]reflect.Value) []reflect.Value {
	return func(in []reflect.Value) []reflect.Value {
		ctx := context.Background()
		if !in[0].IsNil() {
			ctx = in[0].Interface().(context.Context)
		}

		args := make([]any, len(in)-1)
		for i, v := range in[1:] {
			args[i] = v.Interface()
		}

		result, err := f.call(ctx, stmt, args)

		return stmt.results(result, err)
	}
}

// call runs stmt on the context's session, or on an auto-commit session
// opened for this call.
func (f *SessionFactory) call(ctx context.Context, stmt statementInfo, args []any) (reflect.Value, error) {
	elem, err := f.resultType(stmt)
	if err != nil {
		return reflect.Value{}, err
	}

	s, ok := SessionFromContext(ctx)
	if !ok || s.factory != f {
		opened, err := f.OpenSession(ctx, WithAutoCommit(true))
		if err != nil {
			return reflect.Value{}, err
		}
		defer opened.Close()

		s = opened
	}

	if stmt.shape == resultNone || stmt.op == OperationExec {
		res, err := s.exec(ctx, stmt.id, stmt.sql, args)
		if err != nil {
			return reflect.Value{}, err
		}

		return reflect.ValueOf(&res).Elem(), nil
	}

	rows, err := s.query(ctx, stmt.id, elem, stmt.sql, args)
	if err != nil {
		return reflect.Value{}, err
	}

	if stmt.shape == resultMany {
		return rows, nil
	}

	return single(rows, elem, stmt.id)
}

// resultType is the row type of stmt: its declared element type, or the
// aliased type, which must be assignable to it.
func (f *SessionFactory) resultType(stmt statementInfo) (reflect.Type, error) {
	if stmt.alias == "" {
		return stmt.elemType, nil
	}

	aliased, ok := f.cfg.TypeAlias(stmt.alias)
	if !ok {
		return nil, NewStatementError(stmt.id, "result mapping", fmt.Errorf("unknown type alias '%s'", stmt.alias))
	}

	if stmt.elemType != nil && !aliased.AssignableTo(stmt.elemType) {
		return nil, NewStatementError(stmt.id, "result mapping",
			fmt.Errorf("alias '%s' is %v, which is not assignable to %v", stmt.alias, aliased, stmt.elemType))
	}

	return aliased, nil
}

// results converts a statement outcome to the func's return values.
func (stmt statementInfo) results(v reflect.Value, err error) []reflect.Value {
	errValue := reflect.Zero(errorType)
	if err != nil {
		errValue = reflect.ValueOf(&err).Elem()
	}

	if stmt.fnType.NumOut() == 1 {
		return []reflect.Value{errValue}
	}

	out := stmt.fnType.Out(0)
	if err != nil {
		return []reflect.Value{reflect.Zero(out), errValue}
	}

	value, convErr := stmt.convert(v, out)
	if convErr != nil {
		convErr = NewStatementError(stmt.id, "result mapping", convErr)

		return []reflect.Value{reflect.Zero(out), reflect.ValueOf(&convErr).Elem()}
	}

	return []reflect.Value{value, errValue}
}

func (stmt statementInfo) convert(v reflect.Value, out reflect.Type) (reflect.Value, error) {
	switch stmt.shape {
	case resultSQLResult:
		return v, nil

	case resultRowsAffected:
		n, err := v.Interface().(sql.Result).RowsAffected()
		if err != nil {
			return reflect.Value{}, err
		}

		return reflect.ValueOf(n).Convert(out), nil

	case resultMany:
		if v.Type() == out {
			return v, nil
		}

		// Aliased rows land in a []any.
		converted := reflect.MakeSlice(out, v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			item := v.Index(i)
			if item.Kind() == reflect.Interface {
				item = item.Elem()
			}

			if !item.IsValid() {
				continue
			}

			if !item.Type().AssignableTo(out.Elem()) {
				return reflect.Value{}, fmt.Errorf("row of type %v is not assignable to %v", item.Type(), out.Elem())
			}

			converted.Index(i).Set(item)
		}

		return converted, nil

	default:
		if !v.IsValid() {
			return reflect.Zero(out), nil
		}

		if v.Type() != out {
			if !v.Type().AssignableTo(out) {
				return reflect.Value{}, fmt.Errorf("row of type %v is not assignable to %v", v.Type(), out)
			}

			converted := reflect.New(out).Elem()
			converted.Set(v)

			return converted, nil
		}

		return v, nil
	}
}
