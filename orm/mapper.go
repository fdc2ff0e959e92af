package orm

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
)

// A mapper is a struct whose exported func fields are statements:
//
//	type UserMapper struct {
//	    FindByID func(ctx context.Context, id int64) (*User, error)              `sql:"SELECT id, name FROM users WHERE id = ?"`
//	    FindAll  func(ctx context.Context) ([]User, error)                       `sql:"SELECT id, name FROM users"`
//	    Rename   func(ctx context.Context, name string, id int64) (int64, error) `sql:"UPDATE users SET name = ? WHERE id = ?"`
//	}
//
// Tags:
//   - sql: the statement (required on every func field)
//   - kind: "query" or "exec"; inferred from the first SQL keyword when empty
//   - result: a type alias naming the row type of funcs returning any or []any
//
// The first parameter must be a context.Context; the others are statement
// arguments in order. Results are error, (sql.Result, error), (int64, error)
// (rows affected for exec, a scalar for query), (T, error) or ([]T, error).

var (
	contextType   = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType     = reflect.TypeOf((*error)(nil)).Elem()
	sqlResultType = reflect.TypeOf((*sql.Result)(nil)).Elem()
	bytesType     = reflect.TypeOf([]byte(nil))
)

// queryKeywords are the leading keywords of statements that return rows.
var queryKeywords = map[string]bool{
	"select":  true,
	"with":    true,
	"values":  true,
	"pragma":  true,
	"show":    true,
	"explain": true,
}

// resultShape describes what a statement func returns besides its error.
type resultShape int

const (
	resultNone resultShape = iota
	resultSQLResult
	resultRowsAffected
	resultOne
	resultMany
)

// mapperInfo holds analyzed mapper metadata
type mapperInfo struct {
	typ        reflect.Type
	statements []statementInfo
}

// statementInfo describes one statement func field
type statementInfo struct {
	id       string // Type.Field, used in invocations and errors
	field    string
	index    int
	fnType   reflect.Type
	sql      string
	op       Operation
	alias    string // From `result:"..."` tag
	shape    resultShape
	elemType reflect.Type // Row type for resultOne / resultMany
}

// IsMapper reports whether t is a valid mapper type. It can be used as a
// scan predicate.
func IsMapper(t reflect.Type) bool {
	return ValidateMapper(t) == nil
}

// ValidateMapper returns an ErrInvalidMapper error when t is not a valid
// mapper type.
func ValidateMapper(t reflect.Type) error {
	_, err := analyzeMapper(t)

	return err
}

// analyzeMapper inspects a mapper struct and extracts its statements.
func analyzeMapper(t reflect.Type) (*mapperInfo, error) {
	if t == nil {
		return nil, NewMapperError(t, "type is nil")
	}

	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return nil, NewMapperError(t, "mapper must be a struct")
	}

	info := &mapperInfo{typ: t}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if !field.IsExported() {
			continue
		}

		query, tagged := field.Tag.Lookup("sql")
		if field.Type.Kind() != reflect.Func {
			if tagged {
				return nil, NewMapperError(t, fmt.Sprintf("field %s has a sql tag but is not a func", field.Name))
			}

			continue
		}

		if strings.TrimSpace(query) == "" {
			return nil, NewMapperError(t, fmt.Sprintf("func field %s has no sql tag", field.Name))
		}

		stmt, err := analyzeStatement(t, field, query)
		if err != nil {
			return nil, err
		}

		info.statements = append(info.statements, stmt)
	}

	if len(info.statements) == 0 {
		return nil, NewMapperError(t, "mapper declares no statements")
	}

	return info, nil
}

// analyzeStatement analyzes a single statement func field
func analyzeStatement(owner reflect.Type, field reflect.StructField, query string) (statementInfo, error) {
	fnType := field.Type
	stmt := statementInfo{
		id:     owner.Name() + "." + field.Name,
		field:  field.Name,
		index:  field.Index[0],
		fnType: fnType,
		sql:    query,
		alias:  field.Tag.Get("result"),
	}

	fail := func(reason string) (statementInfo, error) {
		return stmt, NewMapperError(owner, fmt.Sprintf("field %s: %s", field.Name, reason))
	}

	if fnType.IsVariadic() {
		return fail("variadic statements are not supported")
	}

	if fnType.NumIn() == 0 || fnType.In(0) != contextType {
		return fail("first parameter must be context.Context")
	}

	switch kind := strings.ToLower(field.Tag.Get("kind")); kind {
	case "":
		stmt.op = inferOperation(query)
	case string(OperationQuery), string(OperationExec):
		stmt.op = Operation(kind)
	default:
		return fail(fmt.Sprintf("unknown kind %q", kind))
	}

	switch fnType.NumOut() {
	case 1:
		if fnType.Out(0) != errorType {
			return fail("single result must be error")
		}

		stmt.shape = resultNone

	case 2:
		if fnType.Out(1) != errorType {
			return fail("error must be the last return value")
		}

		out := fnType.Out(0)
		if stmt.op == OperationExec {
			switch {
			case out == sqlResultType:
				stmt.shape = resultSQLResult
			case out.Kind() == reflect.Int64:
				stmt.shape = resultRowsAffected
			default:
				return fail("exec statements return sql.Result or int64")
			}

			break
		}

		if out.Kind() == reflect.Slice && out != bytesType {
			stmt.shape = resultMany
			stmt.elemType = out.Elem()
		} else {
			stmt.shape = resultOne
			stmt.elemType = out
		}

	default:
		return fail("statements return error or (value, error)")
	}

	if stmt.alias != "" && (stmt.elemType == nil || stmt.elemType.Kind() != reflect.Interface) {
		return fail("result alias requires an interface result type")
	}

	if stmt.alias == "" && stmt.elemType != nil && stmt.elemType.Kind() == reflect.Interface {
		return fail("interface results need a result alias")
	}

	return stmt, nil
}

// inferOperation classifies a statement by its first keyword.
func inferOperation(query string) Operation {
	fields := strings.Fields(query)
	if len(fields) > 0 && queryKeywords[strings.ToLower(fields[0])] {
		return OperationQuery
	}

	return OperationExec
}
