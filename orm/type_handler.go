package orm

import (
	"database/sql/driver"
	"reflect"
)

// TypeHandler converts between an application type and its persisted form.
type TypeHandler interface {
	// ToDriver converts a statement argument into a driver value.
	ToDriver(value any) (driver.Value, error)

	// FromDriver converts a column value into the handled type.
	FromDriver(src any) (any, error)
}

// convertArgs applies the registered handlers to statement arguments.
func (c *Configuration) convertArgs(args []any) ([]any, error) {
	if len(c.handlers) == 0 {
		return args, nil
	}

	converted := make([]any, len(args))
	for i, arg := range args {
		converted[i] = arg

		if arg == nil {
			continue
		}

		h, ok := c.handlers[reflect.TypeOf(arg)]
		if !ok {
			continue
		}

		v, err := h.ToDriver(arg)
		if err != nil {
			return nil, err
		}

		converted[i] = v
	}

	return converted, nil
}
