package sqlite

import (
	"database/sql/driver"
	"fmt"

	sqlite "modernc.org/sqlite"

	"ontologycore/internal/spec"
)

// The SQLite dialect folds case and splits words with these functions so
// that SQL matching agrees with the in-memory catalog.
func init() {
	sqlite.MustRegisterDeterministicScalarFunction(spec.SQLiteLowerFunc, 1, textFunc(spec.FoldLower))
	sqlite.MustRegisterDeterministicScalarFunction(spec.SQLiteWordsFunc, 1, textFunc(spec.FoldWords))
}

// textFunc adapts fn to a one-argument scalar function. NULL stays NULL.
func textFunc(fn func(string) string) func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error) {
	return func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		text, ok := textArg(args[0])
		if !ok {
			return nil, nil
		}
		return fn(text), nil
	}
}

func textArg(v driver.Value) (string, bool) {
	switch v := v.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return fmt.Sprint(v), true
	}
}
