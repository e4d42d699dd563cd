package orm

import (
	"errors"
	"fmt"
)

// Error kinds callers match with errors.Is. The engine returns them wrapped in *Error,
// whose message is part of the public contract and must not change.
var (
	ErrNoIdentifyingValue   = errors.New("no id and no value to read")
	ErrMissingIdentity      = errors.New("missing identity")
	ErrRecordNotFound       = errors.New("record not found")
	ErrUnknownForeignKey    = errors.New("unknown foreign key")
	ErrNoManyToManyRelation = errors.New("no many to many relationship")
)

var (
	ErrEmptyTableName         = errors.New("empty tableName supplied")
	ErrEmptyModelName         = errors.New("empty model name supplied")
	ErrUnknownClass           = errors.New("class not found")
	ErrUnknownField           = errors.New("field is not declared")
	ErrUnknownRelation        = errors.New("relation not found")
	ErrDuplicateModel         = errors.New("model already registered")
	ErrDuplicateField         = errors.New("field declared twice")
	ErrReservedField          = errors.New("field name is reserved")
	ErrValidation             = errors.New("validation error")
	ErrUnknownComparator      = errors.New("unknown comparator")
	ErrInvalidPredicate       = errors.New("invalid predicate")
	ErrUnknownFieldType       = errors.New("unknown field type")
	ErrCoercionFailed         = errors.New("value could not be coerced to field type")
	ErrEagerLoadDepthExceeded = errors.New("eager load exceeds maximum depth")
	ErrMixedModels            = errors.New("entities of different models supplied")
	ErrNilRegistry            = errors.New("nil registry supplied")
	ErrNilAdapter             = errors.New("nil adapter supplied")
)

// Error carries one of the error kinds above together with the exact message callers rely on.
type Error struct {
	Kind error
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

func errNoIdentifyingValue(model string) error {
	return newError(ErrNoIdentifyingValue, "%s: No id and no value to read", model)
}

func errDeleteWithoutID() error {
	return newError(ErrMissingIdentity, "ORM delete Error, no id defined")
}

func errRecordNotFound(model string, key string, value any) error {
	return newError(ErrRecordNotFound, "Record not found. %s %s:%v", model, key, value)
}

func errNotForeignKey(fk string, model string) error {
	return newError(ErrUnknownForeignKey, "%s is not foreign key in %s", fk, model)
}

func errNoManyToMany(a string, b string) error {
	return newError(ErrNoManyToManyRelation, "%s and %s not have many to many relationship", a, b)
}

func errJoinWithoutID(action string, target string, owner string) error {
	return newError(ErrMissingIdentity, "Cannot %s %s. %s not have id", action, target, owner)
}

func wrapModelError(kind error, model string, detail string) error {
	if detail == "" {
		return fmt.Errorf("%w: %s", kind, model)
	}

	return fmt.Errorf("%w: %s.%s", kind, model, detail)
}
