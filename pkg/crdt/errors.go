package crdt

import "github.com/arcuru/eidetica/pkg/eideticaerr"

func errInvalidDataf(format string, args ...any) error {
	return eideticaerr.New(eideticaerr.InvalidData, format, args...)
}

func errInvalidOperation(msg string) error {
	return eideticaerr.New(eideticaerr.InvalidOperation, "%s", msg)
}
