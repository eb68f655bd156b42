package mcp

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/lector/internal/errors"
)

// decode maps tool arguments onto a request struct. Numbers arrive as float64,
// so integer fields decode through JSON. Unknown arguments and mistyped values
// are INVALID_REQUEST.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, errors.NewInvalidRequest(fmt.Sprintf("arguments are not valid JSON: %v", err))
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&result); err != nil {
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) && typeErr.Field != "" {
			return result, errors.NewInvalidRequest(fmt.Sprintf("%s must be %s", typeErr.Field, argumentType(typeErr.Type.Kind().String())))
		}
		return result, errors.NewInvalidRequest(fmt.Sprintf("invalid arguments: %v", err))
	}
	return result, nil
}

// argumentType names a Go kind the way tool schemas describe it.
func argumentType(kind string) string {
	switch kind {
	case "bool":
		return "a boolean"
	case "string", "ptr":
		return "a string"
	case "int", "int64", "int32":
		return "an integer"
	default:
		return "a " + kind
	}
}
