package elog

import (
	"encoding/json"
	"fmt"
)

// NodeDisplay renders v as JSON for debug output. A value that cannot be
// marshaled is reported as an internal error.
func NodeDisplay(v any) string {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		Throw(Wrap(err, ErrCodeInternalError, "could not display node"))
	}
	return string(jsonBytes)
}

// PrintNode writes NodeDisplay(v) to stdout.
func PrintNode(v any) {
	fmt.Println(NodeDisplay(v))
}
