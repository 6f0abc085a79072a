package main

import (
	"bytes"
	"encoding/json"

	"github.com/EgorLis/encoderpc/internal/middleware"
)

// parseOptions — аргумент, который читается как JSON, уходит значением
// (числа без потери точности), остальное строкой.
func parseOptions(args []string) []any {
	opts := make([]any, 0, len(args))
	for _, arg := range args {
		opts = append(opts, parseValue(arg))
	}
	return opts
}

func parseValue(arg string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(arg)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return arg
	}
	return v
}

// parseJobID — id задания из командной строки: JSON как есть, иначе строка.
func parseJobID(arg string) middleware.JobID {
	if json.Valid([]byte(arg)) {
		return middleware.JobID(arg)
	}
	raw, _ := json.Marshal(arg)
	return middleware.JobID(raw)
}
