package cli

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/confdb/pkg/confdb"
	"github.com/calvinalkan/confdb/pkg/confdb/filter"
)

// parseFilter decodes a --filter value. "" means no filter.
func parseFilter(s string) (filter.Expr, error) {
	if s == "" {
		return nil, nil
	}

	f, err := filter.ParseJSON([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("--filter: %w", err)
	}

	return f, nil
}

// parseValues decodes a JSONC object of property values. Keys may be
// dotted paths.
func parseValues(s string) (map[string]any, error) {
	std, err := hujson.Standardize([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: values: invalid JSONC: %w", ErrInvalidArgs, err)
	}

	dec := json.NewDecoder(bytes.NewReader(std))
	dec.UseNumber()

	var values map[string]any

	err = dec.Decode(&values)
	if err != nil {
		return nil, fmt.Errorf("%w: values must be a JSON object: %w", ErrInvalidArgs, err)
	}

	return values, nil
}

func printJSON(o *IO, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	o.Println(string(data))

	return nil
}

func printResult(o *IO, res confdb.Result) error {
	if res.IsList() {
		return printJSON(o, res.Objects())
	}

	return printJSON(o, res.Object())
}
