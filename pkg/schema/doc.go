// Package schema declares the expected type of state slices.
//
// A Schema maps slice names to types. Only the slices it names are checked, and only
// while they exist: a slice that was never set (or was unset) is not a violation.
//
//	s := schema.Schema{
//	    "title":  schema.String(),
//	    "zoom":   schema.Float(),
//	    "layers": schema.Slice(schema.String()),
//	    "canvas": schema.Map(),
//	}
//
//	ws, err := strata.New(strata.WithSchema(s))
//
// Commits that would leave a named slice with the wrong type are rejected with an
// error matching domain.ErrValidation, so the command that caused them fails and is
// not recorded in the history.
//
// Schemas can also be parsed from type strings, which is how strata.yaml declares them:
//
//	s, err := schema.ParseTypeMap(map[string]string{
//	    "title":  "string",
//	    "layers": "[string]",
//	})
//
// Custom validators cover domain rules:
//
//	percent := schema.Custom("percent", func(v any) error {
//	    f, ok := v.(float64)
//	    if !ok || f < 0 || f > 1 {
//	        return fmt.Errorf("must be a number between 0 and 1")
//	    }
//	    return nil
//	})
package schema
