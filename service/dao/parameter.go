package dao

// Parameter carries an optional List filter, e.g. pending-only snapshots or
// events for a given snapshot identifier.
type Parameter struct {
	Name  string
	Value interface{}
}

// NewParameter creates a filter parameter; a single value stays scalar,
// multiple values form a slice.
func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}
