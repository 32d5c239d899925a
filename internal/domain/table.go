package domain

// TableRef names a warehouse table or view within a dataset. Warehouses map
// the dataset to their own namespace: a schema, a database or a name prefix.
type TableRef struct {
	Dataset string
	Table   string
}

func (t TableRef) String() string {
	return t.Dataset + "." + t.Table
}

// In returns a reference to name in the same dataset.
func (t TableRef) In(name string) TableRef {
	return TableRef{Dataset: t.Dataset, Table: name}
}
