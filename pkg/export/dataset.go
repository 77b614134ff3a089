package export

import "fmt"

// Dataset defines tabular export content. Rows are keyed by header so column
// order is owned by Headers alone.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

// Record returns a row's values in header order; missing cells render empty.
func (d Dataset) Record(row map[string]string) []string {
	record := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		record[i] = row[header]
	}
	return record
}

func (d Dataset) validate(format string) error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("%s requires at least one header", format)
	}
	return nil
}
