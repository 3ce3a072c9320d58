package output

import (
	"fmt"
	"io"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// writeTable draws data with go-pretty. Values with no tabular shape are
// written as JSON instead.
func writeTable(w io.Writer, data any) error {
	if data == nil {
		return nil
	}
	header, rows, ok := tabulate(reflect.ValueOf(data))
	if !ok {
		return writeJSON(w, data)
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	_, err := io.WriteString(w, tw.Render()+"\n")
	return err
}

func tabulate(v reflect.Value) (table.Row, []table.Row, bool) {
	v = reflect.Indirect(v)

	switch v.Kind() {
	case reflect.Struct:
		var rows []table.Row
		for _, f := range columns(v.Type()) {
			rows = append(rows, table.Row{f.name, cell(v.Field(f.index))})
		}
		return table.Row{"FIELD", "VALUE"}, rows, true

	case reflect.Map:
		var rows []table.Row
		for _, k := range sortedKeys(v) {
			rows = append(rows, table.Row{cell(k), cell(v.MapIndex(k))})
		}
		return table.Row{"KEY", "VALUE"}, rows, true

	case reflect.Slice, reflect.Array:
		elem := v.Type().Elem()
		if elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}
		if elem.Kind() != reflect.Struct {
			rows := make([]table.Row, v.Len())
			for i := range rows {
				rows[i] = table.Row{cell(v.Index(i))}
			}
			return table.Row{"VALUE"}, rows, true
		}

		cols := columns(elem)
		header := make(table.Row, len(cols))
		for i, c := range cols {
			header[i] = strings.ToUpper(c.name)
		}
		rows := make([]table.Row, v.Len())
		for i := range rows {
			item := reflect.Indirect(v.Index(i))
			row := make(table.Row, len(cols))
			for j, c := range cols {
				row[j] = "-"
				if item.IsValid() {
					row[j] = cell(item.Field(c.index))
				}
			}
			rows[i] = row
		}
		return header, rows, true
	}
	return nil, nil, false
}

type column struct {
	name  string
	index int
}

// columns lists the exported fields of t under their json names.
func columns(t reflect.Type) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = f.Name
		}
		cols = append(cols, column{name: name, index: i})
	}
	return cols
}

func sortedKeys(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		return strings.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
	})
	return keys
}

// cell renders one value. Empty values show as "-".
func cell(v reflect.Value) string {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "-"
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return "-"
	}

	switch x := v.Interface().(type) {
	case time.Time:
		if x.IsZero() {
			return "-"
		}
		return x.Format(time.RFC3339)
	case time.Duration:
		return x.String()
	}

	switch v.Kind() {
	case reflect.String:
		if v.Len() == 0 {
			return "-"
		}
		return v.String()
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%g", v.Float())
	case reflect.Slice, reflect.Array:
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = cell(v.Index(i))
		}
		return joinOrDash(parts)
	case reflect.Map:
		var parts []string
		for _, k := range sortedKeys(v) {
			parts = append(parts, fmt.Sprintf("%v=%s", k.Interface(), cell(v.MapIndex(k))))
		}
		return joinOrDash(parts)
	}
	return fmt.Sprint(v.Interface())
}

func joinOrDash(parts []string) string {
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}
