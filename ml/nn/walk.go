// walk.go - Durchlauf des Modul-Baums
//
// NamedModules liefert alle Module eines Netzwerks mit Punkt-getrennten
// Pfaden. Container zaehlen ihre Kinder selbst auf; alle anderen Structs
// werden per Reflection ueber exportierte Felder durchsucht. Der Feldname
// kommt aus dem Tag `nn:"name"`, `nn:"-"` ueberspringt ein Feld.
package nn

import (
	"reflect"
	"strconv"
	"strings"
)

var moduleType = reflect.TypeOf((*Module)(nil)).Elem()

// NamedModules gibt root (Name "") und alle Nachfahren in Tiefensuche zurueck.
// Ein Modul, das mehrfach im Baum haengt, erscheint nur einmal.
func NamedModules(root Module) []Named {
	if isNil(root) {
		return nil
	}

	var out []Named
	seen := make(map[any]struct{})
	walk(root, "", seen, &out)
	return out
}

func walk(m Module, name string, seen map[any]struct{}, out *[]Named) {
	if reflect.TypeOf(m).Comparable() {
		if _, ok := seen[m]; ok {
			return
		}
		seen[m] = struct{}{}
	}

	*out = append(*out, Named{Name: name, Module: m})
	for _, child := range children(m) {
		walk(child.Module, join(name, child.Name), seen, out)
	}
}

// children gibt die direkten Kinder von m zurueck
func children(m Module) []Named {
	if c, ok := m.(Container); ok {
		var out []Named
		for _, child := range c.Children() {
			if !isNil(child.Module) {
				out = append(out, child)
			}
		}
		return out
	}

	v := reflect.Indirect(reflect.ValueOf(m))
	if v.Kind() != reflect.Struct {
		return nil
	}
	return fields(v)
}

// fields sammelt Module aus den exportierten Feldern eines Structs
func fields(v reflect.Value) (out []Named) {
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		name := f.Tag.Get("nn")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}

		out = append(out, collect(v.Field(i), name)...)
	}
	return out
}

// collect wandelt ein Feld in Kind-Module um: einzelne Module, Slices/Arrays
// von Modulen (Index als Name) oder eingebettete Structs ohne Forward
func collect(v reflect.Value, name string) []Named {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
	}

	if v.Type().Implements(moduleType) {
		return []Named{{Name: name, Module: v.Interface().(Module)}}
	}
	// Struct-Werte mit Pointer-Receiver
	if v.Kind() == reflect.Struct && v.CanAddr() && v.Addr().Type().Implements(moduleType) {
		return []Named{{Name: name, Module: v.Addr().Interface().(Module)}}
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		var out []Named
		for i := range v.Len() {
			out = append(out, collect(v.Index(i), join(name, strconv.Itoa(i)))...)
		}
		return out
	case reflect.Pointer:
		if v.Elem().Kind() == reflect.Struct {
			return prefix(name, fields(v.Elem()))
		}
	case reflect.Struct:
		return prefix(name, fields(v))
	}
	return nil
}

func prefix(name string, named []Named) []Named {
	for i := range named {
		named[i].Name = join(name, named[i].Name)
	}
	return named
}

func join(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ".")
}

func isNil(m Module) bool {
	if m == nil {
		return true
	}
	v := reflect.ValueOf(m)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return v.IsNil()
	}
	return false
}
