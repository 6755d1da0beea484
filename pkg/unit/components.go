package unit

import "fmt"

// NamedObjectsPerComponent maps the id names declared inside component
// rootObject to their object ids. The map is computed once per component.
//
// Callers only ask for components known to declare named objects; an empty
// result is a contract violation and panics.
func (u *ExecutableUnit) NamedObjectsPerComponent(rootObject int) map[string]int {
	if m, ok := u.namedObjects[rootObject]; ok {
		return m
	}
	if rootObject < 0 || rootObject >= len(u.data.Objects) {
		panic(fmt.Sprintf("unit %s: component object %d out of range", u.url, rootObject))
	}

	component := u.data.Objects[rootObject]
	named := make(map[string]int, len(component.NamedObjectsInComponent))
	for _, idx := range component.NamedObjectsInComponent {
		if int(idx) >= len(u.data.Objects) {
			panic(fmt.Sprintf("unit %s: component %d names missing object %d", u.url, rootObject, idx))
		}
		obj := u.data.Objects[idx]
		named[u.data.StringAt(obj.IDNameIndex)] = int(obj.ID)
	}
	if len(named) == 0 {
		panic(fmt.Sprintf("unit %s: component %d declares no named objects", u.url, rootObject))
	}

	if u.namedObjects == nil {
		u.namedObjects = make(map[int]map[string]int)
	}
	u.namedObjects[rootObject] = named
	return named
}
