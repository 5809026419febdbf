package confdb

// Result is what a read returns: either a single object or a list.
//
// Singleton models and lookups by identity produce a single object; reading
// a whole collection produces a list, possibly empty.
type Result struct {
	single *Object
	list   []*Object
	isList bool
}

// Single wraps one object.
func Single(o *Object) Result {
	return Result{single: o}
}

// List wraps a sequence of objects.
func List(objects []*Object) Result {
	if objects == nil {
		objects = []*Object{}
	}

	return Result{list: objects, isList: true}
}

// IsList reports whether the result holds a list.
func (r Result) IsList() bool {
	return r.isList
}

// Object returns the single object, or nil for a list result.
func (r Result) Object() *Object {
	return r.single
}

// Objects returns the list, or a one-element slice for a single result.
func (r Result) Objects() []*Object {
	if r.isList {
		return r.list
	}

	if r.single == nil {
		return nil
	}

	return []*Object{r.single}
}

// Len returns the number of objects.
func (r Result) Len() int {
	return len(r.Objects())
}
