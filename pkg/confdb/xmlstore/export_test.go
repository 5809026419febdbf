package xmlstore

// CompiledLen reports how many expressions the compile cache holds.
func CompiledLen() int {
	return compiled.Len()
}
