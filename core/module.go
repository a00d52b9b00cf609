// Package core is the application framework of warpcore. Modules group
// controllers and providers, controllers declare routes, and an Application
// drives everything through a platform.HTTPAdapter so the same module runs
// on any router engine.
package core

// Module groups controllers and providers. Imports are resolved before the
// module itself.
type Module struct {
	Name        string
	Imports     []*Module
	Controllers []Controller
	// Providers take part in lifecycle hooks.
	Providers []any
	// Configure registers the middleware of the module.
	Configure func(consumer *MiddlewareConsumer)
}

func (m *Module) String() string {
	if m.Name == "" {
		return "Module"
	}
	return m.Name
}

// resolve walks the import graph depth-first. Imports come before the
// modules importing them and every module appears once, even when cyclic.
func resolve(root *Module) []*Module {
	var order []*Module
	seen := make(map[*Module]bool)

	var visit func(m *Module)
	visit = func(m *Module) {
		if m == nil || seen[m] {
			return
		}
		seen[m] = true
		for _, imp := range m.Imports {
			visit(imp)
		}
		order = append(order, m)
	}
	visit(root)
	return order
}

// instances lists providers and controllers in module order.
func instances(modules []*Module) []any {
	var out []any
	for _, m := range modules {
		out = append(out, m.Providers...)
		for _, c := range m.Controllers {
			out = append(out, c)
		}
	}
	return out
}
