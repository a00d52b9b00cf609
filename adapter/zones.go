package adapter

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

const defaultMaxZoneCacheSize = 10000

// Zone is a static prefix whose routes mix parameters and catch-alls. Tree
// routers such as gin refuse those registrations, so the engine mounts a
// single catch-all for the zone and the zone dispatches by pattern, in
// score order.
type Zone struct {
	// Base is the static prefix shared by every route of the zone.
	Base string

	routes    []zoneRoute
	cache     sync.Map
	cacheSize atomic.Int32
	maxCache  int32
}

type zoneRoute struct {
	route   *Route
	pattern *Pattern
}

// SplitZones separates the routes that an engine can mount natively from
// those that must be dispatched through a conflict zone.
func SplitZones(routes []*Route) ([]*Route, []*Zone) {
	kinds := make(map[string]map[byte]bool)
	for _, r := range routes {
		base := StaticBase(r.Path)
		if kinds[base] == nil {
			kinds[base] = make(map[byte]bool)
		}
		if strings.Contains(r.Path, ":") {
			kinds[base][':'] = true
		}
		if strings.Contains(r.Path, "*") {
			kinds[base]['*'] = true
		}
	}

	var bases []string
	for base, k := range kinds {
		if k[':'] && k['*'] {
			bases = append(bases, base)
		}
	}
	if len(bases) == 0 {
		return routes, nil
	}
	// Outer prefixes first: a route joins the widest zone covering it.
	sort.Slice(bases, func(i, j int) bool {
		if len(bases[i]) != len(bases[j]) {
			return len(bases[i]) < len(bases[j])
		}
		return bases[i] < bases[j]
	})

	zones := make(map[string]*Zone)
	var native []*Route
	for _, r := range routes {
		base, ok := zoneFor(r.Path, bases)
		if !ok {
			native = append(native, r)
			continue
		}
		z := zones[base]
		if z == nil {
			z = &Zone{Base: base, maxCache: defaultMaxZoneCacheSize}
			zones[base] = z
		}
		z.routes = append(z.routes, zoneRoute{route: r, pattern: CompilePattern(r.Path)})
	}

	out := make([]*Zone, 0, len(zones))
	for _, base := range bases {
		if z, ok := zones[base]; ok {
			sort.SliceStable(z.routes, func(i, j int) bool {
				return Score(z.routes[i].route.Path) < Score(z.routes[j].route.Path)
			})
			out = append(out, z)
		}
	}
	return native, out
}

func zoneFor(path string, bases []string) (string, bool) {
	for _, base := range bases {
		if base == "/" {
			return base, true
		}
		if strings.HasPrefix(path, base+"/") {
			return base, true
		}
	}
	return "", false
}

// CatchAll returns the prefix under which the engine must mount the zone,
// without the catch-all token: "/a/" for the zone "/a".
func (z *Zone) CatchAll() string {
	return strings.TrimSuffix(z.Base, "/") + "/"
}

// Methods returns the distinct methods registered in the zone.
func (z *Zone) Methods() []string {
	seen := make(map[string]bool)
	var methods []string
	for _, zr := range z.routes {
		if !seen[zr.route.Method] {
			seen[zr.route.Method] = true
			methods = append(methods, zr.route.Method)
		}
	}
	return methods
}

// Match returns the first route of the zone matching method and path along
// with its parameters. Resolved paths are cached until the cache is full, at
// which point it is dropped entirely.
func (z *Zone) Match(method, path string) (*Route, map[string]string, bool) {
	key := method + "|" + path
	if cached, ok := z.cache.Load(key); ok {
		zr, _ := cached.(*zoneRoute)
		params, _ := zr.pattern.Match(path)
		return zr.route, params, true
	}

	for i := range z.routes {
		zr := &z.routes[i]
		if zr.route.Method != method {
			continue
		}
		params, ok := zr.pattern.Match(path)
		if !ok {
			continue
		}
		if z.cacheSize.Add(1) > z.maxCache {
			z.cache.Clear()
			z.cacheSize.Store(0)
		}
		z.cache.Store(key, zr)
		return zr.route, params, true
	}
	return nil, nil, false
}
