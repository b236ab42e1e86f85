package mime

import "strings"

// DefaultType is returned for unknown or missing extensions
const DefaultType = "application/octet-stream"

// Registry maps file extensions (without the leading dot) to content types.
// It is safe for concurrent lookups once construction is finished.
type Registry struct {
	types map[string]string
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		types: make(map[string]string),
	}
}

// Default returns a registry preloaded with the common web types
func Default() *Registry {
	r := New()
	r.Add("png", "image/png")
	r.Add("jpg", "image/jpeg")
	r.Add("jpeg", "image/jpeg")
	r.Add("txt", "text/plain")
	r.Add("html", "text/html")
	r.Add("htm", "text/html")
	r.Add("css", "text/css")
	r.Add("js", "application/javascript")
	r.Add("json", "application/json")
	return r
}

// Add adds or overrides a mapping. ext is matched case-insensitively.
func (r *Registry) Add(ext, contentType string) {
	r.types[strings.ToLower(strings.TrimPrefix(ext, "."))] = contentType
}

// Lookup returns the content type for ext, or DefaultType
func (r *Registry) Lookup(ext string) string {
	if ct, ok := r.types[ext]; ok {
		return ct
	}
	return DefaultType
}

// Extension returns the lower-cased text after the last dot of the final
// path element, or "" when there is none.
func Extension(path string) string {
	name := path
	if idx := strings.LastIndexAny(name, "/\\"); idx != -1 {
		name = name[idx+1:]
	}
	dot := strings.LastIndexByte(name, '.')
	if dot == -1 {
		return ""
	}
	return strings.ToLower(name[dot+1:])
}
