package introspect

import (
	"context"
	"fmt"
	"slices"

	"github.com/getkin/kin-openapi/openapi3"
)

// OpenAPIIntrospector reads routes from an OpenAPI document
type OpenAPIIntrospector struct {
	filePath string
}

// NewOpenAPIIntrospector creates an introspector for the given document
func NewOpenAPIIntrospector(filePath string) (*OpenAPIIntrospector, error) {
	if filePath == "" {
		return nil, fmt.Errorf("%w: empty file path", ErrInvalidInput)
	}
	return &OpenAPIIntrospector{filePath: filePath}, nil
}

// Routes loads the document and lists its operations sorted by path and method
func (p *OpenAPIIntrospector) Routes(ctx context.Context) ([]Route, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromFile(p.filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	if doc.Paths == nil {
		return nil, nil
	}

	items := doc.Paths.Map()
	paths := make([]string, 0, len(items))
	for path := range items {
		paths = append(paths, path)
	}
	slices.Sort(paths)

	var routes []Route
	for _, path := range paths {
		item := items[path]
		if item == nil {
			continue
		}

		ops := item.Operations()
		methods := make([]string, 0, len(ops))
		for method := range ops {
			methods = append(methods, method)
		}
		slices.Sort(methods)

		for _, method := range methods {
			routes = append(routes, p.route(method, path, ops[method], item.Parameters))
		}
	}

	return routes, nil
}

// route converts an OpenAPI operation to a Route
func (p *OpenAPIIntrospector) route(method, path string, op *openapi3.Operation, pathParams openapi3.Parameters) Route {
	r := Route{
		Method:      method,
		Template:    NormalizePath(path),
		Path:        ToTemplate(path),
		OperationID: op.OperationID,
	}

	// path-level parameters first
	params := append(slices.Clone(pathParams), op.Parameters...)
	for _, ref := range params {
		param := ref.Value
		if param == nil {
			continue
		}
		switch param.In {
		case openapi3.ParameterInQuery:
			r.Query = appendUnique(r.Query, param.Name)
		case openapi3.ParameterInHeader:
			r.Headers = appendUnique(r.Headers, param.Name)
		case openapi3.ParameterInCookie:
			r.Cookies = appendUnique(r.Cookies, param.Name)
		}
	}

	return r
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}
