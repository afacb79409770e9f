package providers

import (
	"net/http"

	"juju/internal/structures"
)

type RouterProviderInterface interface {
	Get(url string, handler http.Handler)
	Post(url string, handler http.Handler)
	GetRoutes() []structures.Route
}

type RouterProvider struct {
	routes []structures.Route
	index  map[string]int
}

func (rp *RouterProvider) Get(url string, handler http.Handler) {
	rp.handle(http.MethodGet, url, handler)
}

func (rp *RouterProvider) Post(url string, handler http.Handler) {
	rp.handle(http.MethodPost, url, handler)
}

// handle registers method and url once; registering the pair again replaces the handler.
func (rp *RouterProvider) handle(method, url string, handler http.Handler) {
	route := structures.Route{
		Method:  method,
		Url:     url,
		Handler: methodHandler(method, handler),
	}
	key := route.Pattern()
	if i, ok := rp.index[key]; ok {
		rp.routes[i] = route
		return
	}
	rp.index[key] = len(rp.routes)
	rp.routes = append(rp.routes, route)
}

func (rp *RouterProvider) GetRoutes() []structures.Route {
	return rp.routes
}

func NewRouterProvider() RouterProviderInterface {
	return &RouterProvider{index: make(map[string]int)}
}

func methodHandler(method string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
