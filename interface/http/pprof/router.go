package pprof

import (
	"fmt"
	"github.com/gorilla/mux"
	"net/http"
	"net/http/pprof"
)

// ConstructRouter serves the runtime profiles, it expects to be mounted with its prefix stripped.
func ConstructRouter() http.Handler {
	r := mux.NewRouter()

	r.PathPrefix("/cmdline").HandlerFunc(pprof.Cmdline)
	r.PathPrefix("/profile").HandlerFunc(pprof.Profile)
	r.PathPrefix("/symbol").HandlerFunc(pprof.Symbol)
	r.PathPrefix("/trace").HandlerFunc(pprof.Trace)
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		req.URL.Path = fmt.Sprintf("/debug/pprof%s", req.URL.Path)
		pprof.Index(w, req)
	})

	return r
}
