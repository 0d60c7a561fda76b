package v1

import (
	"github.com/gorilla/mux"
	"github.com/shimmeringbee/irrigation/bridge"
	"net/http"
)

// SnapshotProvider returns the latest state published by the control loop.
type SnapshotProvider interface {
	Snapshot() bridge.Snapshot
}

func ConstructRouter(provider SnapshotProvider) http.Handler {
	r := mux.NewRouter()

	zc := zoneController{provider: provider}
	sc := statusController{provider: provider}

	r.HandleFunc("/zones", zc.listZones).Methods("GET")
	r.HandleFunc("/zones/{index}", zc.getZone).Methods("GET")
	r.HandleFunc("/status", sc.getStatus).Methods("GET")

	return r
}
