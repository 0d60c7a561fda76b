package v1

import (
	"encoding/json"
	"github.com/gorilla/mux"
	"github.com/shimmeringbee/irrigation/zone"
	"net/http"
	"strconv"
	"time"
)

type ExportedFailure struct {
	Code uint8
	Hint string
	At   time.Time
}

type ExportedZone struct {
	Number               uint8
	Name                 string
	State                string
	SafetyTimeoutSeconds int64
	Deadline             *time.Time `json:",omitempty"`
	Remaining            uint8
	Failures             int
	LastFailure          *ExportedFailure `json:",omitempty"`
}

func exportZone(s zone.Snapshot) ExportedZone {
	ez := ExportedZone{
		Number:               s.Number,
		Name:                 s.Name,
		State:                s.State,
		SafetyTimeoutSeconds: int64(s.SafetyTimeout / time.Second),
		Deadline:             s.Deadline,
		Remaining:            s.Remaining,
		Failures:             s.Failures,
	}

	if s.LastFailure != nil {
		ez.LastFailure = &ExportedFailure{Code: s.LastFailure.Code, Hint: s.LastFailure.Hint, At: s.LastFailure.At}
	}

	return ez
}

type zoneController struct {
	provider SnapshotProvider
}

func (z *zoneController) listZones(w http.ResponseWriter, r *http.Request) {
	snapshot := z.provider.Snapshot()

	apiZones := make([]ExportedZone, 0, len(snapshot.Zones))
	for _, s := range snapshot.Zones {
		apiZones = append(apiZones, exportZone(s))
	}

	writeJSON(w, apiZones)
}

func (z *zoneController) getZone(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)

	id, ok := params["index"]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	number, err := strconv.Atoi(id)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	for _, s := range z.provider.Snapshot().Zones {
		if int(s.Number) == number {
			writeJSON(w, exportZone(s))
			return
		}
	}

	http.NotFound(w, r)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Add("content-type", "application/json")
	w.Write(data)
}
