package v1

import (
	"net/http"
	"time"
)

type ExportedStatus struct {
	Status      string
	Connected   bool
	Swept       bool
	Zones       int
	ActiveZones int
	Updated     time.Time
}

type statusController struct {
	provider SnapshotProvider
}

func (s *statusController) getStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := s.provider.Snapshot()

	es := ExportedStatus{
		Status:    snapshot.Status,
		Connected: snapshot.Connected,
		Swept:     snapshot.Swept,
		Zones:     len(snapshot.Zones),
		Updated:   snapshot.Updated,
	}

	for _, z := range snapshot.Zones {
		if z.Deadline != nil {
			es.ActiveZones++
		}
	}

	writeJSON(w, es)
}
