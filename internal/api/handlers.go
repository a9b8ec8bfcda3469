// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"grimm.is/netcapture/internal/ebpf/capture"
	"grimm.is/netcapture/internal/netmon"
)

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime"`
	Modules map[string]string `json:"modules"`
}

// handleHealth reports healthy only while every module is attached.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Uptime:  time.Since(s.startTime).Truncate(time.Second).String(),
		Modules: make(map[string]string, len(s.modules)),
	}

	code := http.StatusOK
	for _, m := range s.modules {
		st := m.Status()
		resp.Modules[st.Interface] = st.State
		if st.State != capture.StateAttached.String() {
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	respondWithJSON(w, code, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	out := make([]netmon.Status, 0, len(s.modules))
	for _, m := range s.modules {
		out = append(out, m.Status())
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) handleInterfaceStatus(w http.ResponseWriter, r *http.Request) {
	iface := mux.Vars(r)["interface"]
	for _, m := range s.modules {
		if st := m.Status(); st.Interface == iface {
			respondWithJSON(w, http.StatusOK, st)
			return
		}
	}
	respondWithError(w, http.StatusNotFound, "no module captures on "+iface)
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
