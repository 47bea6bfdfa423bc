package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/paramsync/internal/bridges/esp32"
	"github.com/nerrad567/paramsync/internal/parameter"
)

// ParameterList is the response body of GET /api/v1/parameters.
type ParameterList struct {
	Parameters    []parameter.Parameter `json:"parameters"`
	Count         int                   `json:"count"`
	StructureHash string                `json:"structure_hash"`
}

// LEDRing is the response body of GET /api/v1/parameters/{id}/leds.
type LEDRing struct {
	ParameterID string          `json:"parameter_id"`
	EncoderID   int             `json:"encoder_id"`
	ActiveIndex int             `json:"active_index"`
	LEDs        []parameter.RGB `json:"leds"`
}

// setParameterRequest is the body of PUT /api/v1/parameters/{id}.
type setParameterRequest struct {
	Value *float64 `json:"value"`
	Color string   `json:"color"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"version":         s.version,
		"esp32_connected": s.bridge.DeviceConnected(),
		"peers":           s.bridge.Hub().PeerCount(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Status(true))
}

func (s *Server) handleListParameters(w http.ResponseWriter, _ *http.Request) {
	reg := s.bridge.Registry()
	params := reg.List()
	if params == nil {
		params = []parameter.Parameter{}
	}

	hash := reg.StructureHash()
	if hash == "" {
		hash = reg.Fingerprint()
	}

	writeJSON(w, http.StatusOK, ParameterList{
		Parameters:    params,
		Count:         len(params),
		StructureHash: hash,
	})
}

func (s *Server) handleGetParameter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := s.bridge.Registry().Find(id)
	if !ok {
		writeNotFound(w, "parameter not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleSetParameter applies a local edit. The change is published to peers
// and drawn on the device exactly as a UI edit would be.
func (s *Server) handleSetParameter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setParameterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil && req.Color == "" {
		writeBadRequest(w, "value or color is required")
		return
	}
	if req.Color != "" {
		if _, err := parameter.ParseHex(req.Color); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
	}

	if _, ok := s.bridge.Registry().Find(id); !ok {
		writeNotFound(w, "parameter not found")
		return
	}

	rt := s.bridge.Router()
	var (
		p  parameter.Parameter
		ok bool
	)
	if req.Value != nil {
		p, ok = rt.SetValue(id, *req.Value)
	}
	if req.Color != "" {
		p, ok = rt.SetColor(id, req.Color)
	}
	if !ok {
		// Removed by a structure sync between the lookup and the edit.
		writeNotFound(w, "parameter not found")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetLEDs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := s.bridge.Registry().Find(id)
	if !ok {
		writeNotFound(w, "parameter not found")
		return
	}

	// Unmapped parameters are drawn on encoder 0.
	encoderID, _ := esp32.EncoderFor(id)

	writeJSON(w, http.StatusOK, LEDRing{
		ParameterID: id,
		EncoderID:   encoderID,
		ActiveIndex: parameter.ActiveLEDIndex(p.Value, p.LEDCount),
		LEDs:        parameter.LEDFrame(p),
	})
}
