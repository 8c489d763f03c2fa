// ABOUTME: HTTP handlers for the diagnostics server
// ABOUTME: JSON state snapshots, control commands and the websocket stream
package diag

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Vigour-Plus-Plus/vigour-go/pkg/fan"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteTimeout = 2 * time.Second

// StateResponse is the JSON form of fan.State
type StateResponse struct {
	Frequency       float64 `json:"frequency"`
	Volume          float64 `json:"volume"`
	TargetFrequency float64 `json:"target_frequency"`
	TargetVolume    float64 `json:"target_volume"`
	CPULoad         float64 `json:"cpu_load"`
	Stream          string  `json:"stream"`
	Running         bool    `json:"running"`
	Manual          bool    `json:"manual"`
	Session         string  `json:"session,omitempty"`
	Backend         string  `json:"backend"`
	Error           string  `json:"error,omitempty"`
}

// ManualRequest is the body of POST /manual. At least one field is required.
type ManualRequest struct {
	Frequency *float64 `json:"frequency,omitempty"`
	Volume    *float64 `json:"volume,omitempty"`
}

func (s *Server) snapshot() StateResponse {
	st := s.ctrl.State()
	resp := StateResponse{
		Frequency:       st.Frequency,
		Volume:          st.Volume,
		TargetFrequency: st.TargetFrequency,
		TargetVolume:    st.TargetVolume,
		CPULoad:         st.CPULoad,
		Stream:          st.Stream.String(),
		Running:         st.Running,
		Manual:          st.Manual,
		Session:         st.Session,
		Backend:         st.Backend,
	}
	if err := s.ctrl.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleState handles GET /state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

// handleStart handles POST /start
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Start(); err != nil {
		status := http.StatusInternalServerError
		var devErr *fan.DeviceError
		if errors.As(err, &devErr) {
			status = http.StatusServiceUnavailable
		} else if errors.Is(err, fan.ErrClosed) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

// handleStop handles POST /stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Stop(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

// handleManual handles POST /manual
func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	var req ManualRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	if req.Frequency == nil && req.Volume == nil {
		writeError(w, http.StatusBadRequest, errors.New("frequency or volume required"))
		return
	}

	if req.Frequency != nil {
		if err := s.ctrl.SetManualFrequency(*req.Frequency); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if req.Volume != nil {
		if err := s.ctrl.SetManualVolume(*req.Volume); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

// handleAuto handles POST /auto
func (s *Server) handleAuto(w http.ResponseWriter, r *http.Request) {
	s.ctrl.ResumeAutomatic()
	writeJSON(w, http.StatusOK, s.snapshot())
}

// handleWebSocket streams a state snapshot after every load sample
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.logger.Debug("websocket client connected", zap.String("remote", r.RemoteAddr))

	samples, unsubscribe := s.ctrl.Subscribe()
	defer unsubscribe()

	// Reads only detect the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := s.writeState(conn); err != nil {
		return
	}

	for {
		select {
		case _, ok := <-samples:
			if !ok {
				return
			}
			if err := s.writeState(conn); err != nil {
				s.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-closed:
			return
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(wsWriteTimeout))
			return
		}
	}
}

func (s *Server) writeState(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(s.snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
