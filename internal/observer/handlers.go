package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"

	"github.com/roach88/scanrt/internal/engine"
	"github.com/roach88/scanrt/internal/vartable"
)

type varRsp struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Mode   string `json:"mode"`
	Value  int32  `json:"value"`
	Forced bool   `json:"forced"`
}

type valueReq struct {
	Value *int32 `json:"value"`
}

type stateRsp struct {
	Running     bool     `json:"running"`
	RunID       string   `json:"run_id,omitempty"`
	Ticks       uint64   `json:"ticks"`
	CurrentTime int64    `json:"current_time_ns"`
	Stats       statsRsp `json:"stats"`
}

type statsRsp struct {
	Ticks            uint64 `json:"ticks"`
	Overruns         uint64 `json:"overruns"`
	Lagged           uint64 `json:"lagged"`
	Notifications    uint64 `json:"notifications"`
	NoObserver       uint64 `json:"no_observer"`
	UnknownVariables uint64 `json:"unknown_variables"`
	ProgramPanics    uint64 `json:"program_panics"`
	CallbackPanics   uint64 `json:"callback_panics"`
}

type changesRsp struct {
	Last    uint64  `json:"last"`
	Entries []Entry `json:"entries"`
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (s *Server) listVars(w http.ResponseWriter, _ *http.Request) {
	out := make([]varRsp, 0, s.engine.Len())
	for i, n := 0, s.engine.Len(); i < n; i++ {
		v, err := s.describe(i)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getVar(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.resolveOr404(w, r)
	if !ok {
		return
	}
	v, err := s.describe(idx)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) putVar(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, true, s.engine.WriteInt)
}

func (s *Server) forceVar(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, true, s.engine.Force)
}

func (s *Server) releaseVar(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, false, func(idx int, _ int32) error {
		return s.engine.Release(idx)
	})
}

func (s *Server) mutate(w http.ResponseWriter, r *http.Request, needValue bool, op func(int, int32) error) {
	idx, ok := s.resolveOr404(w, r)
	if !ok {
		return
	}

	var value int32
	if needValue {
		var req valueReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
			return
		}
		if req.Value == nil {
			writeError(w, http.StatusBadRequest, errors.New(`body must carry "value"`))
			return
		}
		value = *req.Value
	}

	if err := op(idx, value); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	v, err := s.describe(idx)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) listChanges(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if q := r.URL.Query().Get("since"); q != "" {
		n, err := strconv.ParseUint(q, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid since %q", q))
			return
		}
		since = n
	}

	entries, last := s.feed.Since(since)
	writeJSON(w, http.StatusOK, changesRsp{Last: last, Entries: entries})
}

func (s *Server) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) start(w http.ResponseWriter, _ *http.Request) {
	// The run outlives the request.
	if err := s.engine.Start(context.Background()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) stop(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Stop(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) resource(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	cpu, err := proc.CPUPercent()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resourceRsp{CPUPercent: cpu, MemorySize: mem.RSS})
}

func (s *Server) snapshot() stateRsp {
	st := s.engine.State()
	stats := s.engine.Stats()
	rsp := stateRsp{
		Running: st.Running,
		RunID:   st.RunID,
		Ticks:   st.Ticks,
		Stats:   statsRsp(stats),
	}
	if !st.CurrentTime.IsZero() {
		rsp.CurrentTime = st.CurrentTime.UnixNano()
	}
	return rsp
}

func (s *Server) describe(idx int) (varRsp, error) {
	value, err := s.engine.ReadInt(idx)
	if err != nil {
		return varRsp{}, err
	}
	forced, err := s.engine.Forced(idx)
	if err != nil {
		return varRsp{}, err
	}
	slot := s.engine.Slots()[idx]
	return varRsp{
		Index:  idx,
		Name:   slot.Name,
		Type:   slot.Type,
		Mode:   slot.Mode().String(),
		Value:  value,
		Forced: forced,
	}, nil
}

// resolveOr404 maps the {ref} path segment, an index or a variable name, to
// an index.
func (s *Server) resolveOr404(w http.ResponseWriter, r *http.Request) (int, bool) {
	ref := mux.Vars(r)["ref"]
	if idx, err := strconv.Atoi(ref); err == nil {
		if idx < 0 || idx >= s.engine.Len() {
			writeError(w, http.StatusNotFound, fmt.Errorf("index %d out of range", idx))
			return 0, false
		}
		return idx, true
	}
	idx, err := s.engine.Lookup(ref)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return 0, false
	}
	return idx, true
}

func statusFor(err error) int {
	switch {
	case engine.IsIndexOutOfRange(err), errors.Is(err, vartable.ErrUnknownName):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
