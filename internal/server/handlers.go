package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"vtreporter/internal/config"
	"vtreporter/internal/recipients"
	"vtreporter/internal/report"
	"vtreporter/internal/store"
	logx "vtreporter/pkg/logx"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type reportResponse struct {
	*report.Snapshot
	CacheInfo report.CacheMeta `json:"cacheInfo"`
}

// handleReport serves the cached dashboard snapshot. A cold cache that cannot
// reach the store yields 503; a stale snapshot is still served.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	snap, meta, err := s.cache.Get(r.Context())
	if err != nil {
		s.log.Warn("report request failed", logx.Err(err))
		writeError(w, http.StatusServiceUnavailable, "report data is unavailable")
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{Snapshot: snap, CacheInfo: meta})
}

// handleRetranscode always queries live; retranscode decisions should not act
// on data up to two minutes old.
func (s *Server) handleRetranscode(w http.ResponseWriter, r *http.Request) {
	snap, err := s.builder.BuildRetranscode(r.Context())
	if err != nil {
		s.log.Warn("retranscode request failed", logx.Err(err))
		code := http.StatusInternalServerError
		if errors.Is(err, store.ErrUnavailable) {
			code = http.StatusServiceUnavailable
		}
		writeError(w, code, "retranscode data is unavailable")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	n := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 500 {
			n = parsed
		}
	}
	runs := s.sched.RecentRuns(r.Context(), n)
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"total": len(runs),
	})
}

func (s *Server) handleSchedule(w http.ResponseWriter, _ *http.Request) {
	cfg := s.sched.Schedule()
	resp := map[string]any{"mode": cfg.Mode}

	switch cfg.Mode {
	case config.ModeCron:
		resp["expressions"] = s.sched.Expressions()
		upcoming := s.sched.Upcoming(10)
		times := make([]string, len(upcoming))
		for i, t := range upcoming {
			times[i] = t.Format(time.RFC3339)
		}
		resp["upcomingToday"] = times
		resp["approximate"] = true
	default:
		resp["interval"] = map[string]any{
			"unit":  cfg.Unit,
			"value": cfg.Value,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type emailsResponse struct {
	Recipients []string `json:"recipients"`
	BCC        []string `json:"bcc"`
	Total      int      `json:"total"`
}

func toEmailsResponse(l recipients.List) emailsResponse {
	return emailsResponse{
		Recipients: l.Recipients,
		BCC:        l.BCC,
		Total:      len(l.Recipients) + len(l.BCC),
	}
}

func (s *Server) handleEmailsList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toEmailsResponse(s.recips.Get()))
}

type emailsRequest struct {
	Recipients []string `json:"recipients"`
	BCC        []string `json:"bcc"`
}

func (s *Server) handleEmailsAdd(w http.ResponseWriter, r *http.Request) {
	s.mutateEmails(w, r, s.recips.Add)
}

func (s *Server) handleEmailsRemove(w http.ResponseWriter, r *http.Request) {
	s.mutateEmails(w, r, s.recips.Remove)
}

func (s *Server) mutateEmails(w http.ResponseWriter, r *http.Request, op func(recipients, bcc []string) (recipients.List, error)) {
	var req emailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	list, err := op(req.Recipients, req.BCC)
	if err != nil {
		if errors.Is(err, recipients.ErrNoFields) {
			writeError(w, http.StatusBadRequest, "provide at least one of recipients or bcc")
			return
		}
		s.log.Error("recipient list update failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "could not persist recipient list")
		return
	}
	writeJSON(w, http.StatusOK, toEmailsResponse(list))
}
