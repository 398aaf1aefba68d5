package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	Lm "github.com/abiolaogu/voxguard-detectord/internal/middleware"
	"github.com/abiolaogu/voxguard-detectord/internal/detector"
	"github.com/abiolaogu/voxguard-detectord/pkg/apperror"
	"github.com/abiolaogu/voxguard-detectord/pkg/metrics"
)

// RouterDeps wires the detector into the HTTP boundary.
type RouterDeps struct {
	Detector *detector.Detector
}

// NewRouter builds the Chi router exposing the registration endpoint,
// health check, and metrics. cleanup stops any background workers
// started by the router (currently none; retained for symmetry with
// the graceful-shutdown hook in cmd/detectord).
func NewRouter(d RouterDeps) (http.Handler, func()) {
	r := chi.NewRouter()

	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(Lm.AccessLoggerFromEnv())

	metrics.Register(prometheus.DefaultRegisterer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if IsDraining() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"draining"}` + "\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Post("/v1/calls", registerCallHandler(d.Detector))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found"}`))
	})

	return r, func() {}
}

// callRequest is the wire shape for POST /v1/calls (§6.1).
type callRequest struct {
	CallID             string `json:"call_id"`
	ANumber            string `json:"a_number"`
	BNumber            string `json:"b_number"`
	SourceIP           string `json:"source_ip"`
	SwitchID           string `json:"switch_id"`
	RawCallID          string `json:"raw_call_id"`
	PAssertedIdentity  string `json:"p_asserted_identity"`
	FromHeader         string `json:"from_header"`
	CallerIDDisplay    string `json:"caller_id_display"`
	StirShakenPresent  bool   `json:"stir_shaken_present"`
	StirShakenVerified bool   `json:"stir_shaken_verified"`
}

type callResponse struct {
	Status          string                  `json:"status"`
	CallID          string                  `json:"call_id,omitempty"`
	DistinctCallers int                     `json:"distinct_callers"`
	Threshold       int                     `json:"threshold"`
	Confidence      float64                 `json:"confidence"`
	FraudTypes      []string                `json:"fraud_types,omitempty"`
	Action          string                  `json:"action"`
	Alert           *detector.AlertPayload  `json:"alert,omitempty"`
	LatencyUs       int64                   `json:"latency_us"`
}

func registerCallHandler(d *detector.Detector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		var req callRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}

		res, err := d.RegisterCall(r.Context(), detector.CallRegistrationCommand{
			CallID:             req.CallID,
			ANumber:            req.ANumber,
			BNumber:            req.BNumber,
			SourceIP:           req.SourceIP,
			SwitchID:           req.SwitchID,
			RawCallID:          req.RawCallID,
			PAssertedIdentity:  req.PAssertedIdentity,
			FromHeader:         req.FromHeader,
			CallerIDDisplay:    req.CallerIDDisplay,
			StirShakenPresent:  req.StirShakenPresent,
			StirShakenVerified: req.StirShakenVerified,
		})
		if err != nil {
			status := http.StatusInternalServerError
			if apperror.Is(err, apperror.Validation) {
				status = http.StatusBadRequest
			}
			log.Error().Err(err).Dur("latency", time.Since(start)).Msg("register_call failed")
			writeError(w, status, err.Error())
			return
		}

		metrics.CallsProcessedTotal.WithLabelValues(string(res.Status)).Inc()
		metrics.RegistrationLatencySeconds.Observe(time.Since(start).Seconds())
		if res.Alert != nil {
			metrics.AlertsTotal.WithLabelValues(res.Alert.FraudType, res.Alert.Severity).Inc()
		}
		if res.Status == detector.StatusBlocked {
			metrics.BlockedCallsTotal.WithLabelValues(req.SourceIP).Inc()
		}

		fraudTypes := make([]string, len(res.FraudTypes))
		for i, ft := range res.FraudTypes {
			fraudTypes[i] = string(ft)
		}

		writeJSON(w, http.StatusOK, callResponse{
			Status:          string(res.Status),
			CallID:          res.CallID,
			DistinctCallers: res.DistinctCallers,
			Threshold:       res.Threshold,
			Confidence:      res.Confidence.Value(),
			FraudTypes:      fraudTypes,
			Action:          string(res.Action),
			Alert:           res.Alert,
			LatencyUs:       res.LatencyUs,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
