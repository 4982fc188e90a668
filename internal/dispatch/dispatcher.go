// Package dispatch fires the internal processing trigger for newly queued
// jobs. The call is fire-and-forget: the caller's latency is bounded by the
// trigger's connect/response timeout, never by the job itself.
package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/doclens/doclens/internal/config"
)

// Dispatcher delivers the "start processing" trigger with bounded retries.
// Only transport failures are retried: a connection error or a 5xx means
// the trigger never reached a worker. A 4xx means it was delivered and
// rejected, and a rejected trigger is not retried. Business failures after
// acceptance are reported through the job row, not through this call.
type Dispatcher struct {
	baseURL     string
	token       string
	client      *http.Client
	maxAttempts int
	backoffBase time.Duration
	log         *slog.Logger
}

func New(cfg config.DispatchConfig, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	return &Dispatcher{
		baseURL:     cfg.InternalBaseURL,
		token:       cfg.InternalToken,
		client:      &http.Client{Timeout: cfg.Timeout},
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		log:         log,
	}
}

// Dispatch delivers the trigger for jobID, blocking through its own retry
// loop; callers run it in a goroutine. If every attempt fails the job is
// left queued — the worker is the only component allowed to mark a job
// failed, and a queued job stays eligible for a later retry.
func (d *Dispatcher) Dispatch(jobID uuid.UUID) {
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		delivered, retryable := d.trigger(jobID)
		if delivered {
			return
		}
		if !retryable {
			return
		}
		if attempt < d.maxAttempts {
			time.Sleep(d.backoffBase << (attempt - 1))
		}
	}
	d.log.Error("dispatch attempts exhausted, job remains queued",
		"job_id", jobID, "attempts", d.maxAttempts)
}

func (d *Dispatcher) trigger(jobID uuid.UUID) (delivered, retryable bool) {
	body, _ := json.Marshal(map[string]string{"job_id": jobID.String()})

	req, err := http.NewRequest(http.MethodPost, d.baseURL+"/internal/v1/process", bytes.NewReader(body))
	if err != nil {
		d.log.Error("build dispatch request", "job_id", jobID, "error", err)
		return false, false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Token", d.token)

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Warn("dispatch trigger not delivered", "job_id", jobID, "error", err)
		return false, true
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, false
	case resp.StatusCode >= 500:
		d.log.Warn("dispatch trigger not delivered",
			"job_id", jobID, "error", fmt.Sprintf("status %d", resp.StatusCode))
		return false, true
	default:
		d.log.Error("dispatch trigger rejected",
			"job_id", jobID, "status", resp.StatusCode)
		return false, false
	}
}
