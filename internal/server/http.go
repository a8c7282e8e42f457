package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"caseforge/internal/logging"
)

// shutdownTimeout bounds the graceful drain on context cancellation.
const shutdownTimeout = 2 * time.Second

// maxBodyBytes bounds submit-case bodies; case texts are a few KB.
const maxBodyBytes = 4 << 20

// Handler builds the route table.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.handleHealth)
	mux.HandleFunc("/dashboard", a.handleDashboard)
	mux.HandleFunc("/next-instruction", a.handleNextInstruction)
	mux.HandleFunc("/submit-case", a.handleSubmitCase)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, requestID(r), notFound())
	})
	return mux
}

func requestID(r *http.Request) string {
	id := uuid.NewString()
	logging.Get(logging.CategoryServer).Debug("requête %s: %s %s depuis %s", id, r.Method, r.URL.Path, r.RemoteAddr)
	return id
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	if r.Method != http.MethodGet {
		writeError(w, reqID, methodNotAllowed(r.Method))
		return
	}
	writeJSON(w, http.StatusOK, a.Health())
}

func (a *App) handleDashboard(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	if r.Method != http.MethodGet {
		writeError(w, reqID, methodNotAllowed(r.Method))
		return
	}
	writeJSON(w, http.StatusOK, a.Dashboard())
}

func (a *App) handleNextInstruction(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	var agentID, topic string
	switch r.Method {
	case http.MethodGet:
		agentID = r.URL.Query().Get("agent_id")
		topic = r.URL.Query().Get("topic")
	case http.MethodPost:
		body, err := readBody(r)
		if err != nil {
			writeError(w, reqID, err)
			return
		}
		if len(body) > 0 {
			var params struct {
				AgentID string `json:"agent_id"`
				Topic   string `json:"topic"`
			}
			if err := json.Unmarshal(body, &params); err != nil {
				writeError(w, reqID, badRequest("invalid_payload", "corps JSON invalide: %v", err))
				return
			}
			agentID, topic = params.AgentID, params.Topic
		}
	default:
		writeError(w, reqID, methodNotAllowed(r.Method))
		return
	}

	response, err := a.NextInstruction(r.Context(), agentID, topic)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (a *App) handleSubmitCase(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	if r.Method != http.MethodPost {
		writeError(w, reqID, methodNotAllowed(r.Method))
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, reqID, badRequest("invalid_payload", "corps JSON invalide: %v", err))
		return
	}
	req, err := ParseSubmitBody(payload)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	response, err := a.SubmitCase(r.Context(), req)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, badRequest("invalid_payload", "lecture du corps: %v", err)
	}
	return body, nil
}

// writeJSON serializes with indent 2 and without HTML escaping so the
// French text stays readable over the wire.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		logging.Get(logging.CategoryServer).Error("sérialisation de la réponse: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind         string `json:"kind"`
	Reason       string `json:"reason"`
	RetryAfterMS int64  `json:"retry_after_ms,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, reqID string, err error) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		detail := errorDetail{Kind: reqErr.Kind, Reason: reqErr.Reason}
		if reqErr.RetryAfter > 0 {
			detail.RetryAfterMS = reqErr.RetryAfter.Milliseconds()
			w.Header().Set("Retry-After", strconv.Itoa(int(reqErr.RetryAfter.Seconds())))
		}
		writeJSON(w, reqErr.Status, errorBody{Error: detail})
		return
	}
	logging.Get(logging.CategoryServer).Error("requête %s: erreur interne: %v", reqID, err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
		Kind:      "internal",
		Reason:    "erreur interne du serveur",
		RequestID: reqID,
	}})
}

// Run binds the listener, serves until ctx is cancelled, then drains
// with a bounded shutdown. A clean shutdown returns nil.
func (a *App) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("écoute sur %s: %w", a.cfg.Addr(), err)
	}
	listener = netutil.LimitListener(listener, a.cfg.MaxConns)

	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			listener.Close()
			return fmt.Errorf("démarrage du watcher de schema: %w", err)
		}
	}
	defer a.Close()

	srv := &http.Server{Handler: a.Handler()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Server("écoute sur http://%s", listener.Addr())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
