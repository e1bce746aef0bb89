package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/Thorstarter/thorstarter-terra/core/types"
	"github.com/Thorstarter/thorstarter-terra/host"
	"github.com/Thorstarter/thorstarter-terra/log"
	"github.com/Thorstarter/thorstarter-terra/metrics"
)

const (
	// DefaultMaxBodySize bounds a request body (1 MB).
	DefaultMaxBodySize = 1 << 20
	// MaxBatchSize is the maximum number of requests in a single batch.
	MaxBatchSize = 100
)

// Config configures a Server.
type Config struct {
	// RequireSignatures rejects unsigned state-changing calls. The codec
	// must then implement types.AccountEncoder.
	RequireSignatures bool
	Codec             types.AddressCodec
	MaxBodySize       int64
	Metrics           *metrics.Metrics
	Logger            *log.Logger
}

// Server is the JSON-RPC HTTP server. It serves POST / for calls and
// GET /ws for the event stream.
type Server struct {
	api      *SaleAPI
	handlers map[string]handler
	mux      *http.ServeMux
	ws       *WSHandler
	maxBody  int64
	metrics  *metrics.Metrics
	log      *log.Logger
}

// NewServer creates a server driving backend and streaming feed.
func NewServer(backend Backend, feed *host.Feed, cfg Config) (*Server, error) {
	if cfg.Codec == nil {
		cfg.Codec = types.PlainCodec{}
	}
	enc, _ := cfg.Codec.(types.AccountEncoder)
	if cfg.RequireSignatures && enc == nil {
		return nil, errSignedPlain
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	api := &SaleAPI{backend: backend, signed: cfg.RequireSignatures, codec: cfg.Codec, encoder: enc}
	s := &Server{
		api:      api,
		handlers: api.handlers(),
		mux:      http.NewServeMux(),
		maxBody:  cfg.MaxBodySize,
		metrics:  cfg.Metrics,
		log:      cfg.Logger.Module("rpc"),
	}
	s.ws = NewWSHandler(feed, cfg.Metrics, s.log)
	s.mux.HandleFunc("/", s.handleRPC)
	s.mux.Handle("/ws", s.ws)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	})
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Close disconnects websocket clients.
func (s *Server) Close() { s.ws.Close() }

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		writeError(w, nil, ErrCodeParse, "failed to read request body")
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		s.handleBatch(r.Context(), w, body)
		return
	}
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, ErrCodeParse, "invalid JSON")
		return
	}
	writeJSON(w, s.HandleRequest(r.Context(), &req))
}

// handleBatch runs the requests in order; a batch is not atomic.
func (s *Server) handleBatch(ctx context.Context, w http.ResponseWriter, body []byte) {
	var reqs []Request
	if err := json.Unmarshal(body, &reqs); err != nil {
		writeError(w, nil, ErrCodeParse, "invalid JSON")
		return
	}
	if len(reqs) == 0 || len(reqs) > MaxBatchSize {
		writeError(w, nil, ErrCodeInvalidRequest, "batch must hold 1 to 100 requests")
		return
	}
	out := make([]*Response, len(reqs))
	for i := range reqs {
		out[i] = s.HandleRequest(ctx, &reqs[i])
	}
	writeJSON(w, out)
}

// unknownMethod labels requests whose method is not served, keeping
// client-chosen names out of the metric labels.
const unknownMethod = "unknown"

// HandleRequest dispatches one request.
func (s *Server) HandleRequest(ctx context.Context, req *Request) *Response {
	resp := &Response{JSONRPC: "2.0", ID: req.ID}
	if req.JSONRPC != "2.0" || req.Method == "" {
		resp.Error = &RPCError{Code: ErrCodeInvalidRequest, Message: "invalid request"}
		s.metrics.ObserveRPC(unknownMethod, ErrCodeInvalidRequest)
		return resp
	}
	h, ok := s.handlers[req.Method]
	if !ok {
		resp.Error = &RPCError{Code: ErrCodeMethodNotFound, Message: "method " + req.Method + " not found"}
		s.metrics.ObserveRPC(unknownMethod, ErrCodeMethodNotFound)
		return resp
	}
	result, err := h(ctx, req.Params)
	if err != nil {
		resp.Error = toRPCError(err)
		if resp.Error.Code == ErrCodeInternal {
			s.log.Error("rpc call failed", "method", req.Method, "err", err)
		}
		s.metrics.ObserveRPC(req.Method, resp.Error.Code)
		return resp
	}
	resp.Result = result
	s.metrics.ObserveRPC(req.Method, 0)
	return resp
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	writeJSON(w, &Response{
		JSONRPC: "2.0",
		Error:   &RPCError{Code: code, Message: message},
		ID:      id,
	})
}
