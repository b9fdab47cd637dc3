// Package api exposes the ledger over HTTP and ships the matching client.
// Appends mine inside the request handler, so responses to POST
// /chains/{id}/blocks arrive only once the proof-of-work search finishes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Perafan18/chain-forge/blockchain"
	"github.com/Perafan18/chain-forge/chainid"
	"github.com/Perafan18/chain-forge/ledger"
	"github.com/Perafan18/chain-forge/version"
)

// Config carries the server's listen address, timeouts and middleware
// settings. A zero MaxBodyBytes defaults to 1 MiB; a zero RateLimitRate
// disables the limiter.
type Config struct {
	Listen         string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	APIKey         string
	RateLimitRate  float64
	RateLimitBurst float64
	MaxBodyBytes   int64
}

type Server struct {
	ledger  *ledger.Service
	log     *slog.Logger
	cfg     Config
	limiter *Limiter
	srv     *http.Server
}

func NewServer(svc *ledger.Service, log *slog.Logger, cfg Config) *Server {
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	s := &Server{ledger: svc, log: log, cfg: cfg}
	if cfg.RateLimitRate > 0 {
		s.limiter = NewLimiter(cfg.RateLimitRate, cfg.RateLimitBurst, 1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/chains", s.handleChains)
	mux.HandleFunc("/chains/", s.handleChainSubtree)

	s.srv = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.withMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

// Handler returns the fully wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		OK:   true,
		Time: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, version.Get())
}

// handleChains serves the collection: GET lists chain identifiers, POST
// creates a chain.
func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ids, err := s.ledger.ListChains()
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ChainListResponse{Chains: ids})

	case http.MethodPost:
		info, err := s.ledger.CreateChain()
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.log.Info("chain created", "chain", info.ID)
		writeJSON(w, http.StatusCreated, CreateChainResponse{
			ID:      info.ID,
			Genesis: newBlockResponse(info.Genesis),
		})

	default:
		s.methodNotAllowed(w)
	}
}

// handleChainSubtree routes /chains/{id}, /chains/{id}/validate,
// /chains/{id}/blocks and /chains/{id}/blocks/{index}.
func (s *Server) handleChainSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/chains/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) == 0 || parts[0] == "" {
		s.notFound(w)
		return
	}

	id := parts[0]
	if !chainid.Valid(id) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid chain id"})
		return
	}

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			s.methodNotAllowed(w)
			return
		}
		s.getChain(w, id)

	case len(parts) == 2 && parts[1] == "validate":
		if r.Method != http.MethodGet {
			s.methodNotAllowed(w)
			return
		}
		s.validateChain(w, id)

	case len(parts) == 2 && parts[1] == "blocks":
		if r.Method != http.MethodPost {
			s.methodNotAllowed(w)
			return
		}
		s.addBlock(w, r, id)

	case len(parts) == 3 && parts[1] == "blocks":
		if r.Method != http.MethodGet {
			s.methodNotAllowed(w)
			return
		}
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid block index"})
			return
		}
		s.getBlock(w, id, index)

	default:
		s.notFound(w)
	}
}

func (s *Server) getChain(w http.ResponseWriter, id string) {
	blocks, err := s.ledger.GetChain(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := ChainResponse{ID: id, Length: len(blocks)}
	resp.Blocks = make([]BlockResponse, 0, len(blocks))
	for _, b := range blocks {
		resp.Blocks = append(resp.Blocks, newBlockResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) validateChain(w http.ResponseWriter, id string) {
	valid, err := s.ledger.Validate(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !valid {
		s.log.Warn("chain failed integrity validation", "chain", id)
	}
	writeJSON(w, http.StatusOK, ValidateResponse{ID: id, Valid: valid})
}

func (s *Server) addBlock(w http.ResponseWriter, r *http.Request, id string) {
	raw, err := readBodyLimited(r.Body, s.cfg.MaxBodyBytes)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	var req AddBlockRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}

	start := time.Now()
	block, err := s.ledger.AppendBlock(id, req.Data, req.Difficulty)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("block appended",
		"chain", id,
		"index", block.Index,
		"difficulty", block.Difficulty,
		"nonce", block.Nonce,
		"took", time.Since(start),
	)
	writeJSON(w, http.StatusCreated, newBlockResponse(block))
}

func (s *Server) getBlock(w http.ResponseWriter, id string, index int) {
	block, err := s.ledger.GetBlock(id, index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBlockResponse(block))
}

// writeError maps ledger and core errors onto status codes: not-found
// classes to 404, input validation to 422 and integrity failures, which are
// a server-side condition, to 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrChainNotFound), errors.Is(err, ledger.ErrBlockNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, ledger.ErrEmptyData), errors.Is(err, ledger.ErrBadDifficulty):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	case errors.Is(err, blockchain.ErrChainInvalid):
		s.log.Error("chain integrity compromised", "err", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	default:
		s.log.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func (s *Server) notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
}

func readBodyLimited(r io.Reader, limit int64) ([]byte, error) {
	lr := io.LimitReader(r, limit)
	b, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(b)) >= limit {
		return nil, errors.New("request too large")
	}
	return b, nil
}
