// Package httpapi serves the query surface and the instruction endpoint over
// HTTP, plus a websocket stream of program events.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/solji-labs/solji-program-sub000/internal/app/events"
	"github.com/solji-labs/solji-program-sub000/internal/app/metrics"
	"github.com/solji-labs/solji-program-sub000/internal/app/program"
	donationsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/donation"
	fortunesvc "github.com/solji-labs/solji-program-sub000/internal/app/services/fortune"
	incensesvc "github.com/solji-labs/solji-program-sub000/internal/app/services/incense"
	leaderboardsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/leaderboard"
	stakingsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/staking"
	templesvc "github.com/solji-labs/solji-program-sub000/internal/app/services/temple"
	wishsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/wish"
	"github.com/solji-labs/solji-program-sub000/internal/app/storage"
	"github.com/solji-labs/solji-program-sub000/internal/middleware"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
	"github.com/solji-labs/solji-program-sub000/pkg/logger"
)

// Server wires the HTTP routes.
type Server struct {
	processor *program.Processor
	svc       program.Services
	bus       *events.Bus
	log       *logger.Logger

	router chi.Router
}

// Options configures optional middleware.
type Options struct {
	RateLimit      int
	RateBurst      int
	AllowedOrigins []string
}

// New builds the server and its route table.
func New(processor *program.Processor, svc program.Services, bus *events.Bus, opts Options, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	s := &Server{processor: processor, svc: svc, bus: bus, log: log}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog(log))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(middleware.NewCORS(opts.AllowedOrigins).Handler)
	}
	if opts.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(opts.RateLimit, opts.RateBurst, log)
		r.Use(limiter.Handler)
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/events", s.handleEvents)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/instructions/{name}", s.handleInstruction)

		r.Get("/temple/config", s.handleTempleConfig)
		r.Get("/temple/stats", s.handleTempleStats)
		r.Get("/temple/incense-types/{typeID}", s.handleIncenseType)

		r.Get("/users/{owner}", s.handleUser)
		r.Get("/users/{owner}/donation", s.handleDonation)
		r.Get("/users/{owner}/medal", s.handleMedal)
		r.Get("/users/{owner}/tower", s.handleTower)
		r.Get("/users/{owner}/wishes/{seq}", s.handleWish)
		r.Get("/users/{owner}/draws/{seq}", s.handleDraw)

		r.Get("/leaderboard/{period}", s.handleLeaderboard)
	})
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInstruction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var args json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		writeError(w, s.log, program.ErrBadArguments)
		return
	}
	result, err := s.processor.Execute(r.Context(), name, args)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"result": result})
}

func (s *Server) handleTempleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.svc.Temple.Config(r.Context())
	respond(w, s.log, cfg, err)
}

func (s *Server) handleTempleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Temple.Stats(r.Context())
	respond(w, s.log, stats, err)
}

func (s *Server) handleIncenseType(w http.ResponseWriter, r *http.Request) {
	typeID, ok := parseUint16(w, s.log, chi.URLParam(r, "typeID"))
	if !ok {
		return
	}
	it, err := s.svc.Temple.IncenseType(r.Context(), typeID)
	respond(w, s.log, it, err)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseOwner(w, s.log, r)
	if !ok {
		return
	}
	st, inc, err := s.svc.Users.Get(r.Context(), owner)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"state": st, "incense": inc})
}

func (s *Server) handleDonation(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseOwner(w, s.log, r)
	if !ok {
		return
	}
	don, err := s.svc.Donation.State(r.Context(), owner)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if don == nil {
		writeError(w, s.log, storage.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, don)
}

func (s *Server) handleMedal(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseOwner(w, s.log, r)
	if !ok {
		return
	}
	nft, err := s.svc.Staking.Medal(r.Context(), owner)
	respond(w, s.log, nft, err)
}

func (s *Server) handleTower(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseOwner(w, s.log, r)
	if !ok {
		return
	}
	tower, err := s.svc.Wish.Tower(r.Context(), owner)
	respond(w, s.log, tower, err)
}

func (s *Server) handleWish(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseOwner(w, s.log, r)
	if !ok {
		return
	}
	seq, ok := parseUint64(w, s.log, chi.URLParam(r, "seq"))
	if !ok {
		return
	}
	pub, err := s.svc.Wish.Get(r.Context(), owner, seq)
	respond(w, s.log, pub, err)
}

func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseOwner(w, s.log, r)
	if !ok {
		return
	}
	seq, ok := parseUint64(w, s.log, chi.URLParam(r, "seq"))
	if !ok {
		return
	}
	rec, err := s.svc.Fortune.Record(r.Context(), owner, seq)
	respond(w, s.log, rec, err)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := s.svc.Leaderboard.Board(r.Context(), chi.URLParam(r, "period"))
	respond(w, s.log, board, err)
}

func parseOwner(w http.ResponseWriter, log *logger.Logger, r *http.Request) (pda.Address, bool) {
	owner, err := pda.FromBase58(chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, log, program.ErrBadArguments)
		return pda.Address{}, false
	}
	return owner, true
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, wishsvc.ErrWishNotFound),
		errors.Is(err, wishsvc.ErrTowerNotFound),
		errors.Is(err, stakingsvc.ErrNoMedal),
		errors.Is(err, leaderboardsvc.ErrUserNotRanked),
		errors.Is(err, templesvc.ErrUnknownIncenseType):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrAlreadyExists),
		errors.Is(err, donationsvc.ErrUserHasBuddhaNFT),
		errors.Is(err, wishsvc.ErrAlreadyLiked),
		errors.Is(err, wishsvc.ErrNotLiked),
		errors.Is(err, wishsvc.ErrSnapshotExists),
		errors.Is(err, stakingsvc.ErrMedalAlreadyStaked),
		errors.Is(err, stakingsvc.ErrMedalNotStaked):
		return http.StatusConflict
	case errors.Is(err, storage.ErrInsufficientFunds),
		errors.Is(err, incensesvc.ErrInsufficientBalance),
		errors.Is(err, donationsvc.ErrInsufficientDonation),
		errors.Is(err, fortunesvc.ErrInsufficientMerit):
		return http.StatusPaymentRequired
	case errors.Is(err, incensesvc.ErrDailyBurnLimitExceeded),
		errors.Is(err, fortunesvc.ErrDailyIncenseLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, templesvc.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, program.ErrUnknownInstruction),
		errors.Is(err, program.ErrBadArguments),
		errors.Is(err, incensesvc.ErrInactiveIncenseType),
		errors.Is(err, incensesvc.ErrInvalidQuantity),
		errors.Is(err, donationsvc.ErrAmountMustBeGreaterThanZero),
		errors.Is(err, wishsvc.ErrEmptyContentHash),
		errors.Is(err, leaderboardsvc.ErrInvalidPeriod):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respond(w http.ResponseWriter, log *logger.Logger, payload interface{}, err error) {
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parseUint64(w http.ResponseWriter, log *logger.Logger, s string) (uint64, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		writeError(w, log, program.ErrBadArguments)
		return 0, false
	}
	return n, true
}

func parseUint16(w http.ResponseWriter, log *logger.Logger, s string) (uint16, bool) {
	n, ok := parseUint64(w, log, s)
	if !ok || n > 0xFFFF {
		if ok {
			writeError(w, log, program.ErrBadArguments)
		}
		return 0, false
	}
	return uint16(n), true
}
