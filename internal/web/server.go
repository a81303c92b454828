// Package web exposes a small read-only JSON API over the league
// database, meant for the community site and overlays.
package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"cvr-league/internal/matches"
	"cvr-league/internal/models"
	"cvr-league/internal/roster"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Server struct {
	store   roster.Store
	matches *matches.Service
	log     *zap.SugaredLogger
}

func NewServer(store roster.Store, msvc *matches.Service, log *zap.SugaredLogger) *Server {
	return &Server{store: store, matches: msvc, log: log}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/teams", s.handleTeams).Methods(http.MethodGet)
	api.HandleFunc("/teams/{name}/roster", s.handleRoster).Methods(http.MethodGet)
	api.HandleFunc("/matches", s.handleMatches).Methods(http.MethodGet)
	return r
}

// Serve blocks until the listener fails.
func (s *Server) Serve(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.log.Infow("web api listening", "addr", addr)
	return srv.ListenAndServe()
}

type teamView struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	RoleTag string `json:"role_tag"`
}

type playerView struct {
	Username string `json:"username"`
	Captain  bool   `json:"captain"`
}

func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.store.ListTeams(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	out := make([]teamView, 0, len(teams))
	for _, t := range teams {
		out = append(out, teamView{ID: t.ID, Name: t.Name, RoleTag: t.RoleTag})
	}
	s.respond(w, out)
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	team, err := s.store.FindTeamByName(r.Context(), name)
	if err != nil {
		s.fail(w, err)
		return
	}
	if team == nil {
		http.Error(w, `{"error":"team not found"}`, http.StatusNotFound)
		return
	}

	players, err := s.store.ListRoster(r.Context(), team.ID)
	if err != nil {
		s.fail(w, err)
		return
	}

	out := make([]playerView, 0, len(players))
	for _, p := range players {
		out = append(out, playerView{
			Username: p.Username,
			Captain:  isCaptain(team, &p),
		})
	}
	s.respond(w, map[string]any{"team": team.Name, "players": out})
}

type matchView struct {
	MatchID string `json:"match_id"`
	TeamA   string `json:"team_a"`
	TeamB   string `json:"team_b"`
	BestOf  int    `json:"best_of"`
	Status  string `json:"status"`
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rows, err := s.matches.RecentMatches(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}

	out := make([]matchView, 0, len(rows))
	for _, m := range rows {
		out = append(out, matchView{
			MatchID: m.MatchID,
			TeamA:   m.TeamA,
			TeamB:   m.TeamB,
			BestOf:  m.BestOf,
			Status:  string(m.Status),
		})
	}
	s.respond(w, out)
}

func isCaptain(team *models.Team, p *models.Player) bool {
	return team.CaptainID != nil && p.UserID == *team.CaptainID
}

func (s *Server) respond(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warnw("encode response failed", "error", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.log.Errorw("api query failed", "error", err)
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}
