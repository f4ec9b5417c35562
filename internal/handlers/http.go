package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/mx-roomstats-go/internal/i18n"
	"github.com/mx-roomstats-go/internal/matrix"
	"github.com/mx-roomstats-go/internal/services/media"
	"github.com/mx-roomstats-go/internal/services/profile"
	"github.com/mx-roomstats-go/internal/services/stats"
	"github.com/sirupsen/logrus"
)

// Server exposes the statistics and media services over a read-only HTTP
// API for the UI layer.
type Server struct {
	client     matrix.Client
	resolver   *media.Resolver
	aggregator *stats.Aggregator
	profiles   *profile.Manager
	localizer  *i18n.Localizer
	logger     *logrus.Logger
	router     *mux.Router
}

// NewServer creates the HTTP API server
func NewServer(client matrix.Client, resolver *media.Resolver, aggregator *stats.Aggregator, profiles *profile.Manager, localizer *i18n.Localizer, logger *logrus.Logger) *Server {
	s := &Server{
		client:     client,
		resolver:   resolver,
		aggregator: aggregator,
		profiles:   profiles,
		localizer:  localizer,
		logger:     logger,
		router:     mux.NewRouter(),
	}
	s.routes()
	return s
}

// Router returns the configured handler
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/rooms/{roomID}/stats", s.handleRoomStats).Methods(http.MethodGet)
	api.HandleFunc("/media/{server}/{mediaID}", s.handleMedia).Methods(http.MethodGet)
	api.HandleFunc("/avatar/{userID}", s.handleAvatar).Methods(http.MethodGet)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

func (s *Server) handleRoomStats(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomID"]

	result := s.aggregator.Collect(r.Context(), s.client, roomID, nil)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.WithError(err).WithField("room_id", roomID).Warn("Failed to encode statistics response")
	}
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	contentID := "mxc://" + vars["server"] + "/" + vars["mediaID"]

	var thumb *media.ThumbnailSpec
	width, _ := strconv.Atoi(r.URL.Query().Get("width"))
	height, _ := strconv.Atoi(r.URL.Query().Get("height"))
	if width > 0 && height > 0 {
		thumb = &media.ThumbnailSpec{
			Width:  width,
			Height: height,
			Method: r.URL.Query().Get("method"),
		}
	}

	blob := s.resolver.Resolve(r.Context(), s.client, contentID, thumb)
	if blob == nil {
		s.writeNotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", blob.ContentType)
	w.Write(blob.Data)
}

func (s *Server) handleAvatar(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	avatarURI, ok := s.profiles.AvatarURI(r.Context(), userID)
	if !ok {
		s.writeNotFound(w, r)
		return
	}

	blob := s.resolver.ResolveAvatar(r.Context(), s.client, avatarURI)
	if blob == nil {
		s.writeNotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", blob.ContentType)
	w.Write(blob.Data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) writeNotFound(w http.ResponseWriter, r *http.Request) {
	lang := r.URL.Query().Get("lang")
	http.Error(w, s.localizer.Get(lang, i18n.MsgNotFound, nil), http.StatusNotFound)
}
