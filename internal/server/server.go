// Package server wires the chat registries, the connection hub and the HTTP
// surface into a Server value that is constructed once and passed around.
package server

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/relaychat/internal/chat"
)

// Server owns every piece of shared state of one relay process. There are no
// package-level registries; each handler reaches state through its Server.
type Server struct {
	cfg       Config
	log       *zap.Logger
	directory *chat.Directory
	rooms     *chat.RoomRegistry
	router    *chat.Router
	hub       *Hub
	upgrader  websocket.Upgrader
}

// New builds a Server from cfg. A nil cfg means defaults. Seed data that
// cannot form a consistent Directory is fatal to initialization.
func New(cfg *Config, log *zap.Logger) (*Server, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	sanitized := cfg.sanitize()

	directory, err := chat.NewDirectory(sanitized.SeedUsers)
	if err != nil {
		return nil, fmt.Errorf("build directory: %w", err)
	}
	rooms := chat.NewRoomRegistry(sanitized.SeedRooms...)
	router := chat.NewRouter(directory, rooms, log)
	origins := newOriginPolicy(sanitized.AllowedOrigins, log.Named("origin"))

	return &Server{
		cfg:       sanitized,
		log:       log,
		directory: directory,
		rooms:     rooms,
		router:    router,
		hub:       NewHub(sanitized, directory, router, log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
	}, nil
}

// Config returns the sanitized configuration the server runs with.
func (s *Server) Config() Config {
	return s.cfg
}

// Directory returns the identity directory.
func (s *Server) Directory() *chat.Directory {
	return s.directory
}

// Rooms returns the room registry.
func (s *Server) Rooms() *chat.RoomRegistry {
	return s.rooms
}

// Hub returns the connection hub for shutdown coordination.
func (s *Server) Hub() *Hub {
	return s.hub
}

// StartHub runs the hub loop in its own goroutine. Call it before serving
// WebSocket requests.
func (s *Server) StartHub() {
	go s.hub.Run()
	s.log.Info("hub started and ready to manage WebSocket connections",
		zap.Int("seed_users", len(s.cfg.SeedUsers)),
		zap.Strings("seed_rooms", s.cfg.SeedRooms))
}

// Shutdown stops the hub, closing every open connection.
func (s *Server) Shutdown(timeout time.Duration) error {
	return s.hub.Shutdown(timeout)
}
