package httpserver

import (
	"net/http"

	"skiff/internal/chat"
)

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	chat.ServeWS(s.hub, w, r)
}
