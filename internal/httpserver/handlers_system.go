package httpserver

import (
	"fmt"
	"log"
	"net/http"

	"skiff/internal/sysinfo"

	qrcode "github.com/skip2/go-qrcode"
)

func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sys.Snapshot(r.Context()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleQR renders the server's LAN URL as a PNG so phones can join by
// pointing a camera at another screen.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	addr, err := sysinfo.LocalAddr()
	if err != nil {
		log.Printf("qr: resolve lan address: %v", err)
		writeError(w, http.StatusInternalServerError, "cannot determine lan address")
		return
	}
	url := fmt.Sprintf("http://%s:%d", addr, s.cfg.Port)
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		log.Printf("qr: encode %s: %v", url, err)
		writeError(w, http.StatusInternalServerError, "failed to render qr code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
