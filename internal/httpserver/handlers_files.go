package httpserver

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"skiff/internal/storage"

	"github.com/go-chi/chi/v5"
)

// handleUpload accepts one or more files in the multipart field
// "files" and answers with the stored descriptors. Parts are streamed
// straight to disk; nothing is buffered in memory, so the 25 GB
// default cap is workable.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected a multipart upload")
		return
	}

	uploaded := make([]storage.FileInfo, 0, 4)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if isBodyTooLarge(err) {
				writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
				return
			}
			log.Printf("upload: next part: %v", err)
			writeError(w, http.StatusBadRequest, "malformed multipart upload")
			return
		}
		if part.FormName() != "files" || part.FileName() == "" {
			part.Close()
			continue
		}

		name := part.FileName()
		info, err := s.store.Save(name, part)
		part.Close()
		if err != nil {
			if isBodyTooLarge(err) {
				writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
				return
			}
			log.Printf("upload: save %q: %v", name, err)
			writeError(w, http.StatusInternalServerError, "failed to store file")
			return
		}
		log.Printf("upload: stored %s (%d bytes)", info.Filename, info.Size)
		uploaded = append(uploaded, info)
	}

	if len(uploaded) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided")
		return
	}
	writeJSON(w, http.StatusOK, uploaded)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.List()
	if err != nil {
		log.Printf("files: list: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "filename")
	f, info, err := s.store.Open(name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		log.Printf("download %q: %v", name, err)
		writeError(w, http.StatusInternalServerError, "failed to open file")
		return
	}
	defer f.Close()

	display := storage.DisplayName(name)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", display))
	// ServeContent handles Range requests, so interrupted downloads of
	// large files can resume.
	http.ServeContent(w, r, display, info.ModTime(), f)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "filename")
	if err := s.store.Delete(name); err != nil {
		if errors.Is(err, storage.ErrInvalidName) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		log.Printf("delete %q: %v", name, err)
		writeError(w, http.StatusInternalServerError, "failed to delete file")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

// pathParam returns a decoded chi URL parameter. Filenames with spaces
// or unicode arrive percent-encoded.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if dec, err := url.PathUnescape(v); err == nil {
		return dec
	}
	return v
}

func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
