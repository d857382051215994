// Package httpapi serves the upload form and turns uploaded videos into
// landmark CSV downloads.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fiapx/fiapx-pose-service/internal/infra/metrics"
	"github.com/fiapx/fiapx-pose-service/internal/pipeline"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const indexHTML = `<!doctype html>
<title>Pose Landmarks → CSV</title>
<h1>Upload a video</h1>
<form method=post enctype=multipart/form-data action="/upload">
  <input type=file name=video required>
  <button type=submit>Process</button>
</form>
<p>Returns a CSV with per-frame 33 landmarks × (x,y,z,visibility).</p>
`

// multipartMemory is how much of a multipart body is kept in memory before
// the rest spills to temporary files.
const multipartMemory = 32 << 20

type Runner interface {
	Run(ctx context.Context, path string) (*pipeline.Output, error)
}

type Config struct {
	UploadDir         string
	MaxUploadBytes    int64
	AllowedExtensions []string
}

type Server struct {
	runner  Runner
	cfg     Config
	allowed map[string]bool
	logger  *zap.Logger
	now     func() time.Time
}

func NewServer(runner Runner, cfg Config, logger *zap.Logger) (*Server, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return &Server{
		runner:  runner,
		cfg:     cfg,
		allowed: allowed,
		logger:  logger,
		now:     time.Now,
	}, nil
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/upload", s.handleUpload)
	metrics.Register(mux)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   s.now().UTC().Format("2006-01-02T15:04:05.000000") + "Z",
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	code := s.upload(w, r)
	metrics.UploadsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// upload writes the whole response and returns its status code.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) int {
	if r.ContentLength > s.cfg.MaxUploadBytes {
		return writeError(w, http.StatusRequestEntityTooLarge, "File too large")
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		}
		return writeError(w, http.StatusBadRequest, "No file part")
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("video")
	if errors.Is(err, http.ErrMissingFile) {
		// A file input submitted without a selection arrives as a plain value.
		if _, ok := r.MultipartForm.Value["video"]; ok {
			return writeError(w, http.StatusBadRequest, "No selected file")
		}
		return writeError(w, http.StatusBadRequest, "No file part")
	}
	if err != nil {
		return writeError(w, http.StatusBadRequest, "No file part")
	}
	defer file.Close()

	if header.Filename == "" {
		return writeError(w, http.StatusBadRequest, "No selected file")
	}
	if !s.allowedFile(header.Filename) {
		return writeError(w, http.StatusBadRequest, "Unsupported file type")
	}

	uid := strings.ReplaceAll(uuid.NewString(), "-", "")
	log := s.logger.With(zap.String("upload_id", uid), zap.String("filename", header.Filename))

	savePath := filepath.Join(s.cfg.UploadDir, uid+"_"+secureFilename(header.Filename))
	if err := saveUpload(file, savePath); err != nil {
		log.Error("failed to save upload", zap.Error(err))
		return writeError(w, http.StatusInternalServerError, "Failed to save upload")
	}
	defer os.Remove(savePath)

	out, err := s.runner.Run(r.Context(), savePath)
	if err != nil {
		var openErr *pipeline.OpenError
		if errors.As(err, &openErr) {
			log.Info("rejected unreadable video", zap.Error(err))
			return writeError(w, http.StatusBadRequest, "Failed to open video")
		}
		log.Error("pose extraction failed", zap.Error(err))
		return writeError(w, http.StatusInternalServerError, "Processing failed")
	}
	defer out.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=pose_landmarks_%s.csv", uid))
	w.Header().Set("Content-Length", strconv.FormatInt(out.Size(), 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, out); err != nil {
		log.Warn("failed to stream csv", zap.Error(err))
	}

	log.Info("upload processed",
		zap.Int("rows", out.Rows),
		zap.Int("detected_frames", out.DetectedFrames),
		zap.Duration("elapsed", out.Elapsed),
	)
	return http.StatusOK
}

func (s *Server) allowedFile(name string) bool {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return false
	}
	return s.allowed[strings.ToLower(name[i+1:])]
}

func saveUpload(src io.Reader, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	return dst.Close()
}

// secureFilename reduces a client-supplied name to a safe ASCII base name.
func secureFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	safe := strings.Trim(b.String(), "._")
	if safe == "" {
		return "upload"
	}
	return safe
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) int {
	writeJSON(w, code, map[string]string{"error": msg})
	return code
}
