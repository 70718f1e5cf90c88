package coordinator

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/goccy/go-json"
	"github.com/watchparty/watchparty/pkg/api"
	"github.com/watchparty/watchparty/pkg/config"
	"github.com/watchparty/watchparty/pkg/logger"
	"github.com/watchparty/watchparty/pkg/media"
	"github.com/watchparty/watchparty/pkg/network/httpx"
	"github.com/watchparty/watchparty/pkg/room"
)

const (
	msgNoFile   = "No file uploaded."
	msgUploaded = "File uploaded successfully"
	// max length of the url form value
	maxUrlSize = 4 << 10
)

func NewHTTPServer(conf config.CoordinatorConfig, log *logger.Logger, fnMux func(*httpx.Mux) *httpx.Mux) (*httpx.Server, error) {
	return httpx.NewServer(
		conf.Coordinator.Server.GetAddr(),
		func(*httpx.Server) httpx.Handler {
			h := httpx.NewServeMux("")
			h.Static("/", conf.Coordinator.Web)
			h.HandleFunc("/healthz", func(w httpx.ResponseWriter, _ *httpx.Request) {
				_, _ = w.Write([]byte("ok"))
			})
			return fnMux(h)
		},
		httpx.WithServerConfig(conf.Coordinator.Server),
		httpx.WithLogger(log),
	)
}

// noDotFiles hides temp and lock files of a dir.
func noDotFiles(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(path.Base(r.URL.Path), ".") {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// upload takes a new video either as a multipart file or as a URL to download,
// then everyone is told to load it.
func upload(conf config.Media, lib *media.Library, r *room.Room, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		mr, err := req.MultipartReader()
		if err != nil {
			http.Error(w, msgNoFile, http.StatusBadRequest)
			return
		}

		source, m, err := "", api.Media{}, media.ErrNoFile
		for {
			part, perr := mr.NextPart()
			if perr != nil {
				if !errors.Is(perr, io.EOF) {
					log.Warn().Err(perr).Msg("upload")
				}
				break
			}
			switch {
			case part.FormName() == conf.Field && part.FileName() != "":
				source = "file"
				m, err = lib.Save(part.FileName(), part)
			case part.FormName() == "url":
				source = "url"
				var dat []byte
				if dat, err = io.ReadAll(io.LimitReader(part, maxUrlSize)); err == nil {
					m, err = lib.Import(req.Context(), strings.TrimSpace(string(dat)))
				}
			}
			_ = part.Close()
			if source != "" {
				break
			}
		}

		if err != nil {
			if source != "" {
				uploads.WithLabelValues(source, "error").Inc()
			}
			log.Warn().Err(err).Str("source", source).Msg("Upload failed")
			switch {
			case errors.Is(err, media.ErrNoFile):
				http.Error(w, msgNoFile, http.StatusBadRequest)
			case errors.Is(err, media.ErrTooLarge):
				http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			case errors.Is(err, media.ErrImportDisabled):
				http.Error(w, err.Error(), http.StatusForbidden)
			default:
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
			return
		}
		uploads.WithLabelValues(source, "ok").Inc()

		r.ChangeMedia(m)

		w.Header().Set("Content-Type", "application/json")
		if err = json.NewEncoder(w).Encode(api.UploadResponse{Message: msgUploaded, Url: m.Url}); err != nil {
			log.Error().Err(err).Msg("upload response")
		}
	})
}
