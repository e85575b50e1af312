package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/invopop/jsonschema"

	"github.com/thesyncim/nixbrowser/pkg/health"
	"github.com/thesyncim/nixbrowser/pkg/nix"
	"github.com/thesyncim/nixbrowser/pkg/store"
)

// maxFlakeBody bounds POST /api/data/flakes request bodies.
const maxFlakeBody = 4 << 10

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Pages
	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /info", s.handleInfoPage)
	mux.HandleFunc("GET /health", s.handleHealthPage)
	mux.HandleFunc("GET /flake", s.handleFlakePage)
	mux.HandleFunc("GET /flake/raw", s.handleFlakeRawPage)
	mux.HandleFunc("GET /about", s.handleAbout)

	// Data API
	mux.HandleFunc("GET /api/data/nix-info", s.handleNixInfo)
	mux.HandleFunc("GET /api/data/nix-health", s.handleNixHealth)
	mux.HandleFunc("GET /api/data/flake", s.handleFlakeShow)
	mux.HandleFunc("GET /api/data/flakes", s.handleListFlakes)
	mux.HandleFunc("POST /api/data/flakes", s.handleRegisterFlake)
	mux.HandleFunc("GET /api/schema/nix-info", s.handleNixInfoSchema)

	// Styling
	mux.HandleFunc("GET /theme.css", s.handleThemeCSS)
	if static, err := fs.Sub(s.web, "static"); err == nil {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	}

	mux.HandleFunc("/", s.handleNotFound)
	return mux
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, "dashboard", pageData{Title: "Dashboard", Nav: "/"})
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, "about", pageData{Title: "About", Nav: "/about"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusNotFound, "notfound", pageData{Title: "Not Found", Data: r.URL.Path})
}

func (s *Server) handleInfoPage(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Nix Info", Nav: "/info"}

	info, err := s.source.Info(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get nix info")
		data.Err = err.Error()
		s.renderPage(w, http.StatusInternalServerError, "info", data)
		return
	}
	data.Data = info
	s.renderPage(w, http.StatusOK, "info", data)
}

func (s *Server) handleHealthPage(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Nix Health", Nav: "/health"}

	h, err := s.health(r)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to run health checks")
		data.Err = err.Error()
		s.renderPage(w, http.StatusInternalServerError, "health", data)
		return
	}
	data.Data = h
	s.renderPage(w, http.StatusOK, "health", data)
}

// flakePage is the data behind the flake page and its raw view.
type flakePage struct {
	URL      string
	Flake    *nix.Flake
	Recent   []store.Flake
	Registry bool
}

func (s *Server) handleFlakePage(w http.ResponseWriter, r *http.Request) {
	page := flakePage{URL: r.URL.Query().Get("url"), Registry: s.store != nil}
	data := pageData{Title: "Flake", Nav: "/flake", Data: &page}
	status := http.StatusOK

	if page.URL != "" {
		f, code, err := s.flake(r, page.URL)
		if err != nil {
			data.Err = err.Error()
			status = code
		}
		page.Flake = f
	} else if s.store == nil {
		data.Err = "The flake registry is disabled."
	}

	if s.store != nil {
		flakes, err := s.store.RecentFlakes(r.Context(), 0)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to list flakes")
			data.Err = err.Error()
			status = http.StatusInternalServerError
		}
		page.Recent = flakes
	}
	s.renderPage(w, status, "flake", data)
}

func (s *Server) handleFlakeRawPage(w http.ResponseWriter, r *http.Request) {
	page := flakePage{URL: r.URL.Query().Get("url"), Registry: s.store != nil}
	data := pageData{Title: "Flake outputs", Nav: "/flake", Data: &page}

	f, code, err := s.flake(r, page.URL)
	if err != nil {
		data.Err = err.Error()
		s.renderPage(w, code, "flakeraw", data)
		return
	}
	page.Flake = f
	s.renderPage(w, http.StatusOK, "flakeraw", data)
}

func (s *Server) handleFlakeShow(w http.ResponseWriter, r *http.Request) {
	f, code, err := s.flake(r, r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, code, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// flake runs `nix flake show` for url against the local system. With a
// registry the URL is recorded before the fetch and marked fetched after a
// successful one. The returned status is meaningful only when err != nil.
func (s *Server) flake(r *http.Request, url string) (*nix.Flake, int, error) {
	ctx := r.Context()
	if err := store.ValidateFlakeURL(url); err != nil {
		return nil, http.StatusBadRequest, err
	}

	if s.store != nil {
		if err := s.store.RegisterFlake(ctx, url); err != nil {
			s.log.Error().Err(err).Str("url", url).Msg("failed to register flake")
			return nil, http.StatusInternalServerError, err
		}
	}

	info, err := s.source.Info(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get nix info")
		return nil, http.StatusInternalServerError, err
	}

	f, err := nix.FetchFlake(ctx, s.runner, url, info.NixConfig.System.Value)
	if err != nil {
		s.log.Error().Err(err).Str("url", url).Msg("failed to show flake")
		return nil, http.StatusInternalServerError, err
	}

	if s.store != nil {
		if err := s.store.MarkFetched(ctx, url); err != nil {
			s.log.Warn().Err(err).Str("url", url).Msg("failed to mark flake fetched")
		}
	}
	return f, 0, nil
}

func (s *Server) health(r *http.Request) (*health.Health, error) {
	info, err := s.source.Info(r.Context())
	if err != nil {
		return nil, err
	}
	return health.Run(info, s.sysInfo), nil
}

// handleNixInfo serves nix.Info as JSON. Any failure to query nix is a 500.
func (s *Server) handleNixInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.source.Info(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get nix info")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleNixHealth(w http.ResponseWriter, r *http.Request) {
	h, err := s.health(r)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to run health checks")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleListFlakes(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.handleNotFound(w, r)
		return
	}
	flakes, err := s.store.RecentFlakes(r.Context(), 0)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list flakes")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if flakes == nil {
		flakes = []store.Flake{}
	}
	writeJSON(w, http.StatusOK, flakes)
}

func (s *Server) handleRegisterFlake(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.handleNotFound(w, r)
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFlakeBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	if err := s.store.RegisterFlake(r.Context(), req.URL); err != nil {
		if errors.Is(err, store.ErrInvalidFlakeURL) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.log.Error().Err(err).Str("url", req.URL).Msg("failed to register flake")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": req.URL})
}

func (s *Server) handleNixInfoSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NixInfoSchema())
}

// NixInfoSchema describes the /api/data/nix-info payload.
func NixInfoSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{ExpandedStruct: true, DoNotReference: true}
	schema := r.Reflect(&nix.Info{})
	schema.Title = "Nix Info"
	schema.Description = "Version and configuration of the local Nix installation"
	return schema
}

func (s *Server) handleThemeCSS(w http.ResponseWriter, r *http.Request) {
	s.themeMu.RLock()
	css := s.css
	s.themeMu.RUnlock()

	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(css))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
