/**
 * Web front door for the manga translator
 *
 * - GET  /                              upload form
 * - POST /translate                     form submit, renders the result page
 * - POST /api/v1/translate              JSON variant (multipart or JSON body)
 * - GET  /api/v1/results/:id            stored result summary
 * - GET  /api/v1/results/:id/files/:name  stored result file
 * - GET  /healthz                       liveness
 *
 * Every failure is shown as exactly one user-facing message.
 */

package web

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/adverant/nexus/manga-translator/internal/errors"
	"github.com/adverant/nexus/manga-translator/internal/imageutil"
	"github.com/adverant/nexus/manga-translator/internal/language"
	"github.com/adverant/nexus/manga-translator/internal/logging"
	"github.com/adverant/nexus/manga-translator/internal/processor"
	"github.com/adverant/nexus/manga-translator/internal/storage"
)

// Config holds server configuration
type Config struct {
	Processor         processor.PageProcessorInterface
	Store             *storage.StorageManager // optional
	TargetLang        string
	DefaultSourceLang string
	MaxImageSize      int64
}

// Server serves the upload form and the JSON API
type Server struct {
	echo   *echo.Echo
	config *Config
	logger *logging.Logger
}

// NewServer builds the echo instance and registers routes
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil || cfg.Processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if cfg.TargetLang == "" {
		cfg.TargetLang = "vi"
	}
	if cfg.DefaultSourceLang == "" {
		cfg.DefaultSourceLang = "jp"
	}

	r, err := newRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = r
	e.Use(middleware.Recover())
	if cfg.MaxImageSize > 0 {
		// multipart overhead on top of the image itself
		e.Use(middleware.BodyLimit(fmt.Sprintf("%dK", cfg.MaxImageSize/1024+1024)))
	}

	s := &Server{echo: e, config: cfg, logger: logging.NewLogger("Web")}

	e.GET("/", s.handleForm)
	e.POST("/translate", s.handleTranslateForm)
	e.GET("/healthz", s.handleHealth)

	api := e.Group("/api/v1")
	api.POST("/translate", s.handleTranslateAPI)
	api.GET("/results/:id", s.handleGetResult)
	api.GET("/results/:id/files/:name", s.handleGetResultFile)

	return s, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown
func (s *Server) Start(addr string) error {
	s.logger.Info("HTTP server listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type formView struct {
	Languages  []language.Language
	Selected   string
	TargetName string
	Error      string
}

type resultView struct {
	JobID      string
	SourceName string
	TargetName string
	Message    string
	Report     string
	Preview    template.URL
	Cleaned    template.URL
	Elapsed    string
}

func (s *Server) formView(selected, errMsg string) formView {
	if selected == "" {
		selected = s.config.DefaultSourceLang
	}
	return formView{
		Languages:  language.Supported(),
		Selected:   language.Resolve(selected).Code,
		TargetName: language.TargetName(s.config.TargetLang),
		Error:      errMsg,
	}
}

func (s *Server) handleForm(c echo.Context) error {
	return c.Render(http.StatusOK, "form", s.formView("", ""))
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *Server) handleTranslateForm(c echo.Context) error {
	lang := c.FormValue("lang")

	data, filename, err := readUpload(c)
	if err != nil {
		return c.Render(http.StatusBadRequest, "form", s.formView(lang, errors.UserMessage(err)))
	}

	result, err := s.process(c.Request().Context(), &processor.ProcessRequest{
		JobID:      uuid.New().String(),
		Filename:   filename,
		SourceLang: lang,
		ImageData:  data,
	})
	if err != nil {
		return c.Render(statusFor(err), "form", s.formView(lang, errors.UserMessage(err)))
	}

	view := resultView{
		JobID:      result.JobID,
		SourceName: language.Resolve(result.SourceLang).Name(),
		TargetName: language.TargetName(result.TargetLang),
		Message:    result.Message,
		Report:     result.Report(),
		Elapsed:    (time.Duration(result.Timings.TotalMs) * time.Millisecond).String(),
	}
	preview, err := imageutil.DataURI(result.Preview)
	if err == nil {
		view.Preview = template.URL(preview)
		var cleaned string
		cleaned, err = imageutil.DataURI(result.Cleaned)
		view.Cleaned = template.URL(cleaned)
	}
	if err != nil {
		outErr := errors.NewOutputError(result.JobID, err)
		return c.Render(http.StatusInternalServerError, "form", s.formView(lang, errors.UserMessage(outErr)))
	}
	return c.Render(http.StatusOK, "result", view)
}

// apiRequest is the JSON body of POST /api/v1/translate. The page travels
// in the body; the server never fetches caller-supplied URLs.
type apiRequest struct {
	Image    string `json:"image"` // base64, optionally as a data URI
	Lang     string `json:"lang"`
	Filename string `json:"filename"`
}

type apiResult struct {
	*processor.ProcessResult
	Report  string `json:"report"`
	Preview string `json:"preview"`
	Cleaned string `json:"cleaned"`
}

func (s *Server) handleTranslateAPI(c echo.Context) error {
	req := &processor.ProcessRequest{JobID: uuid.New().String()}

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		var body apiRequest
		if err := c.Bind(&body); err != nil {
			return apiError(c, errors.NewInvalidInputError(req.JobID, "Invalid JSON body"))
		}
		req.SourceLang = body.Lang
		req.Filename = body.Filename
		if body.Image != "" {
			data, err := decodeBase64Image(body.Image)
			if err != nil {
				return apiError(c, errors.NewInvalidInputError(req.JobID, "Invalid base64 image"))
			}
			req.ImageData = data
		}
	} else {
		data, filename, err := readUpload(c)
		if err != nil {
			return apiError(c, err)
		}
		req.SourceLang = c.FormValue("lang")
		req.Filename = filename
		req.ImageData = data
	}

	result, err := s.process(c.Request().Context(), req)
	if err != nil {
		return apiError(c, err)
	}

	out := apiResult{ProcessResult: result, Report: result.Report()}
	if out.Preview, err = imageutil.DataURI(result.Preview); err == nil {
		out.Cleaned, err = imageutil.DataURI(result.Cleaned)
	}
	if err != nil {
		return apiError(c, errors.NewOutputError(result.JobID, err))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "data": out})
}

func (s *Server) handleGetResult(c echo.Context) error {
	if s.config.Store == nil {
		return c.JSON(http.StatusNotFound, map[string]interface{}{"success": false, "error": "result storage is disabled"})
	}
	summary, err := s.config.Store.GetResult(c.Param("id"))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "data": summary})
}

func (s *Server) handleGetResultFile(c echo.Context) error {
	if s.config.Store == nil {
		return c.JSON(http.StatusNotFound, map[string]interface{}{"success": false, "error": "result storage is disabled"})
	}
	path, err := s.config.Store.FilePath(c.Param("id"), c.Param("name"))
	if err != nil {
		return storeError(c, err)
	}
	return c.File(path)
}

// process runs the page and stores the result when a store is configured.
// A storage failure is logged; the page result is still returned.
func (s *Server) process(ctx context.Context, req *processor.ProcessRequest) (*processor.ProcessResult, error) {
	s.logger.Info("Translating page", "job", req.JobID, "filename", req.Filename, "lang", req.SourceLang)

	result, err := s.config.Processor.ProcessPage(ctx, req)
	if err != nil {
		s.logger.Error("Page translation failed", "job", req.JobID, "code", string(errors.CodeOf(err)), "error", err)
		return nil, err
	}

	if s.config.Store != nil {
		if _, err := s.config.Store.StoreResult(ctx, result); err != nil {
			s.logger.Warn("Failed to store result", "job", req.JobID, "error", err)
		}
	}
	return result, nil
}

// readUpload reads the "image" form file
func readUpload(c echo.Context) ([]byte, string, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, "", errors.NewInvalidInputError("", "Please upload an image")
	}
	data, err := readFileHeader(fh)
	if err != nil {
		return nil, "", errors.NewInvalidInputError("", fmt.Sprintf("Could not read upload: %v", err))
	}
	return data, fh.Filename, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func decodeBase64Image(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

// statusFor maps a pipeline error to an HTTP status
func statusFor(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrorInvalidInput, errors.ErrorImageDecodeFailed:
		return http.StatusBadRequest
	case errors.ErrorProcessingTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrorModelLoadFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func apiError(c echo.Context, err error) error {
	body := map[string]interface{}{
		"code":    string(errors.CodeOf(err)),
		"message": errors.UserMessage(err),
	}
	return c.JSON(statusFor(err), map[string]interface{}{"success": false, "error": body})
}

func storeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case stderrors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case stderrors.Is(err, storage.ErrInvalidJobID):
		status = http.StatusBadRequest
	}
	return c.JSON(status, map[string]interface{}{"success": false, "error": err.Error()})
}
