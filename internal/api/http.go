package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/domain/port"
	"anomaly-vision/internal/infrastructure/preprocess"
	"anomaly-vision/internal/logger"
)

const (
	maxUploadBytes     = 20 << 20
	maxFrameBytes      = 64 << 20
	defaultHistorySize = 50
	shutdownTimeout    = 5 * time.Second
)

// TimingsResponse длительности этапов в миллисекундах
type TimingsResponse struct {
	DecodeMS      float64 `json:"decode_ms"`
	PreprocessMS  float64 `json:"preprocess_ms"`
	InferenceMS   float64 `json:"inference_ms"`
	PostprocessMS float64 `json:"postprocess_ms"`
	TotalMS       float64 `json:"total_ms"`
}

// DetectionResponse результат детекции в JSON
type DetectionResponse struct {
	ID                string          `json:"id"`
	Label             entity.Label    `json:"label"`
	Caption           string          `json:"caption"`
	Score             float64         `json:"score"`
	DisplayPercent    float64         `json:"display_percent"`
	RawScore          float64         `json:"raw_score"`
	PixelThreshold    float64         `json:"pixel_threshold"`
	AnomalousFraction float64         `json:"anomalous_fraction"`
	Strategy          string          `json:"strategy"`
	GridSize          int             `json:"grid_size,omitempty"`
	AnomalyMap        []float32       `json:"anomaly_map,omitempty"`
	Timings           TimingsResponse `json:"timings"`
	CreatedAt         time.Time       `json:"created_at"`
}

// FrameResponse ответ на приём кадра
type FrameResponse struct {
	ID       string `json:"id"`
	Accepted bool   `json:"accepted"`
}

// ErrorResponse ошибка в JSON
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server HTTP-фронтенд детектора
type Server struct {
	detector Detector
	frames   FrameQueue
	history  port.DetectionRepository
	router   *mux.Router
	log      *zap.SugaredLogger
}

// NewServer создаёт сервер. frames и history могут быть nil,
// тогда соответствующие маршруты отвечают 404.
func NewServer(detector Detector, frames FrameQueue, history port.DetectionRepository) *Server {
	s := &Server{
		detector: detector,
		frames:   frames,
		history:  history,
		router:   mux.NewRouter(),
		log:      logger.Named("http"),
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/detect", s.handleDetect).Methods(http.MethodPost)
	v1.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	if frames != nil {
		v1.HandleFunc("/frames", s.handleFrame).Methods(http.MethodPost)
		v1.HandleFunc("/latest", s.handleLatest).Methods(http.MethodGet)
	}
	if history != nil {
		v1.HandleFunc("/detections", s.handleDetections).Methods(http.MethodGet)
	}

	return s
}

// Handler корневой обработчик
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run слушает addr до отмены контекста
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Handler:      s.router,
		Addr:         addr,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("listening", logger.FieldAddress, addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "listen %s", addr)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDetect принимает изображение (raw, multipart или JSON с base64)
// и отвечает JPEG с тепловой картой либо JSON при ?format=json.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	data, err := readUpload(w, r)
	if err != nil {
		s.sendError(w, requestID, err)
		return
	}

	decodeStart := time.Now()
	img, err := preprocess.Decode(data)
	decodeTime := time.Since(decodeStart)
	if err != nil {
		s.sendError(w, requestID, err)
		return
	}

	result, err := s.detector.DetectImage(r.Context(), img, "http")
	if err != nil {
		s.sendError(w, requestID, err)
		return
	}
	result.Timings.Decode = decodeTime
	defer result.Release()

	s.writeResult(w, r, result)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	q := r.URL.Query()

	frame, err := frameFromQuery(q.Get("width"), q.Get("height"), q.Get("format"), q.Get("rotation"))
	if err != nil {
		s.sendError(w, requestID, err)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameBytes))
	if err != nil {
		s.sendError(w, requestID, errors.Mark(errors.Wrap(err, "read frame"), entity.ErrInvalidInput))
		return
	}
	if need := preprocess.RequiredBytes(frame.Format, frame.Width, frame.Height); len(data) < need {
		s.sendError(w, requestID, errors.Wrapf(entity.ErrInvalidInput, "frame has %d bytes, need %d", len(data), need))
		return
	}

	frame.ID = requestID
	frame.Data = data
	frame.Source = "http"

	if !s.frames.Submit(frame) {
		writeJSON(w, http.StatusTooManyRequests, FrameResponse{ID: requestID})
		return
	}
	writeJSON(w, http.StatusAccepted, FrameResponse{ID: requestID, Accepted: true})
}

func frameFromQuery(width, height, format, rotation string) (*entity.Frame, error) {
	w, err := cast.ToIntE(width)
	if err != nil || w <= 0 {
		return nil, errors.Wrapf(entity.ErrInvalidInput, "bad width %q", width)
	}
	h, err := cast.ToIntE(height)
	if err != nil || h <= 0 {
		return nil, errors.Wrapf(entity.ErrInvalidInput, "bad height %q", height)
	}
	if err := preprocess.CheckFrameSize(w, h); err != nil {
		return nil, err
	}
	f, err := entity.ParsePixelFormat(format)
	if err != nil {
		return nil, err
	}
	rot := 0
	if rotation != "" {
		if rot, err = cast.ToIntE(rotation); err != nil {
			return nil, errors.Wrapf(entity.ErrInvalidInput, "bad rotation %q", rotation)
		}
	}
	return &entity.Frame{Width: w, Height: h, Format: f, Rotation: rot}, nil
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	result := s.frames.Current()
	if result == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Code: "not_found", Message: "no frame processed yet"})
		return
	}
	s.writeResult(w, r, result)
}

func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistorySize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := cast.ToIntE(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.sendError(w, uuid.NewString(), err)
		return
	}
	if records == nil {
		records = []entity.DetectionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	response := map[string]interface{}{
		"strategy": s.detector.Strategy(),
		"detector": s.detector.Stats(),
	}
	if s.frames != nil {
		response["pipeline"] = s.frames.Stats()
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, result *entity.DetectionResult) {
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, detectionResponse(result, r.URL.Query().Get("map") == "1"))
		return
	}

	data, err := preprocess.EncodeJPEG(s.detector.Visualize(result), preprocess.DefaultJPEGQuality)
	if err != nil {
		s.sendError(w, result.ID, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("X-Detection-Id", result.ID)
	w.Header().Set("X-Detection-Label", string(result.Label))
	w.Header().Set("X-Detection-Score", cast.ToString(result.Score))
	w.Header().Set("X-Detection-Caption", result.Caption())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func detectionResponse(result *entity.DetectionResult, withMap bool) DetectionResponse {
	resp := DetectionResponse{
		ID:                result.ID,
		Label:             result.Label,
		Caption:           result.Caption(),
		Score:             result.Score,
		DisplayPercent:    result.DisplayPercent(),
		RawScore:          result.RawScore,
		PixelThreshold:    result.PixelThreshold,
		AnomalousFraction: result.AnomalousFraction,
		Strategy:          result.Strategy,
		Timings: TimingsResponse{
			DecodeMS:      ms(result.Timings.Decode),
			PreprocessMS:  ms(result.Timings.Preprocess),
			InferenceMS:   ms(result.Timings.Inference),
			PostprocessMS: ms(result.Timings.Postprocess),
			TotalMS:       ms(result.Timings.Total),
		},
		CreatedAt: result.CreatedAt,
	}
	if n, err := result.GridSize(); err == nil {
		resp.GridSize = n
	}
	if withMap {
		resp.AnomalyMap = result.AnomalyMap
	}
	return resp
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// readUpload достаёт байты изображения из тела запроса
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		data []byte
		err  error
	)
	switch {
	case mediaType == "application/json":
		data, err = readJSONUpload(r.Body)
	case mediaType == "multipart/form-data":
		data, err = readMultipartUpload(r)
	case mediaType == "" || mediaType == "application/octet-stream" || strings.HasPrefix(mediaType, "image/"):
		data, err = io.ReadAll(r.Body)
	default:
		return nil, errNotImage(mediaType)
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return nil, errTooLarge(tooLarge.Limit+1, tooLarge.Limit)
	}
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "read upload"), entity.ErrInvalidInput)
	}
	return data, nil
}

func readJSONUpload(body io.Reader) ([]byte, error) {
	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(req.Image)
}

func readMultipartUpload(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, err
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		if file, _, err = r.FormFile("file"); err != nil {
			return nil, err
		}
	}
	defer file.Close()

	return io.ReadAll(file)
}

// sendError отвечает JSON-ошибкой; статус зависит от вида ошибки
func (s *Server) sendError(w http.ResponseWriter, requestID string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, entity.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, entity.ErrInitialization):
		status = http.StatusServiceUnavailable
	}

	s.log.Warnw("request failed",
		logger.FieldRequestID, requestID,
		logger.FieldErrorKind, entity.Kind(err),
		logger.FieldError, err)

	writeJSON(w, status, ErrorResponse{
		Code:    entity.Kind(err),
		Message: entity.UserMessage(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
