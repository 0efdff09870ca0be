package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/marketrank/internal/cache"
	"github.com/onnwee/marketrank/internal/ranking"
	"github.com/onnwee/marketrank/internal/tracing"
)

// Request limits.
const (
	DefaultMaxRecords   = 10000
	DefaultMaxBodyBytes = 10 << 20 // 10 MiB
	DefaultCacheTTL     = 60 * time.Second
)

// cacheKeyPrefix namespaces ranked output in a shared cache.
const cacheKeyPrefix = "marketrank:trending"

// presetNone is the metrics label for requests ranked without a preset.
const presetNone = "none"

// TrendingHandlers serves the ranking endpoints.
type TrendingHandlers struct {
	defaults      ranking.Config
	defaultPreset string
	maxRecords    int
	maxBodyBytes  int64
	cache         cache.Store
	cacheBackend  string
	cacheTTL      time.Duration
	keyPrefix     string
	metrics       *Metrics
}

// TrendingHandlersConfig configures the ranking handlers.
type TrendingHandlersConfig struct {
	Defaults      ranking.Config // Calibrated base config; every request merges onto it
	DefaultPreset string         // Applied when the request names none; empty for no preset
	MaxRecords    int
	MaxBodyBytes  int64
	Cache         cache.Store // Optional; nil disables caching
	CacheBackend  string      // Reported on cache spans, e.g. "redis" or "memory"
	CacheTTL      time.Duration
	Metrics       *Metrics // Optional; unregistered metrics are used when nil
}

// NewTrendingHandlers creates the ranking handlers.
func NewTrendingHandlers(cfg TrendingHandlersConfig) *TrendingHandlers {
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = DefaultMaxRecords
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "memory"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}

	defaults := cfg.Defaults.Clone()
	if defaults.Weights == nil && defaults.Fields == nil {
		defaults = ranking.DefaultConfig()
	}

	// Cached output depends on the calibrated defaults, so a recalibrated
	// deployment sharing the cache must not read stale entries.
	fingerprint, err := json.Marshal(defaults)
	if err != nil {
		slog.Error("failed to fingerprint ranking defaults", "error", err)
	}

	return &TrendingHandlers{
		defaults:      defaults,
		defaultPreset: cfg.DefaultPreset,
		maxRecords:    cfg.MaxRecords,
		maxBodyBytes:  cfg.MaxBodyBytes,
		cache:         cfg.Cache,
		cacheBackend:  cfg.CacheBackend,
		cacheTTL:      cfg.CacheTTL,
		keyPrefix:     cache.Key(cacheKeyPrefix, fingerprint),
		metrics:       cfg.Metrics,
	}
}

// RankRequest is the body of POST /trending.
type RankRequest struct {
	Records []ranking.Record   `json:"records"`
	Preset  string             `json:"preset,omitempty"`
	Config  *ranking.Overrides `json:"config,omitempty"`
}

// RankResponse is the body returned by POST /trending.
type RankResponse struct {
	Items []ranking.Record `json:"items"`
	Count int              `json:"count"`
}

// rankCacheKey is the canonical form hashed into cache keys. Overrides drops
// an empty ReturnFields when marshalled, which would collide with the
// unprojected request, so the projection is carried separately.
type rankCacheKey struct {
	Records      []ranking.Record   `json:"records"`
	Preset       string             `json:"preset"`
	Config       *ranking.Overrides `json:"config"`
	ReturnFields *[]string          `json:"return_fields"`
}

func cacheKeyPayload(req RankRequest) ([]byte, error) {
	key := rankCacheKey{Records: req.Records, Preset: req.Preset, Config: req.Config}
	if req.Config != nil && req.Config.ReturnFields != nil {
		fields := req.Config.ReturnFields
		key.ReturnFields = &fields
	}
	return json.Marshal(key)
}

// rankRequestWire defers decoding of records and config so their JSON kinds
// can be checked before the values are interpreted.
type rankRequestWire struct {
	Records json.RawMessage `json:"records"`
	Preset  string          `json:"preset"`
	Config  json.RawMessage `json:"config"`
}

// requestError is a client error with its API code.
type requestError struct {
	code    string
	message string
}

func (e *requestError) Error() string { return e.message }

func validationErr(format string, args ...any) error {
	return &requestError{code: ErrCodeValidation, message: fmt.Sprintf(format, args...)}
}

// Rank handles POST /trending.
func (h *TrendingHandlers) Rank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeErrorCode(w, r, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeErrorCode(w, r, ErrCodePayloadTooLarge,
				fmt.Sprintf("Request body exceeds %d bytes", maxErr.Limit))
			return
		}
		writeErrorCode(w, r, ErrCodeBadRequest, "Failed to read request body")
		return
	}

	decodeCtx, endDecode := tracing.StartRankSpan(r.Context(), tracing.RankStageDecode,
		attribute.Int("http.request.body.size", len(body)))
	req, err := h.decode(body)
	endDecode(err)
	if err != nil {
		var reqErr *requestError
		if errors.As(err, &reqErr) {
			h.metrics.IncRequests(metricsPreset(req.Preset), OutcomeInvalid)
			writeErrorCode(w, r, reqErr.code, reqErr.message)
			return
		}
		h.metrics.IncRequests(presetNone, OutcomeError)
		slog.ErrorContext(decodeCtx, "failed to decode ranking request", "error", err)
		writeErrorCode(w, r, ErrCodeInternal, "Failed to decode request")
		return
	}

	preset := metricsPreset(req.Preset)
	var key string
	if h.cache != nil {
		canonical, err := cacheKeyPayload(req)
		if err == nil {
			key = cache.Key(h.keyPrefix, canonical)
			if cached, ok := h.cacheGet(r, key); ok {
				h.metrics.IncRequests(preset, OutcomeOK)
				w.Header().Set("X-Cache", "HIT")
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusOK)
				if _, err := w.Write(cached); err != nil {
					slog.ErrorContext(r.Context(), "failed to write response", "error", err)
				}
				return
			}
		} else {
			slog.WarnContext(r.Context(), "failed to build cache key", "error", err)
		}
	}

	layers := make([]ranking.Overrides, 0, 2)
	if req.Preset != "" {
		p, err := ranking.Preset(req.Preset)
		if err != nil {
			h.metrics.IncRequests(preset, OutcomeInvalid)
			writeErrorCode(w, r, ErrCodeUnknownPreset, err.Error())
			return
		}
		layers = append(layers, p)
	}
	if req.Config != nil {
		layers = append(layers, *req.Config)
	}

	rankCtx, endRank := tracing.StartRankSpan(r.Context(), tracing.RankStageRank,
		attribute.String("ranking.preset", preset),
		attribute.Int("ranking.records", len(req.Records)))
	start := time.Now()
	items, err := ranking.RankFrom(h.defaults, req.Records, layers...)
	elapsed := time.Since(start)
	endRank(err)
	if err != nil {
		if errors.Is(err, ranking.ErrInvalidInput) {
			h.metrics.IncRequests(preset, OutcomeInvalid)
			writeErrorCode(w, r, ErrCodeValidation, err.Error())
			return
		}
		h.metrics.IncRequests(preset, OutcomeError)
		slog.ErrorContext(rankCtx, "ranking failed", "error", err)
		writeErrorCode(w, r, ErrCodeInternal, "Failed to rank records")
		return
	}
	h.metrics.ObserveRanking(preset, elapsed.Seconds(), len(req.Records), len(items))

	_, endEncode := tracing.StartRankSpan(r.Context(), tracing.RankStageEncode,
		attribute.Int("ranking.items", len(items)))
	data, err := json.Marshal(RankResponse{Items: items, Count: len(items)})
	endEncode(err)
	if err != nil {
		h.metrics.IncRequests(preset, OutcomeError)
		slog.ErrorContext(r.Context(), "failed to encode ranking response", "error", err)
		writeErrorCode(w, r, ErrCodeInternal, "Failed to encode response")
		return
	}
	h.metrics.IncRequests(preset, OutcomeOK)

	if key != "" {
		h.cacheSet(r, key, data)
		w.Header().Set("X-Cache", "MISS")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(r.Context(), "failed to write response", "error", err)
	}
}

// decode parses and validates a ranking request body. The returned request
// carries the resolved preset name even when validation fails later on.
func (h *TrendingHandlers) decode(body []byte) (RankRequest, error) {
	var wire rankRequestWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return RankRequest{}, validationErr("Request body must be a JSON object")
	}

	req := RankRequest{Preset: strings.TrimSpace(wire.Preset)}
	if req.Preset == "" {
		req.Preset = h.defaultPreset
	}

	if jsonKind(wire.Records) != '[' {
		return req, validationErr("records must be an array")
	}
	if err := json.Unmarshal(wire.Records, &req.Records); err != nil {
		return req, validationErr("records must be an array of objects")
	}
	if len(req.Records) > h.maxRecords {
		return req, &requestError{
			code:    ErrCodeTooManyRecords,
			message: fmt.Sprintf("Too many records: %d exceeds the limit of %d", len(req.Records), h.maxRecords),
		}
	}

	switch jsonKind(wire.Config) {
	case 0, 'n':
	case '{':
		var o ranking.Overrides
		dec := json.NewDecoder(bytes.NewReader(wire.Config))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&o); err != nil {
			return req, validationErr("config is invalid: %v", err)
		}
		if !o.IsZero() {
			req.Config = &o
		}
	default:
		return req, validationErr("config must be an object")
	}

	if req.Preset != "" {
		if _, err := ranking.Preset(req.Preset); err != nil {
			return req, &requestError{code: ErrCodeUnknownPreset, message: err.Error()}
		}
	}
	return req, nil
}

// jsonKind returns the first significant byte of raw, 'n' for null, or 0
// when raw is absent.
func jsonKind(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func metricsPreset(name string) string {
	if name == "" {
		return presetNone
	}
	return name
}

// cacheGet looks up a ranked response. Cache errors count as misses.
func (h *TrendingHandlers) cacheGet(r *http.Request, key string) ([]byte, bool) {
	ctx, endSpan := tracing.StartCacheSpan(r.Context(), h.cacheBackend, tracing.CacheOperationGet)
	value, ok, err := h.cache.Get(ctx, key)
	endSpan(err)
	if err != nil {
		h.metrics.IncCacheError(string(tracing.CacheOperationGet))
		slog.WarnContext(ctx, "ranking cache lookup failed", "error", err, "backend", h.cacheBackend)
		return nil, false
	}
	if !ok {
		h.metrics.IncCacheMiss()
		return nil, false
	}
	h.metrics.IncCacheHit()
	return value, true
}

// cacheSet stores a ranked response. Failures are logged and counted only.
func (h *TrendingHandlers) cacheSet(r *http.Request, key string, data []byte) {
	ctx, endSpan := tracing.StartCacheSpan(r.Context(), h.cacheBackend, tracing.CacheOperationSet)
	err := h.cache.Set(ctx, key, data, h.cacheTTL)
	endSpan(err)
	if err != nil {
		h.metrics.IncCacheError(string(tracing.CacheOperationSet))
		slog.WarnContext(ctx, "ranking cache store failed", "error", err, "backend", h.cacheBackend)
	}
}

// PresetResponse describes one named preset.
type PresetResponse struct {
	Name      string            `json:"name"`
	Overrides ranking.Overrides `json:"overrides"`
}

// PresetsResponse is the body returned by GET /trending/presets.
type PresetsResponse struct {
	Presets       []PresetResponse `json:"presets"`
	DefaultPreset string           `json:"default_preset,omitempty"`
}

// ListPresets handles GET /trending/presets.
func (h *TrendingHandlers) ListPresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeErrorCode(w, r, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	names := ranking.PresetNames()
	resp := PresetsResponse{
		Presets:       make([]PresetResponse, 0, len(names)),
		DefaultPreset: h.defaultPreset,
	}
	for _, name := range names {
		p, err := ranking.Preset(name)
		if err != nil {
			continue
		}
		resp.Presets = append(resp.Presets, PresetResponse{Name: name, Overrides: p})
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// GetPreset handles GET /trending/presets/{name}.
func (h *TrendingHandlers) GetPreset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeErrorCode(w, r, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/trending/presets/")
	if name == "" || strings.Contains(name, "/") {
		writeErrorCode(w, r, ErrCodeNotFound, "Preset not found")
		return
	}

	p, err := ranking.Preset(name)
	if err != nil {
		writeErrorCode(w, r, ErrCodeNotFound, fmt.Sprintf("Preset %q not found", name))
		return
	}
	writeJSON(w, r, http.StatusOK, PresetResponse{Name: name, Overrides: p})
}

// Defaults handles GET /trending/defaults and returns the calibrated base config.
func (h *TrendingHandlers) Defaults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeErrorCode(w, r, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, r, http.StatusOK, h.defaults)
}
