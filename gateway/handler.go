package gateway

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	goClone "github.com/MrEthical07/goClone"
	"github.com/MrEthical07/goClone/internal/rate"
	"github.com/MrEthical07/goClone/permission"
)

const maxBodyBytes = 1 << 20

// Handler serves the factory routes listed in the package documentation.
type Handler struct {
	factory  *goClone.Factory
	impls    map[string]goClone.Implementation
	logger   *slog.Logger
	throttle OwnerThrottle
	mux      *http.ServeMux
}

// Option configures a [Handler].
type Option func(*Handler)

// WithImplementations registers the implementations PUT /implementation may
// upgrade to, keyed by name.
func WithImplementations(impls map[string]goClone.Implementation) Option {
	return func(h *Handler) {
		for name, impl := range impls {
			h.impls[name] = impl
		}
	}
}

// WithLogger sets the logger for internal errors.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithOwnerThrottle counts rejected owner tokens per client address and
// answers 429 once t reports the budget spent.
func WithOwnerThrottle(t OwnerThrottle) Option {
	return func(h *Handler) {
		h.throttle = t
	}
}

// NewHandler builds the HTTP surface of f.
func NewHandler(f *goClone.Factory, opts ...Option) *Handler {
	h := &Handler{
		factory: f,
		impls:   make(map[string]goClone.Implementation),
		logger:  slog.New(slog.DiscardHandler),
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.mux.HandleFunc("POST /proxies", h.handleClone)
	h.mux.HandleFunc("GET /proxies", h.handleList)
	h.mux.HandleFunc("GET /proxies/{address}", h.handleProxy)
	h.mux.HandleFunc("POST /proxies/{address}/call", h.handleCall)
	h.mux.Handle("PUT /proxies/{address}/mask", h.ownerRoute(h.handleUpdateMask))
	h.mux.HandleFunc("GET /implementation", h.handleImplementation)
	h.mux.Handle("PUT /implementation", h.ownerRoute(h.handleUpgrade))
	h.mux.HandleFunc("GET /funcid/{selector}", h.handleFuncID)
	h.mux.HandleFunc("GET /feature-sets", h.handleFeatureSets)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	OwnerToken(h.mux).ServeHTTP(w, r)
}

// ----------------------------------------------------------------------------
// Request / response bodies
// ----------------------------------------------------------------------------

type cloneRequest struct {
	Mask       string `json:"mask,omitempty"`
	FeatureSet string `json:"feature_set,omitempty"`
}

type proxyResponse struct {
	Address string `json:"address"`
	Mask    string `json:"mask,omitempty"`
}

type callRequest struct {
	// Selector is a hex selector or a canonical signature.
	Selector string `json:"selector"`
	// Args is 0x-prefixed hex.
	Args string `json:"args,omitempty"`
}

type callResponse struct {
	Output string `json:"output"`
}

type maskRequest struct {
	Mask string `json:"mask"`
}

type upgradeRequest struct {
	Name string `json:"name"`
}

type entryPoint struct {
	ID       uint32 `json:"id"`
	Selector string `json:"selector"`
}

type implementationResponse struct {
	Address     string       `json:"address"`
	Version     uint64       `json:"version"`
	EntryPoints []entryPoint `json:"entry_points"`
}

type funcIDResponse struct {
	Selector string `json:"selector"`
	ID       uint32 `json:"id"`
}

// ----------------------------------------------------------------------------
// Handlers
// ----------------------------------------------------------------------------

func (h *Handler) handleClone(w http.ResponseWriter, r *http.Request) {
	var req cloneRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var (
		proxy *goClone.Proxy
		err   error
	)
	switch {
	case req.FeatureSet != "" && req.Mask != "":
		writeError(w, http.StatusBadRequest, "mask and feature_set are mutually exclusive")
		return
	case req.FeatureSet != "":
		proxy, err = h.factory.CloneWithFeatureSet(r.Context(), req.FeatureSet)
	default:
		mask, perr := permission.ParseMask(h.factory.MaskBits(), req.Mask)
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		proxy, err = h.factory.Clone(r.Context(), mask)
	}
	if err != nil {
		h.writeFactoryError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, proxyResponse{Address: proxy.Address().String()})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	addrs, err := h.factory.Proxies(r.Context())
	if err != nil {
		h.writeFactoryError(w, err)
		return
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleProxy(w http.ResponseWriter, r *http.Request) {
	proxy, ok := h.lookup(w, r)
	if !ok {
		return
	}
	mask, err := proxy.FeatureMask(r.Context())
	if err != nil {
		h.writeFactoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proxyResponse{
		Address: proxy.Address().String(),
		Mask:    permission.FormatMask(mask),
	})
}

func (h *Handler) handleCall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sel, err := goClone.ResolveSelector(strings.TrimSpace(req.Selector))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	args, err := decodeHex(req.Args)
	if err != nil {
		writeError(w, http.StatusBadRequest, "args must be hex")
		return
	}

	proxy, ok := h.lookup(w, r)
	if !ok {
		return
	}

	out, err := proxy.Call(r.Context(), sel, args)
	if err != nil {
		h.writeFactoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, callResponse{Output: "0x" + hex.EncodeToString(out)})
}

func (h *Handler) handleUpdateMask(w http.ResponseWriter, r *http.Request) {
	addr, err := goClone.ParseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req maskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	mask, err := permission.ParseMask(h.factory.MaskBits(), req.Mask)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.factory.UpdateFeatureSet(r.Context(), addr, mask)
	h.recordOwnerOutcome(r, err)
	if err != nil {
		h.writeFactoryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleImplementation(w http.ResponseWriter, _ *http.Request) {
	impl := h.factory.GetImplementation()
	if impl == nil {
		h.writeFactoryError(w, goClone.ErrNotInitialized)
		return
	}

	sels := h.factory.EntryPoints()
	entries := make([]entryPoint, len(sels))
	for i, sel := range sels {
		entries[i] = entryPoint{ID: uint32(i + 1), Selector: sel.String()}
	}
	writeJSON(w, http.StatusOK, implementationResponse{
		Address:     impl.Address().String(),
		Version:     h.factory.Version(),
		EntryPoints: entries,
	})
}

func (h *Handler) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	var req upgradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	impl, ok := h.impls[req.Name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown implementation "+req.Name)
		return
	}

	err := h.factory.UpgradeImplementation(r.Context(), impl, goClone.Selectors(impl))
	h.recordOwnerOutcome(r, err)
	if err != nil {
		h.writeFactoryError(w, err)
		return
	}
	h.handleImplementation(w, r)
}

func (h *Handler) handleFuncID(w http.ResponseWriter, r *http.Request) {
	sel, err := goClone.ResolveSelector(r.PathValue("selector"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, funcIDResponse{Selector: sel.String(), ID: h.factory.GetFuncID(sel)})
}

func (h *Handler) handleFeatureSets(w http.ResponseWriter, _ *http.Request) {
	names := h.factory.FeatureSetNames()
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*goClone.Proxy, bool) {
	addr, err := goClone.ParseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	proxy, err := h.factory.Proxy(r.Context(), addr)
	if err != nil {
		h.writeFactoryError(w, err)
		return nil, false
	}
	return proxy, true
}

// ownerRoute guards owner operations. A factory that treats every caller as
// the owner needs no token; otherwise a request without one is turned away
// before it reaches the factory.
func (h *Handler) ownerRoute(next http.HandlerFunc) http.Handler {
	route := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.throttle != nil {
			if err := h.throttle.Check(r.Context(), clientAddr(r)); err != nil {
				if errors.Is(err, rate.ErrRateLimited) {
					writeError(w, http.StatusTooManyRequests, "too many rejected owner tokens")
					return
				}
				h.logger.Error("owner throttle unavailable", "error", err)
				writeError(w, http.StatusServiceUnavailable, "owner throttle unavailable")
				return
			}
		}
		next(w, r)
	})
	if h.factory.OwnerOpen() {
		return route
	}
	return RequireOwnerToken(route)
}

// recordOwnerOutcome feeds the throttle: a rejected token counts against the
// client, a successful owner operation clears its counter.
func (h *Handler) recordOwnerOutcome(r *http.Request, err error) {
	if h.throttle == nil {
		return
	}

	subject := clientAddr(r)
	var terr error
	switch {
	case err == nil:
		terr = h.throttle.Reset(r.Context(), subject)
	case errors.Is(err, goClone.ErrOwnerUnauthorized):
		terr = h.throttle.Increment(r.Context(), subject)
	}
	if terr != nil {
		h.logger.Warn("owner throttle update failed", "client", subject, "error", terr)
	}
}

// writeFactoryError maps factory errors to status codes. The denial body is
// the bare denial text.
func (h *Handler) writeFactoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, goClone.ErrNoPermission):
		http.Error(w, goClone.ErrNoPermission.Error(), http.StatusForbidden)
	case errors.Is(err, goClone.ErrOwnerUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, goClone.ErrUnknownSelector),
		errors.Is(err, goClone.ErrProxyNotFound),
		errors.Is(err, goClone.ErrUnknownFeatureSet):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, goClone.ErrForwardingFailure):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, goClone.ErrInvalidMask),
		errors.Is(err, goClone.ErrInvalidImplementation),
		errors.Is(err, permission.ErrRegistryFull):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, goClone.ErrNotInitialized),
		errors.Is(err, goClone.ErrAlreadyInitialized):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, goClone.ErrStoreUnavailable),
		errors.Is(err, goClone.ErrFactoryClosed):
		h.logger.Error("factory unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("gateway internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func decodeHex(text string) ([]byte, error) {
	text = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(text), "0x"), "0X")
	if text == "" {
		return nil, nil
	}
	return hex.DecodeString(text)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
