package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/haukened/portalgate/internal/portal/common/uri"
	"github.com/haukened/portalgate/internal/portal/domain"
)

const maxHookBytes = 1 << 20

// hookRequest is the common body of hook API calls. Each hook reads the
// fields it needs.
type hookRequest struct {
	URI       string         `json:"uri"`
	SessionID string         `json:"session_id"`
	LoggedIn  bool           `json:"logged_in"`
	IsAdmin   bool           `json:"is_admin"`
	Component string         `json:"component"`
	Get       map[string]any `json:"get"`
	Post      map[string]any `json:"post"`
}

type preControllerResponse struct {
	Clamped bool           `json:"clamped"`
	Get     map[string]any `json:"get,omitempty"`
	Post    map[string]any `json:"post,omitempty"`
}

func decodeHook(w http.ResponseWriter, r *http.Request) (hookRequest, bool) {
	var req hookRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxHookBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return req, false
	}
	return req, true
}

func (g *Gateway) hookPortalRequest(req hookRequest, area domain.Area) *domain.PortalRequest {
	return &domain.PortalRequest{
		Method:    http.MethodGet,
		Route:     uri.ParseRoute(req.URI, g.opts.Modules),
		RawURI:    req.URI,
		Area:      area,
		SessionID: req.SessionID,
		LoggedIn:  req.LoggedIn,
		IsAdmin:   req.IsAdmin,
	}
}

func (g *Gateway) hookAppInit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeHook(w, r)
	if !ok {
		return
	}
	if g.opts.Root == nil {
		writeJSON(w, http.StatusOK, domain.NoRedirect())
		return
	}
	writeJSON(w, http.StatusOK, g.opts.Root.Apply(r.Context(), g.hookPortalRequest(req, domain.AreaClient)))
}

func (g *Gateway) hookAfterClientLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeHook(w, r)
	if !ok {
		return
	}
	if req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "session_id is required"})
		return
	}
	if err := g.opts.Sessions.SetLoggedIn(req.SessionID, true); err != nil {
		g.logger.Warn(map[string]any{"error": err.Error()}, "failed to record login")
	}
	writeJSON(w, http.StatusOK, g.opts.Login.OnLoginSuccess(req.SessionID))
}

func (g *Gateway) hookAfterClientAreaInit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeHook(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, g.opts.Login.Apply(r.Context(), g.hookPortalRequest(req, domain.AreaClient)))
}

func (g *Gateway) hookAdminInit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeHook(w, r)
	if !ok {
		return
	}
	preq := g.hookPortalRequest(req, domain.AreaAdmin)
	if g.opts.Notice != nil {
		g.opts.Notice.Apply(r.Context(), preq)
	}
	headers := preq.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"headers": headers})
}

func (g *Gateway) hookPreController(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeHook(w, r)
	if !ok {
		return
	}
	component := req.Component
	if component == "" {
		component = uri.ParseRoute(req.URI, g.opts.Modules).Component
	}
	resp := preControllerResponse{Get: req.Get, Post: req.Post}
	if g.opts.Clamp != nil {
		resp.Clamped = g.opts.Clamp.ClampParams(component, req.Get, req.Post)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) hookCustomersHead(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeHook(w, r)
	if !ok {
		return
	}
	if g.opts.Assets == nil || g.opts.AdminPaths.Match(req.URI) {
		writeHTML(w, http.StatusOK, "")
		return
	}
	writeHTML(w, http.StatusOK, g.opts.Assets.ClientHead(req.URI))
}

func (g *Gateway) hookNavigationStart(w http.ResponseWriter, r *http.Request) {
	if g.opts.Assets == nil {
		writeHTML(w, http.StatusOK, "")
		return
	}
	writeHTML(w, http.StatusOK, g.opts.Assets.SidebarScript())
}

// hookNavigation filters a navigation payload. The body is either a JSON
// array of entries or an object keyed by slug; the response has the same
// shape with blocked entries dropped and everything else passed through
// byte for byte.
func (g *Gateway) hookNavigation(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxHookBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unreadable body"})
		return
	}
	items, isObject, err := decodeNavigation(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if g.opts.Navigation == nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
		return
	}

	entries := make([]domain.NavigationEntry, len(items))
	for i, it := range items {
		entries[i] = it.entry
	}
	_, removed := g.opts.Navigation.FilterWithRemoved(entries)
	blocked := make(map[string]struct{}, len(removed))
	for _, id := range removed {
		blocked[id] = struct{}{}
	}
	kept := items[:0:0]
	for _, it := range items {
		if _, ok := blocked[it.entry.Identity()]; !ok {
			kept = append(kept, it)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(encodeNavigation(kept, isObject))
}

type navItem struct {
	key   string
	raw   json.RawMessage
	entry domain.NavigationEntry
}

// decodeNavigation reads an array or an ordered object of entries. Values
// that are not objects are kept as opaque items matched by key only.
func decodeNavigation(body []byte) ([]navItem, bool, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil, false, fmt.Errorf("invalid navigation payload: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '[' && delim != '{') {
		return nil, false, errors.New("navigation payload must be an array or object")
	}
	isObject := delim == '{'

	var items []navItem
	for dec.More() {
		var it navItem
		if isObject {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, false, fmt.Errorf("invalid navigation key: %w", err)
			}
			it.key, _ = keyTok.(string)
		}
		if err := dec.Decode(&it.raw); err != nil {
			return nil, false, fmt.Errorf("invalid navigation entry: %w", err)
		}
		_ = json.Unmarshal(it.raw, &it.entry)
		it.entry.Key = it.key
		items = append(items, it)
	}
	if _, err := dec.Token(); err != nil {
		return nil, false, fmt.Errorf("invalid navigation payload: %w", err)
	}
	return items, isObject, nil
}

func encodeNavigation(items []navItem, isObject bool) []byte {
	var buf bytes.Buffer
	open, closing := byte('['), byte(']')
	if isObject {
		open, closing = '{', '}'
	}
	buf.WriteByte(open)
	for i, it := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if isObject {
			k, _ := json.Marshal(it.key)
			buf.Write(k)
			buf.WriteByte(':')
		}
		buf.Write(it.raw)
	}
	buf.WriteByte(closing)
	buf.WriteByte('\n')
	return buf.Bytes()
}
