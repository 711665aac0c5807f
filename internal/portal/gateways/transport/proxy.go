package transport

import (
	"bytes"
	"context"
	"io"
	"maps"
	"mime"
	"net/http"
	"net/http/httputil"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/haukened/portalgate/internal/portal/common/uri"
	"github.com/haukened/portalgate/internal/portal/domain"
	"github.com/haukened/portalgate/internal/portal/gateways/htmldoc"
)

const (
	maxFormBytes     = 10 << 20
	maxDocumentBytes = 16 << 20
)

type portalRequestKey struct{}

func withPortalRequest(ctx context.Context, req *domain.PortalRequest) context.Context {
	return context.WithValue(ctx, portalRequestKey{}, req)
}

func portalRequestFrom(ctx context.Context) (*domain.PortalRequest, bool) {
	req, ok := ctx.Value(portalRequestKey{}).(*domain.PortalRequest)
	return req, ok
}

// requestValues holds the parameters as received, to detect policy edits.
type requestValues struct {
	query   url.Values
	form    url.Values
	rawForm string
}

func (g *Gateway) serveProxy(w http.ResponseWriter, r *http.Request) {
	preq, orig := g.portalRequest(r)

	if preq.SessionID != "" && g.opts.LogoutPaths.Match(r.URL.Path) {
		if err := g.opts.Sessions.Delete(preq.SessionID); err != nil {
			g.logger.Warn(map[string]any{"error": err.Error()}, "failed to clear session on logout")
		}
		preq.LoggedIn = false
	}

	dec := g.opts.Pipeline.Run(r.Context(), preq)
	if dec.ShouldRedirect {
		applyHeaders(w.Header(), preq.Headers)
		http.Redirect(w, r, dec.Target, http.StatusFound)
		return
	}

	writeBack(r, preq, orig)
	g.proxy.ServeHTTP(w, r.WithContext(withPortalRequest(r.Context(), preq)))
}

// portalRequest builds the policy view of r. Urlencoded bodies are read and
// replaced so they can still be proxied.
func (g *Gateway) portalRequest(r *http.Request) (*domain.PortalRequest, requestValues) {
	preq := &domain.PortalRequest{
		Method: r.Method,
		Route:  uri.ParseRoute(r.URL.Path, g.opts.Modules),
		RawURI: r.URL.RequestURI(),
		Query:  r.URL.Query(),
	}
	if c, err := r.Cookie(g.opts.SessionCookie); err == nil {
		preq.SessionID = c.Value
	}
	switch {
	case g.opts.AdminPaths.Match(r.URL.Path):
		preq.Area = domain.AreaAdmin
		preq.IsAdmin = preq.SessionID != ""
	case g.opts.StaticPaths.Match(r.URL.Path):
		preq.Area = domain.AreaStatic
	}
	if preq.SessionID != "" {
		loggedIn, err := g.opts.Sessions.IsLoggedIn(preq.SessionID)
		if err != nil {
			g.logger.Warn(map[string]any{"error": err.Error()}, "failed to read session state")
		}
		preq.LoggedIn = loggedIn
	}

	orig := requestValues{query: cloneValues(preq.Query)}
	if isURLEncoded(r) {
		preq.Form, orig.rawForm = g.readForm(r)
		orig.form = cloneValues(preq.Form)
	}
	return preq, orig
}

func (g *Gateway) readForm(r *http.Request) (url.Values, string) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, ""
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFormBytes+1))
	if err != nil {
		g.logger.Warn(map[string]any{"error": err.Error()}, "failed to read form body")
		r.Body = readCloser{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}
		return nil, ""
	}
	if len(body) > maxFormBytes {
		r.Body = readCloser{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}
		return nil, ""
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	form, err := url.ParseQuery(string(body))
	if err != nil {
		g.logger.Debug(map[string]any{"error": err.Error()}, "form body not parsed")
		return nil, ""
	}
	return form, string(body)
}

// writeBack re-encodes the query and form when a policy changed them. Pairs
// keep the order they arrived in.
func writeBack(r *http.Request, preq *domain.PortalRequest, orig requestValues) {
	if !valuesEqual(orig.query, preq.Query) {
		r.URL.RawQuery = encodeInOrder(r.URL.RawQuery, preq.Query)
	}
	if preq.Form != nil && !valuesEqual(orig.form, preq.Form) {
		enc := encodeInOrder(orig.rawForm, preq.Form)
		r.Body = io.NopCloser(strings.NewReader(enc))
		r.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(enc)), nil }
		r.ContentLength = int64(len(enc))
		r.Header.Set("Content-Length", strconv.Itoa(len(enc)))
	}
}

// encodeInOrder encodes vals following the pair order of raw. Pairs whose
// decoded value is unchanged are copied verbatim. Keys missing from raw are
// appended in sorted order, and pairs url.ParseQuery would reject are dropped.
func encodeInOrder(raw string, vals url.Values) string {
	used := make(map[string]int, len(vals))
	var b strings.Builder
	write := func(pair string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(pair)
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" || strings.Contains(pair, ";") {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		i := used[key]
		if i >= len(vals[key]) {
			continue
		}
		used[key] = i + 1
		if val, err := url.QueryUnescape(v); err == nil && val == vals[key][i] {
			write(pair)
			continue
		}
		write(url.QueryEscape(key) + "=" + url.QueryEscape(vals[key][i]))
	}
	for _, key := range slices.Sorted(maps.Keys(vals)) {
		for _, v := range vals[key][used[key]:] {
			write(url.QueryEscape(key) + "=" + url.QueryEscape(v))
		}
	}
	return b.String()
}

func (g *Gateway) rewriteOutbound(pr *httputil.ProxyRequest) {
	pr.SetURL(g.opts.Upstream)
	pr.SetXForwarded()
	pr.Out.Host = pr.In.Host
	// Responses are rewritten as plain HTML.
	pr.Out.Header.Del("Accept-Encoding")
}

func (g *Gateway) modifyResponse(resp *http.Response) error {
	preq, ok := portalRequestFrom(resp.Request.Context())
	if !ok {
		return nil
	}
	applyHeaders(resp.Header, preq.Headers)

	if g.isLoginSuccess(resp, preq) {
		g.completeLogin(resp, preq)
		return nil
	}
	g.followRotation(resp, preq)

	if g.shouldRewrite(resp, preq) {
		g.rewriteDocument(resp, preq)
	}
	return nil
}

// isLoginSuccess reports a login form post the host answered with a
// redirect away from the login pages.
func (g *Gateway) isLoginSuccess(resp *http.Response, preq *domain.PortalRequest) bool {
	if preq.Method != http.MethodPost || !g.opts.LoginPaths.Match(preq.Route.URIString) {
		return false
	}
	if resp.StatusCode < 300 || resp.StatusCode > 399 {
		return false
	}
	loc, err := resp.Location()
	if err != nil {
		return false
	}
	return !g.opts.LoginPaths.Match(loc.Path)
}

func (g *Gateway) completeLogin(resp *http.Response, preq *domain.PortalRequest) {
	id := responseSession(resp, g.opts.SessionCookie)
	if id == "" {
		id = preq.SessionID
	}
	if id == "" {
		g.logger.Warn(map[string]any{"path": preq.Route.URIString}, "login succeeded without a session cookie")
		return
	}
	if err := g.opts.Sessions.SetLoggedIn(id, true); err != nil {
		g.logger.Warn(map[string]any{"error": err.Error()}, "failed to record login")
	}
	if dec := g.opts.Login.OnLoginSuccess(id); dec.ShouldRedirect {
		resp.Header.Set("Location", dec.Target)
	}
}

// followRotation carries the logged-in state over when the host issues a
// new session id.
func (g *Gateway) followRotation(resp *http.Response, preq *domain.PortalRequest) {
	if !preq.LoggedIn {
		return
	}
	id := responseSession(resp, g.opts.SessionCookie)
	if id == "" || id == preq.SessionID {
		return
	}
	if err := g.opts.Sessions.SetLoggedIn(id, true); err != nil {
		g.logger.Warn(map[string]any{"error": err.Error()}, "failed to follow session rotation")
	}
}

func (g *Gateway) shouldRewrite(resp *http.Response, preq *domain.PortalRequest) bool {
	if preq.Area != domain.AreaClient || preq.Method == http.MethodHead {
		return false
	}
	if resp.StatusCode != http.StatusOK || !g.opts.Pipeline.HasDocumentPolicies() {
		return false
	}
	if enc := resp.Header.Get("Content-Encoding"); enc != "" && enc != "identity" {
		return false
	}
	mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && mt == "text/html"
}

// rewriteDocument runs the document policies over an HTML response. Any
// failure leaves the body as received.
func (g *Gateway) rewriteDocument(resp *http.Response, preq *domain.PortalRequest) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil || len(body) > maxDocumentBytes {
		if err != nil {
			g.logger.Warn(map[string]any{"error": err.Error()}, "failed to read upstream document")
		}
		resp.Body = readCloser{io.MultiReader(bytes.NewReader(body), resp.Body), resp.Body}
		return
	}
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	doc, err := htmldoc.Parse(bytes.NewReader(body))
	if err != nil {
		g.logger.Warn(map[string]any{"error": err.Error()}, "upstream document not parsed")
		return
	}
	g.opts.Pipeline.Rewrite(resp.Request.Context(), preq, doc)
	out, err := htmldoc.Render(doc)
	if err != nil {
		g.logger.Warn(map[string]any{"error": err.Error()}, "rewritten document not rendered")
		return
	}
	resp.Body = io.NopCloser(bytes.NewReader(out))
	resp.ContentLength = int64(len(out))
	resp.Header.Set("Content-Length", strconv.Itoa(len(out)))
	resp.Header.Del("ETag")
}

func responseSession(resp *http.Response, name string) string {
	id := ""
	for _, c := range resp.Cookies() {
		if c.Name == name && c.Value != "" && c.MaxAge >= 0 {
			id = c.Value
		}
	}
	return id
}

func isURLEncoded(r *http.Request) bool {
	if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
		return false
	}
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/x-www-form-urlencoded"
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return nil
	}
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = slices.Clone(vals)
	}
	return out
}

func valuesEqual(a, b url.Values) bool {
	return maps.EqualFunc(a, b, func(x, y []string) bool { return slices.Equal(x, y) })
}

type readCloser struct {
	io.Reader
	io.Closer
}
