package transport

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"
)

const defaultActivityLimit = 50

var adminIndexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Info.Name}}</title></head>
<body>
<h1>{{.Info.Name}}</h1>
<p>Client navigation filtering and storefront redirects are active.</p>
<h2>Blocked navigation slugs</h2>
<ul>{{range .Slugs}}<li><code>{{.}}</code></li>{{else}}<li>none</li>{{end}}</ul>
<h2>Storefront</h2>
<dl>
<dt>Redirect target</dt><dd><a href="{{.Info.Target}}">{{.Info.Target}}</a></dd>
<dt>Marker</dt><dd><code>{{.Info.Marker}}</code></dd>
<dt>Cart</dt><dd>{{.Info.CartURL}}</dd>
</dl>
<h2>Request policies</h2>
<ol>{{range .Stages}}<li>{{.}}</li>{{end}}</ol>
<p><a href="debug_menus">Navigation debug</a> | <a href="activity">Activity</a> | <a href="stats">Stats</a></p>
</body>
</html>
`))

type adminIndexData struct {
	Info   ModuleInfo
	Slugs  []string
	Stages []string
}

func (g *Gateway) adminIndex(w http.ResponseWriter, r *http.Request) {
	data := adminIndexData{Info: g.opts.Info, Stages: g.opts.Pipeline.StageNames()}
	if data.Info.Name == "" {
		data.Info.Name = "Menu Remover"
	}
	if g.opts.Navigation != nil {
		data.Slugs = g.opts.Navigation.Slugs()
	}
	var buf bytes.Buffer
	if err := adminIndexTemplate.Execute(&buf, data); err != nil {
		g.logger.Error(map[string]any{"error": err.Error()}, "failed to render admin index")
		writeText(w, http.StatusInternalServerError, "internal error\n")
		return
	}
	writeHTML(w, http.StatusOK, buf.String())
}

func (g *Gateway) adminDebugMenus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"found": false}
	if g.opts.Navigation != nil {
		resp["blocked_slugs"] = g.opts.Navigation.Slugs()
	}
	if g.opts.Snapshots != nil {
		if snap, ok := g.opts.Snapshots.Last(); ok {
			resp["found"] = true
			resp["snapshot"] = snap
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) adminActivity(w http.ResponseWriter, r *http.Request) {
	if g.opts.Activity == nil {
		writeJSON(w, http.StatusOK, map[string]any{"records": []any{}})
		return
	}
	limit := defaultActivityLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid limit"})
			return
		}
		limit = n
	}
	records, err := g.opts.Activity.Recent(limit)
	if err != nil {
		g.logger.Error(map[string]any{"error": err.Error()}, "failed to read activity")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "activity unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (g *Gateway) adminStats(w http.ResponseWriter, r *http.Request) {
	if g.opts.Stats == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "stats unavailable"})
		return
	}
	st := g.opts.Stats.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"cache": map[string]any{
			"capacity":  st.Cache.Capacity,
			"size":      st.Cache.Size,
			"hits":      st.Cache.Hits,
			"misses":    st.Cache.Misses,
			"evictions": st.Cache.Evictions,
		},
		"store": map[string]any{
			"version":      st.Store.Version,
			"updated_unix": st.Store.UpdatedUnix,
			"slugs":        st.Store.Slugs,
		},
	})
}
