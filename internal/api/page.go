package api

import (
	"fmt"
	"net/http"

	"github.com/osteele/liquid"
)

// PageData is what the shell template can see.
type PageData struct {
	Title       string
	AuthEnabled bool
	UserEmail   string
	UserName    string
	Charts      []string
	Error       string
}

// PageRenderer renders the dashboard shell with Liquid.
type PageRenderer struct {
	tpl *liquid.Template
}

// NewPageRenderer parses src, or the built-in shell when src is empty.
func NewPageRenderer(src string) (*PageRenderer, error) {
	if src == "" {
		src = pageTemplate
	}
	engine := liquid.NewEngine()
	tpl, err := engine.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("parsing page template: %w", err)
	}
	return &PageRenderer{tpl: tpl}, nil
}

// Render writes the page as text/html.
func (p *PageRenderer) Render(w http.ResponseWriter, data PageData) error {
	out, err := p.tpl.Render(liquid.Bindings{
		"title":        data.Title,
		"auth_enabled": data.AuthEnabled,
		"signed_in":    data.UserEmail != "",
		"user_email":   data.UserEmail,
		"user_name":    data.UserName,
		"charts":       data.Charts,
		"error":        data.Error,
	})
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, werr := w.Write(out)
	return werr
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{ title | escape }}</title>
<script src="https://cdn.plot.ly/plotly-2.35.2.min.js"></script>
<style>
body { font-family: sans-serif; margin: 0; display: flex; }
aside { width: 280px; padding: 16px; background: #f5f5f5; min-height: 100vh; }
main { flex: 1; padding: 16px; }
select[multiple] { width: 100%; }
.error { color: #b00020; }
</style>
</head>
<body>
{% assign show_login = false %}{% if auth_enabled %}{% unless signed_in %}{% assign show_login = true %}{% endunless %}{% endif %}
{% if show_login %}
<main>
  <h1>Authentication Required</h1>
  {% if error != "" %}<p class="error">Login failed: {{ error | escape }}</p>{% endif %}
  <p>Sign in with your company Google account to view the dashboard.</p>
  <p><a href="/auth/login">Sign in with Google</a></p>
</main>
{% else %}
<aside>
  <h2>Filters</h2>
  {% if signed_in %}<p>{{ user_name | escape }}<br><small>{{ user_email | escape }}</small><br><a href="/auth/logout">Sign out</a></p>{% endif %}
  <label>Start <input type="date" id="start"></label><br>
  <label>End <input type="date" id="end"></label><br>
  <label>Split by <select id="dimension"></select></label>
  <div id="filters"></div>
  <button id="apply">Apply</button>
  <button id="refresh">Refresh data</button>
</aside>
<main>
  <h1>{{ title | escape }}</h1>
  <p id="status" class="error"></p>
  {% for chart in charts %}<div id="chart-{{ chart }}"></div>
  {% endfor %}
</main>
<script>
const charts = [{% for chart in charts %}"{{ chart }}"{% unless forloop.last %},{% endunless %}{% endfor %}];

function toPlotly(fig) {
  const data = [];
  fig.panels.forEach((panel, i) => {
    panel.traces.forEach(t => data.push({
      type: t.type, mode: t.mode, name: t.name, x: t.x, y: t.y,
      customdata: t.customdata, hovertemplate: t.hovertemplate,
      showlegend: t.showlegend, legendgroup: t.name,
      marker: { color: t.color }, line: { color: t.color, width: 2 },
      xaxis: "x" + (i + 1), yaxis: "y" + (i + 1),
    }));
  });
  const layout = { title: fig.title, height: fig.height, barmode: fig.barmode, hovermode: fig.hovermode,
    grid: { rows: Math.max(fig.panels.length, 1), columns: 1, pattern: "independent" }, annotations: [] };
  fig.panels.forEach((panel, i) => {
    const n = i + 1;
    layout["xaxis" + n] = { title: n === fig.panels.length ? fig.xaxis.title : "" };
    layout["yaxis" + n] = { title: fig.yaxis.title, range: fig.yaxis.range, zeroline: fig.yaxis.zeroline, zerolinecolor: "black", zerolinewidth: 2 };
    if (panel.title) {
      layout.annotations.push({ text: panel.title, showarrow: false, xref: "x" + n + " domain", yref: "y" + n + " domain", x: 0.5, y: 1.1 });
    }
  });
  return { data, layout };
}

async function loadOptions() {
  const resp = await fetch("/api/options");
  const opts = await resp.json();
  if (opts.error) document.getElementById("status").textContent = opts.error;
  if (opts.bounds) {
    document.getElementById("start").value = opts.bounds.start;
    document.getElementById("end").value = opts.bounds.end;
  }
  const dim = document.getElementById("dimension");
  (opts.dimensions || []).forEach(d => dim.add(new Option(d.label, d.value)));
  const filters = document.getElementById("filters");
  (opts.dimensions || []).filter(d => d.value).forEach(d => {
    const sel = document.createElement("select");
    sel.multiple = true;
    sel.name = d.value;
    ((opts.filters || {})[d.value] || []).forEach(v => sel.add(new Option(v, v)));
    const label = document.createElement("label");
    label.textContent = d.label;
    label.appendChild(sel);
    filters.appendChild(label);
  });
}

async function loadDashboard() {
  const params = new URLSearchParams();
  ["start", "end", "dimension"].forEach(id => {
    const v = document.getElementById(id).value;
    if (v) params.set(id, v);
  });
  document.querySelectorAll("#filters select").forEach(sel => {
    Array.from(sel.selectedOptions).forEach(o => params.append(sel.name, o.value));
  });
  const resp = await fetch("/api/dashboard?" + params.toString());
  const body = await resp.json();
  document.getElementById("status").textContent = body.error || "";
  (body.charts || []).forEach(fig => {
    const p = toPlotly(fig);
    Plotly.react("chart-" + fig.name, p.data, p.layout);
  });
}

document.getElementById("apply").onclick = loadDashboard;
document.getElementById("refresh").onclick = async () => {
  await fetch("/api/refresh", { method: "POST" });
  loadDashboard();
};
loadOptions().then(loadDashboard);
</script>
{% endif %}
</body>
</html>
`
