package http

import (
	"html/template"

	"plate-dashboard/internal/service"
	"plate-dashboard/internal/view"
)

type navItem struct {
	Section service.Section
	Label   string
	Icon    string
}

func navItems() []navItem {
	labels := map[service.Section][2]string{
		service.SectionDashboard: {"Dashboard", "&#9632;"},
		service.SectionPlates:    {"Plates", "&#9776;"},
		service.SectionAnalytics: {"Analytics", "&#9650;"},
	}
	items := make([]navItem, 0, len(service.Sections))
	for _, s := range service.Sections {
		items = append(items, navItem{Section: s, Label: labels[s][0], Icon: labels[s][1]})
	}
	return items
}

type shellData struct {
	Session       string
	Snapshot      view.Snapshot
	Sections      []navItem
	TimeWindows   []int
	DefaultWindow int
	DailyPeriods  []int
	DailyDays     int
}

var shell = template.Must(template.New("shell").Funcs(template.FuncMap{
	"contentID": func(s service.Section) string { return s.ContentTarget() },
	"navID":     func(s service.Section) string { return s.NavTarget() },
	"icon":      func(s string) template.HTML { return template.HTML(s) },
}).Parse(shellTemplate))

const shellTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Plate Dashboard</title>
<style>
body { font-family: system-ui, sans-serif; margin: 0; display: flex; min-height: 100vh; background: #f5f6f8; }
nav { width: 200px; background: #212529; color: #fff; padding: 1rem 0; }
nav a { display: block; color: #adb5bd; padding: .6rem 1.2rem; text-decoration: none; }
nav a.active { color: #fff; background: #0d6efd; }
main { flex: 1; padding: 1.5rem; }
header { display: flex; justify-content: space-between; margin-bottom: 1rem; }
.stats { display: grid; grid-template-columns: repeat(4, 1fr); gap: 1rem; }
.stat-card { background: #fff; border-radius: 6px; padding: 1rem; display: flex; flex-direction: column; }
.stat-value { font-size: 1.6rem; font-weight: 600; }
.charts { display: grid; grid-template-columns: 2fr 1fr; gap: 1rem; margin: 1rem 0; }
.chart { width: 100%; background: #fff; border-radius: 6px; }
table { width: 100%; background: #fff; border-collapse: collapse; }
td, th { padding: .5rem; border-bottom: 1px solid #dee2e6; text-align: left; }
.badge { padding: .2rem .5rem; border-radius: 4px; color: #fff; }
.badge-success { background: #198754; } .badge-warning { background: #ffc107; color: #000; } .badge-danger { background: #dc3545; }
.group-info, .group-variants { font-size: .8rem; color: #6c757d; }
.dedupe-banner { background: #cff4fc; padding: .6rem 1rem; border-radius: 6px; margin: .5rem 0; }
.page-link { margin: 0 .15rem; } .page-link.active { font-weight: 700; }
#toasts { position: fixed; right: 1rem; bottom: 1rem; display: flex; flex-direction: column; gap: .5rem; }
.toast { padding: .7rem 1rem; border-radius: 6px; color: #fff; background: #0d6efd; }
.toast-error { background: #dc3545; } .toast-success { background: #198754; }
[hidden] { display: none !important; }
</style>
</head>
<body data-session="{{.Session}}">
<nav>
{{range .Sections}}<a href="#" id="{{navID .Section}}" data-action="navigate" data-section="{{.Section}}"{{if $.Snapshot.IsActive (navID .Section)}} class="active"{{end}}>{{icon .Icon}} {{.Label}}</a>
{{end}}
</nav>
<main>
<header>
  <h1>License plate reads</h1>
  <span id="clock">{{.Snapshot.Fragment "clock"}}</span>
</header>

<section id="{{contentID "dashboard"}}"{{if not (.Snapshot.IsVisible (contentID "dashboard"))}} hidden{{end}}>
  <div class="stats" id="overview-stats">{{.Snapshot.Fragment "overview-stats"}}</div>
  <div class="charts">
    <div>
      <label>Period
        <select data-action="daily-period">
        {{range .DailyPeriods}}<option value="{{.}}"{{if eq . $.DailyDays}} selected{{end}}>{{.}} days</option>{{end}}
        </select>
      </label>
      <div id="daily-chart">{{.Snapshot.Fragment "daily-chart"}}</div>
    </div>
    <div id="hourly-chart">{{.Snapshot.Fragment "hourly-chart"}}</div>
  </div>
  <h2>Most read plates</h2>
  <table>
    <thead><tr><th>Plate</th><th>Reads</th><th>Confidence</th><th>Last seen</th></tr></thead>
    <tbody id="top-plates">{{.Snapshot.Fragment "top-plates"}}</tbody>
  </table>
</section>

<section id="{{contentID "plates"}}"{{if not (.Snapshot.IsVisible (contentID "plates"))}} hidden{{end}}>
  <div class="filters">
    <input id="search-input" type="search" placeholder="Plate">
    <button data-action="search">Search</button>
    <input id="date-from" type="date" data-action="dates">
    <input id="date-to" type="date" data-action="dates">
    <label><input id="dedupe-toggle" type="checkbox" data-action="dedupe"> Group repeated reads</label>
    <span id="time-window-control"{{if not (.Snapshot.IsVisible "time-window-control")}} hidden{{end}}>
      <select id="time-window" data-action="window">
      {{range .TimeWindows}}<option value="{{.}}"{{if eq . $.DefaultWindow}} selected{{end}}>{{.}}s</option>{{end}}
      </select>
    </span>
    <span id="plates-loading"{{if not (.Snapshot.IsVisible "plates-loading")}} hidden{{end}}>Loading&hellip;</span>
  </div>
  <div id="dedupe-banner"{{if not (.Snapshot.IsVisible "dedupe-banner")}} hidden{{end}}>{{.Snapshot.Fragment "dedupe-banner"}}</div>
  <div id="plates-count">{{.Snapshot.Fragment "plates-count"}}</div>
  <table>
    <thead><tr><th>ID</th><th>Frame</th><th>Vehicle</th><th>Plate</th><th>Confidence</th><th>Date</th></tr></thead>
    <tbody id="plates-table">{{.Snapshot.Fragment "plates-table"}}</tbody>
  </table>
  <div id="plates-pagination">{{.Snapshot.Fragment "plates-pagination"}}</div>
</section>

<section id="{{contentID "analytics"}}"{{if not (.Snapshot.IsVisible (contentID "analytics"))}} hidden{{end}}>
  <div id="analytics-content">{{.Snapshot.Fragment "analytics-content"}}</div>
</section>
</main>
<div id="toasts"></div>
<script>
(function () {
  function byId(id) { return document.getElementById(id); }

  function toast(t) {
    var box = document.createElement("div");
    box.className = "toast toast-" + (t.level || "info");
    box.textContent = t.message;
    byId("toasts").appendChild(box);
    setTimeout(function () { box.remove(); }, 5000);
  }

  var base = "/ui/s/" + encodeURIComponent(document.body.dataset.session);

  function post(action, body) {
    return fetch(base + "/actions/" + action, {
      method: "POST",
      headers: { "Content-Type": "application/json" },
      body: JSON.stringify(body || {})
    }).then(function (resp) {
      if (!resp.ok) {
        return resp.json().then(function (b) { toast({ level: "error", message: b.error || resp.statusText }); });
      }
    }).catch(function (err) { toast({ level: "error", message: String(err) }); });
  }

  function int(v) { return parseInt(v, 10); }

  var started = false;
  var events = new EventSource(base + "/events");
  events.addEventListener("error", function () {
    if (events.readyState === EventSource.CLOSED) {
      toast({ level: "error", message: "Session expired, reload the page" });
    }
  });
  events.addEventListener("open", function () {
    if (started) { return; }
    started = true;
    post("navigate", { section: "dashboard" });
  });
  events.addEventListener("html", function (e) {
    var u = JSON.parse(e.data), node = byId(u.target);
    if (node) { node.innerHTML = u.html; }
  });
  events.addEventListener("visible", function (e) {
    var u = JSON.parse(e.data), node = byId(u.target);
    if (node) { node.hidden = !u.visible; }
  });
  events.addEventListener("active", function (e) {
    var u = JSON.parse(e.data), node = byId(u.target);
    if (node) { node.classList.toggle("active", !!u.active); }
  });
  events.addEventListener("toast", function (e) { toast(JSON.parse(e.data).toast); });

  var clicks = {
    navigate: function (el) { post("navigate", { section: el.dataset.section }); },
    page: function (el) { post("page", { page: int(el.dataset.page) }); },
    search: function () { post("search", { search: byId("search-input").value }); }
  };
  var changes = {
    dates: function () { post("dates", { date_from: byId("date-from").value, date_to: byId("date-to").value }); },
    dedupe: function (el) { post("dedupe", { enabled: el.checked, time_window: int(byId("time-window").value) }); },
    window: function (el) { post("window", { time_window: int(el.value) }); },
    "daily-period": function (el) { post("daily-period", { days: int(el.value) }); }
  };

  document.addEventListener("click", function (e) {
    var el = e.target.closest("[data-action]");
    if (!el || !clicks[el.dataset.action]) { return; }
    e.preventDefault();
    clicks[el.dataset.action](el);
  });
  document.addEventListener("change", function (e) {
    var el = e.target;
    if (!el.dataset || !changes[el.dataset.action]) { return; }
    changes[el.dataset.action](el);
  });
  byId("search-input").addEventListener("keydown", function (e) {
    if (e.key === "Enter") { clicks.search(); }
  });
})();
</script>
</body>
</html>
`
