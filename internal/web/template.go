package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/habit-button/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"weeks": func(n int) string {
		if n == 1 {
			return "1 week"
		}
		return fmt.Sprintf("%d weeks", n)
	},
	"stamp": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("Mon 2 Jan 15:04 MST")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Habit Button</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.big { font-size: 1.3em; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.fault { color: red; font-weight: bold; }
button { font-family: monospace; font-size: 1em; padding: 6px 16px; }
</style>
</head>
<body>
<h1>Habit Button</h1>

<h2>Progress</h2>
<table>
<tr><th>This week</th><td id="volume" class="big">{{.Stats.WeeklyVolume}}</td></tr>
<tr><th>Streak</th><td id="streak" class="big">{{weeks .Stats.WeeklyStreak}}</td></tr>
<tr><th>Total</th><td id="total" class="big">{{.Stats.Total}}</td></tr>
</table>
<form method="post" action="/log" id="log-form"><button type="submit">Log one</button></form>

<h2>Display</h2>
<table>
<tr><th>Screen</th><td>{{.State}}</td></tr>
<tr><th>Presses since start</th><td>{{.Presses}}</td></tr>
<tr><th>Next reset</th><td>{{stamp .NextReset}}</td></tr>
</table>

<h2>Faults</h2>
<table>
<tr><th>Storage</th><td{{if .Faults.Storage}} class="fault"{{end}}>{{.Faults.Storage}}</td></tr>
<tr><th>Render</th><td{{if .Faults.Render}} class="fault"{{end}}>{{.Faults.Render}}</td></tr>
<tr><th>Input</th><td{{if .Faults.Input}} class="fault"{{end}}>{{.Faults.Input}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Long press</th><td>{{.Config.LongPressMs}}ms</td></tr>
<tr><th>Stats screen</th><td>{{.Config.StatsSeconds}}s</td></tr>
<tr><th>Daily reset</th><td>{{.Config.ResetAt}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/stats">stats</a> | <a href="/logs">logs</a></p>
<script>
(function() {
  var form = document.getElementById("log-form");
  function refresh() {
    fetch("/stats").then(function(r) { return r.json(); }).then(function(s) {
      document.getElementById("volume").textContent = s.volume;
      document.getElementById("streak").textContent = s.streak === 1 ? "1 week" : s.streak + " weeks";
      document.getElementById("total").textContent = s.total;
    }).catch(function() {});
  }
  form.addEventListener("submit", function(e) {
    e.preventDefault();
    fetch("/log", { method: "POST" }).then(function() { setTimeout(refresh, 500); });
  });
  setInterval(refresh, 30000);
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
