package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/senseo-control/internal/mqtt"
	"github.com/sweeney/senseo-control/internal/status"
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
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
	"seconds": func(ms int64) string {
		return (time.Duration(ms) * time.Millisecond).String()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Senseo Control</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.READY { color: green; font-weight: bold; }
.BREWING, .CLEANING { color: #06c; font-weight: bold; }
.HEATING { color: #c60; }
.NO_WATER { color: red; font-weight: bold; }
.OFF { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Senseo Control{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Machine</h2>
<table>
<tr><th>State</th><td id="state" class="{{.State}}">{{.State}}</td></tr>
<tr><th>Water</th><td>{{if .Machine.Water}}ok{{else}}empty{{end}}</td></tr>
<tr><th>Temperature</th><td>{{if .Machine.Temperature}}ready{{else}}cold{{end}}</td></tr>
<tr><th>Boiler</th><td>{{if .Machine.Boiler}}on{{else}}off{{end}}</td></tr>
<tr><th>Request</th><td>{{.Machine.Brew}}</td></tr>
<tr><th>LED</th><td>{{.Machine.LED}}</td></tr>
<tr><th>Idle</th><td>{{.Machine.IdleSeconds}}s</td></tr>
<tr><th>Last event</th><td id="last-event">-</td></tr>
{{with .LastBrew}}<tr><th>Last brew</th><td>{{.Brew}} {{.Outcome}} after {{.Elapsed}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>1 espresso</th><td>{{.Counts.OneEspresso}}</td></tr>
<tr><th>2 espresso</th><td>{{.Counts.TwoEspresso}}</td></tr>
<tr><th>1 coffee</th><td>{{.Counts.OneCoffee}}</td></tr>
<tr><th>2 coffee</th><td>{{.Counts.TwoCoffee}}</td></tr>
<tr><th>Cancelled</th><td>{{.Counts.Cancelled}}</td></tr>
<tr><th>Ran dry</th><td>{{.Counts.WaterEmpty}}</td></tr>
<tr><th>Cleans</th><td>{{.Counts.Cleans}}</td></tr>
<tr><th>Power on</th><td>{{.Counts.PowerOns}}</td></tr>
<tr><th>Auto off</th><td>{{.Counts.AutoOffs}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Pump times</th><td>{{seconds .Config.OneEspressoMs}} / {{seconds .Config.TwoEspressoMs}} / {{seconds .Config.OneCoffeeMs}} / {{seconds .Config.TwoCoffeeMs}}</td></tr>
<tr><th>Auto off</th><td>{{seconds .Config.AutoOffMs}}</td></tr>
<tr><th>Coffee wish</th><td>{{yesno .Config.CoffeeWish}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>ADC</th><td>{{.Config.ADCPort}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "{{.Topic}}";
  var dot = document.getElementById("live-dot");
  var lastEl = document.getElementById("last-event");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.coffee) {
        lastEl.textContent = msg.coffee.event + (msg.coffee.brew ? " " + msg.coffee.brew : "");
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := struct {
		status.Snapshot
		Uptime time.Duration
		State  string
		Topic  string
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		State:    status.StateName(snap.Machine),
		Topic:    mqtt.Topic,
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("render status page: %v", err)
	}
}
