package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/senseo-control/internal/machine"
	"github.com/sweeney/senseo-control/internal/status"
)

func newTestServer(t *testing.T, cfg status.Config) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

var testConfig = status.Config{
	OneEspressoMs: 15000,
	TwoEspressoMs: 28000,
	OneCoffeeMs:   26000,
	TwoCoffeeMs:   52000,
	AutoOffMs:     180000,
	HeartbeatMs:   900000,
	Broker:        "tcp://192.168.1.200:1883",
	HTTPPort:      ":80",
	ADCPort:       "/dev/ttyACM0",
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func getHTML(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, testConfig)
	tr.Update(machine.Snapshot{
		Powered:     true,
		Water:       true,
		Temperature: true,
		Brew:        machine.BrewTwoCoffee,
		LED:         machine.LEDGreenBlink,
		Pumping:     true,
		BrewElapsed: 12 * time.Second,
	})
	tr.Record(machine.Event{Type: machine.EventPowerOn})
	tr.Record(machine.Event{Type: machine.EventBrewEnd, Brew: machine.BrewOneCoffee, Outcome: machine.OutcomeComplete})
	tr.SetMQTTConnected(true)

	sj := getJSON(t, ts.URL)

	if sj.Status.Machine.State != "BREWING" {
		t.Errorf("State: got %q, want BREWING", sj.Status.Machine.State)
	}
	if sj.Status.Machine.Brew != "2-coffee" {
		t.Errorf("Brew: got %q, want 2-coffee", sj.Status.Machine.Brew)
	}
	if sj.Status.Machine.LED != "green blink" {
		t.Errorf("LED: got %q, want green blink", sj.Status.Machine.LED)
	}
	if sj.Status.Machine.BrewElapsedMs != 12000 {
		t.Errorf("BrewElapsedMs: got %d, want 12000", sj.Status.Machine.BrewElapsedMs)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Counts.PowerOns != 1 || sj.Status.Counts.OneCoffee != 1 {
		t.Errorf("unexpected counts: %+v", sj.Status.Counts)
	}
	if sj.Status.LastBrew == nil || sj.Status.LastBrew.Brew != "1-coffee" {
		t.Errorf("unexpected last brew: %+v", sj.Status.LastBrew)
	}
	if sj.Status.Config.TwoCoffeeMs != 52000 || sj.Status.Config.ADCPort != "/dev/ttyACM0" {
		t.Errorf("unexpected config: %+v", sj.Status.Config)
	}
}

func TestJSONOffBeforeFirstUpdate(t *testing.T) {
	ts, _ := newTestServer(t, testConfig)

	sj := getJSON(t, ts.URL)
	if sj.Status.Machine.State != "OFF" {
		t.Errorf("State: got %q, want OFF", sj.Status.Machine.State)
	}
	if sj.Status.Machine.Brew != "none" {
		t.Errorf("Brew: got %q, want none", sj.Status.Machine.Brew)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t, testConfig)
	tr.SetNetwork(&status.NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "kitchen"})

	sj := getJSON(t, ts.URL)
	if sj.Status.Network == nil || sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("unexpected network: %+v", sj.Status.Network)
	}
}

func TestHTMLEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, testConfig)
	tr.Update(machine.Snapshot{Powered: true, Water: true, LED: machine.LEDRedBlink, Boiler: true})
	tr.Record(machine.Event{
		Type:    machine.EventBrewEnd,
		Brew:    machine.BrewOneEspresso,
		Outcome: machine.OutcomeCancelled,
		Elapsed: 4 * time.Second,
	})

	for _, path := range []string{"/", "/index.html"} {
		body := getHTML(t, ts.URL+path)
		for _, want := range []string{
			`<td id="state" class="HEATING">HEATING</td>`,
			"red blink",
			"1-espresso CANCELLED after 4s",
			"15s / 28s / 26s / 52s",
			"tcp://192.168.1.200:1883",
		} {
			if !strings.Contains(body, want) {
				t.Errorf("%s: missing %q", path, want)
			}
		}
		if strings.Contains(body, "mqtt.connect") {
			t.Errorf("%s: live script should be absent without a websocket broker", path)
		}
	}
}

func TestHTMLLiveScript(t *testing.T) {
	cfg := testConfig
	cfg.WSBroker = "ws://192.168.1.200:9001"
	ts, _ := newTestServer(t, cfg)

	// html/template escapes slashes inside script strings.
	body := strings.ReplaceAll(getHTML(t, ts.URL+"/"), `\/`, "/")
	if !strings.Contains(body, "mqtt.connect") {
		t.Error("expected live script")
	}
	if !strings.Contains(body, "appliance/coffee/senseo/events") {
		t.Error("live script should subscribe to the events topic")
	}
}

func TestHTMLBrokerDisabled(t *testing.T) {
	cfg := testConfig
	cfg.Broker = ""
	ts, _ := newTestServer(t, cfg)

	body := getHTML(t, ts.URL+"/")
	if !strings.Contains(body, "<td>disabled</td>") {
		t.Error("expected broker shown as disabled")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, testConfig)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestReadOnlyMethods(t *testing.T) {
	ts, _ := newTestServer(t, testConfig)

	resp, err := http.Post(ts.URL+"/index.json", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
	if got := resp.Header.Get("Allow"); got != "GET, HEAD" {
		t.Errorf("Allow: got %q", got)
	}
}

type fixedSource status.Snapshot

func (f fixedSource) Snapshot() status.Snapshot { return status.Snapshot(f) }

func TestServerAcceptsAnySource(t *testing.T) {
	src := fixedSource{Machine: machine.Snapshot{Powered: true, Water: true, Clean: true}}
	ts := httptest.NewServer(New(":0", src).httpServer.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control: got %q", got)
	}
	var js status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&js); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if js.Status.Machine.State != "CLEANING" {
		t.Errorf("state: got %q, want CLEANING", js.Status.Machine.State)
	}
}
