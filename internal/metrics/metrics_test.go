package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCountersAreRegistered(t *testing.T) {
	SignalsTotal.WithLabelValues("BUY").Inc()
	ExchangeRequests.WithLabelValues("klines", "ok").Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	want := map[string]bool{
		"cryptopredictor_signals_total":           false,
		"cryptopredictor_exchange_requests_total": false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s metric not found", name)
		}
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	BotCommands.WithLabelValues("main", "start").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "cryptopredictor_bot_commands_total") {
		t.Error("bot command counter missing from /metrics output")
	}
}

func TestServeDisabled(t *testing.T) {
	if srv := Serve(""); srv != nil {
		t.Error("Serve(\"\") should not start a server")
	}
}
