package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesCounters(t *testing.T) {
	Transactions.WithLabelValues("bet", "mined").Inc()
	AggregationSkipped.WithLabelValues("claimable", "match").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`betdex_transactions_total{method="bet",outcome="mined"}`,
		`betdex_aggregation_skipped_total{stage="match",view="claimable"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics 输出缺少 %s", want)
		}
	}
}

func TestStartDebug(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := StartDebug(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("StartDebug 失败: %v", err)
	}
	for _, path := range []string{"/metrics", "/debug/pprof/"} {
		resp, err := http.Get("http://" + d.Addr() + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status=%d", path, resp.StatusCode)
		}
	}

	cancel()
	select {
	case <-d.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("调试服务没有关闭")
	}
}
