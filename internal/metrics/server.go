package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/betbot/betdex/pkg/logger"
)

// DebugServer serve 模式附带的本地调试服务：/metrics 与 /debug/pprof
type DebugServer struct {
	srv  *http.Server
	addr net.Addr
	done chan struct{}
}

func debugMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// StartDebug 非阻塞启动，ctx 结束时关闭。只应监听 localhost。
func StartDebug(ctx context.Context, listenAddr string) (*DebugServer, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	d := &DebugServer{
		srv:  &http.Server{Handler: debugMux(), ReadHeaderTimeout: 5 * time.Second},
		addr: ln.Addr(),
		done: make(chan struct{}),
	}
	go func() {
		if err := d.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("调试服务退出: %v", err)
		}
	}()
	go func() {
		defer close(d.done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = d.srv.Shutdown(shutdownCtx)
	}()
	return d, nil
}

// Addr 实际监听地址（listenAddr 端口为 0 时由系统分配）
func (d *DebugServer) Addr() string { return d.addr.String() }

// Done 关闭完成后 close
func (d *DebugServer) Done() <-chan struct{} { return d.done }
