package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Tsukikage7/scheduler-kit/logger"
)

// Runner 可启动和关闭的引擎.
type Runner interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// engineComponent 将引擎适配为组件.
type engineComponent struct {
	name   string
	runner Runner
}

// Engine 将引擎包装为组件，Start 在引擎启动后立即返回.
func Engine(name string, runner Runner) Component {
	return &engineComponent{name: name, runner: runner}
}

func (c *engineComponent) Name() string                   { return c.name }
func (c *engineComponent) Start(context.Context) error    { return c.runner.Start() }
func (c *engineComponent) Stop(ctx context.Context) error { return c.runner.Shutdown(ctx) }

// HTTPOption HTTP 服务配置选项.
type HTTPOption func(*httpOptions)

type httpOptions struct {
	name         string
	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration
	logger       logger.Logger
}

func defaultHTTPOptions() *httpOptions {
	return &httpOptions{
		name:         "http",
		addr:         ":9100",
		readTimeout:  30 * time.Second,
		writeTimeout: 30 * time.Second,
		idleTimeout:  120 * time.Second,
		logger:       logger.NewNop(),
	}
}

// WithHTTPName 设置组件名称.
func WithHTTPName(name string) HTTPOption {
	return func(o *httpOptions) { o.name = name }
}

// WithHTTPAddr 设置监听地址.
func WithHTTPAddr(addr string) HTTPOption {
	return func(o *httpOptions) { o.addr = addr }
}

// WithHTTPTimeouts 设置读取、写入与空闲超时.
func WithHTTPTimeouts(read, write, idle time.Duration) HTTPOption {
	return func(o *httpOptions) {
		o.readTimeout = read
		o.writeTimeout = write
		o.idleTimeout = idle
	}
}

// WithHTTPLogger 设置日志记录器.
func WithHTTPLogger(log logger.Logger) HTTPOption {
	return func(o *httpOptions) {
		if log != nil {
			o.logger = log
		}
	}
}

// HTTPServer HTTP 服务组件，用于暴露指标等管理端点.
type HTTPServer struct {
	opts    *httpOptions
	handler http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewHTTPServer 创建 HTTP 服务组件.
//
// 示例:
//
//	mux := http.NewServeMux()
//	mux.Handle("/metrics", collector.GetHandler())
//	srv := app.NewHTTPServer(mux, app.WithHTTPAddr(":9100"))
func NewHTTPServer(handler http.Handler, opts ...HTTPOption) *HTTPServer {
	o := defaultHTTPOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &HTTPServer{opts: o, handler: handler}
}

// Start 监听并提供服务，直到 ctx 取消或服务关闭.
func (s *HTTPServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.opts.readTimeout,
		WriteTimeout: s.opts.writeTimeout,
		IdleTimeout:  s.opts.idleTimeout,
	}
	s.mu.Lock()
	s.server, s.listener = srv, ln
	s.mu.Unlock()

	s.opts.logger.Debugf("[HTTP] 服务启动 [addr:%s]", ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}
	return nil
}

// Stop 优雅关闭服务.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.opts.logger.Debug("[HTTP] 服务停止中")
	return srv.Shutdown(ctx)
}

// Name 返回组件名称.
func (s *HTTPServer) Name() string {
	return s.opts.name
}

// Addr 返回实际监听地址，未启动时返回配置地址.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.addr
}
