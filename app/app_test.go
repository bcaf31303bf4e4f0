package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// recorder 按顺序记录生命周期事件.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) hook(event string) Hook {
	return func(context.Context) error {
		r.add(event)
		return nil
	}
}

// fakeComponent 阻塞到 ctx 取消的组件.
type fakeComponent struct {
	name     string
	rec      *recorder
	startErr error
	started  chan struct{}
}

func newFakeComponent(name string, rec *recorder) *fakeComponent {
	return &fakeComponent{name: name, rec: rec, started: make(chan struct{})}
}

func (c *fakeComponent) Name() string { return c.name }

func (c *fakeComponent) Start(ctx context.Context) error {
	c.rec.add("start:" + c.name)
	close(c.started)
	if c.startErr != nil {
		return c.startErr
	}
	<-ctx.Done()
	return nil
}

func (c *fakeComponent) Stop(context.Context) error {
	c.rec.add("stop:" + c.name)
	return nil
}

// fakeRunner 记录调用的引擎.
type fakeRunner struct {
	started, stopped bool
}

func (r *fakeRunner) Start() error {
	r.started = true
	return nil
}

func (r *fakeRunner) Shutdown(context.Context) error {
	r.stopped = true
	return nil
}

type AppTestSuite struct {
	suite.Suite
	rec *recorder
}

func TestAppSuite(t *testing.T) {
	suite.Run(t, new(AppTestSuite))
}

func (s *AppTestSuite) SetupTest() {
	s.rec = &recorder{}
}

func (s *AppTestSuite) cleanup(event string) CleanupFunc {
	return func(context.Context) error {
		s.rec.add(event)
		return nil
	}
}

func (s *AppTestSuite) runAsync(a *Application) <-chan error {
	done := make(chan error, 1)
	go func() { done <- a.Run() }()
	return done
}

func (s *AppTestSuite) wait(done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		s.FailNow("应用未在超时内退出")
		return nil
	}
}

func (s *AppTestSuite) TestDefaults() {
	a := New()
	s.Equal("scheduler", a.Name())
	s.Equal("1.0.0", a.Version())

	a = New(WithName("billing"), WithVersion("2.1.0"), WithLogger(nil))
	s.Equal("billing", a.Name())
	s.Equal("2.1.0", a.Version())
}

func (s *AppTestSuite) TestRun_生命周期顺序() {
	first := newFakeComponent("engine", s.rec)
	second := newFakeComponent("http", s.rec)

	afterStart := make(chan struct{})
	hooks := NewHooks().
		BeforeStart(s.rec.hook("before-start")).
		AfterStart(func(context.Context) error {
			s.rec.add("after-start")
			close(afterStart)
			return nil
		}).
		BeforeStop(s.rec.hook("before-stop")).
		AfterStop(s.rec.hook("after-stop")).
		Build()

	a := New(
		WithHooks(hooks),
		WithCleanup("logger", s.cleanup("cleanup:logger"), 10),
		WithCleanup("tracer", s.cleanup("cleanup:tracer"), 1),
	)
	a.Use(first, second)

	done := s.runAsync(a)
	<-first.started
	<-second.started
	<-afterStart
	a.Stop()
	s.Require().NoError(s.wait(done))

	events := s.rec.list()
	s.Equal("before-start", events[0])
	s.ElementsMatch([]string{"start:engine", "start:http", "after-start"}, events[1:4])
	s.Equal([]string{
		"before-stop",
		"stop:http",
		"stop:engine",
		"cleanup:tracer",
		"cleanup:logger",
		"after-stop",
	}, events[4:])
}

func (s *AppTestSuite) TestRun_启动前钩子失败() {
	c := newFakeComponent("engine", s.rec)
	hookErr := errors.New("注册失败")

	a := New(
		WithHooks(NewHooks().BeforeStart(func(context.Context) error { return hookErr }).Build()),
		WithCleanup("logger", s.cleanup("cleanup:logger"), 0),
	)
	a.Use(c)

	err := a.Run()
	s.ErrorIs(err, hookErr)
	s.Equal([]string{"cleanup:logger"}, s.rec.list())
}

func (s *AppTestSuite) TestRun_组件启动失败() {
	broken := newFakeComponent("http", s.rec)
	broken.startErr = errors.New("address in use")
	healthy := newFakeComponent("engine", s.rec)

	a := New().Use(healthy, broken)
	err := s.wait(s.runAsync(a))

	s.EqualError(err, "address in use")
	events := s.rec.list()
	s.Contains(events, "stop:engine")
	s.Contains(events, "stop:http")
}

func (s *AppTestSuite) TestRun_清理失败不影响后续() {
	c := newFakeComponent("engine", s.rec)
	a := New(
		WithCleanup("broken", func(context.Context) error { return errors.New("boom") }, 0),
		WithCleanup("logger", s.cleanup("cleanup:logger"), 1),
	).Use(c)

	done := s.runAsync(a)
	<-c.started
	a.Stop()
	s.Require().NoError(s.wait(done))
	s.Contains(s.rec.list(), "cleanup:logger")
}

func (s *AppTestSuite) TestRun_信号触发关闭() {
	c := newFakeComponent("engine", s.rec)
	a := New(WithSignals(syscall.SIGUSR1)).Use(c)

	done := s.runAsync(a)
	<-c.started
	s.Require().NoError(syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	s.Require().NoError(s.wait(done))
	s.Contains(s.rec.list(), "stop:engine")
}

func (s *AppTestSuite) TestRun_重复运行() {
	c := newFakeComponent("engine", s.rec)
	a := New().Use(c)

	done := s.runAsync(a)
	<-c.started
	s.ErrorIs(a.Run(), ErrRunning)

	a.Stop()
	s.Require().NoError(s.wait(done))
}

func TestEngineComponent(t *testing.T) {
	runner := &fakeRunner{}
	c := Engine("memory", runner)

	assert.Equal(t, "memory", c.Name())
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Stop(context.Background()))
	assert.True(t, runner.started)
	assert.True(t, runner.stopped)
}

func TestHTTPServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "scheduler_jobs_total 1")
	})
	srv := NewHTTPServer(mux, WithHTTPAddr("127.0.0.1:0"), WithHTTPName("metrics"))
	assert.Equal(t, "metrics", srv.Name())
	assert.Equal(t, "127.0.0.1:0", srv.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool {
		return srv.Addr() != "127.0.0.1:0"
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "scheduler_jobs_total 1", string(body))

	require.NoError(t, srv.Stop(context.Background()))
	cancel()
	require.NoError(t, <-done)
}

func TestHTTPServer_未启动停止(t *testing.T) {
	srv := NewHTTPServer(http.NewServeMux())
	assert.NoError(t, srv.Stop(context.Background()))
}

func TestHTTPServer_监听失败(t *testing.T) {
	srv := NewHTTPServer(http.NewServeMux(), WithHTTPAddr("256.0.0.1:bad"))
	assert.Error(t, srv.Start(context.Background()))
}
