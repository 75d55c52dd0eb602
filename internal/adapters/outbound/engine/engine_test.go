package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdidvp/lintfix/internal/adapters/outbound/engine"
	"github.com/abdidvp/lintfix/internal/domain"
)

const successBody = `{"status":"success","result":{"files":[{"path":"/p/a.groovy","violations":[{"rule":"SpaceAfterIf","priority":3,"line":1,"message":"m"}]}]},"fileList":["/p/a.groovy"],"stdout":"ok"}`

// fakeEngine is an HTTP engine whose /request behaviour is scripted per
// test.
type fakeEngine struct {
	alive    atomic.Bool
	requests atomic.Int32
	kills    atomic.Int32
	onReq    func(w http.ResponseWriter, r *http.Request, req domain.EngineRequest, n int)
	onKill   func(w http.ResponseWriter, r *http.Request)
}

func newFakeEngine() *fakeEngine {
	f := &fakeEngine{}
	f.alive.Store(true)
	f.onReq = func(w http.ResponseWriter, _ *http.Request, _ domain.EngineRequest, _ int) {
		io.WriteString(w, successBody)
	}
	return f
}

func (f *fakeEngine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		if !f.alive.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "pong")
	case "/request":
		n := int(f.requests.Add(1))
		var req domain.EngineRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.onReq(w, r, req, n)
	case "/kill":
		f.kills.Add(1)
		if f.onKill != nil {
			f.onKill(w, r)
			return
		}
		f.alive.Store(false)
		io.WriteString(w, `{"status":"killed"}`)
	default:
		http.NotFound(w, r)
	}
}

// hangUp closes the connection without answering.
func hangUp(w http.ResponseWriter) {
	if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
		conn.Close()
	}
}

// freeAddr returns a local address nothing listens on.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

// serveOn starts h on addr.
func serveOn(t *testing.T, addr string, h http.Handler) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp", addr)
	require.NoError(t, err)
	srv := httptest.NewUnstartedServer(h)
	srv.Listener.Close()
	srv.Listener = ln
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}

type fakeProcess struct {
	killed atomic.Bool
	onKill func()
}

func (p *fakeProcess) Kill() error {
	p.killed.Store(true)
	if p.onKill != nil {
		p.onKill()
	}
	return nil
}

type fakeLauncher struct {
	launches atomic.Int32
	launch   func() (engine.Process, error)
}

func (l *fakeLauncher) Launch([]string) (engine.Process, error) {
	l.launches.Add(1)
	return l.launch()
}

func engineConfig(t *testing.T, url string) domain.EngineConfig {
	return domain.EngineConfig{
		URL:          url,
		Command:      []string{"engine", "--server"},
		StateDir:     t.TempDir(),
		StartTimeout: 2 * time.Second,
		KillTimeout:  2 * time.Second,
	}
}

func newService(t *testing.T, cfg domain.EngineConfig, l engine.Launcher) *engine.Service {
	return engine.NewService(cfg, engine.WithLauncher(l), engine.WithPollInterval(10*time.Millisecond))
}

func request() *domain.EngineRequest {
	return &domain.EngineRequest{BaseDir: "/p", Files: []string{"/p/a.groovy"}, Parse: true, RequestKey: "k1"}
}

func TestAnalyze_Success(t *testing.T) {
	fe := newFakeEngine()
	var got domain.EngineRequest
	fe.onReq = func(w http.ResponseWriter, _ *http.Request, req domain.EngineRequest, _ int) {
		got = req
		io.WriteString(w, successBody)
	}
	srv := httptest.NewServer(fe)
	defer srv.Close()

	svc := newService(t, engineConfig(t, srv.URL), &fakeLauncher{})
	resp, err := engine.NewClient(svc, nil).Analyze(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, domain.ResponseSuccess, resp.Status)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "SpaceAfterIf", resp.Files[0].Violations[0].Rule)
	assert.Equal(t, 3, resp.Files[0].Violations[0].Priority)
	assert.Equal(t, []string{"/p/a.groovy"}, resp.FileList)
	assert.Equal(t, "ok", resp.Stdout)
	assert.Equal(t, engine.StateRunning, svc.Status())

	assert.Equal(t, "k1", got.RequestKey)
	assert.Equal(t, []string{"/p/a.groovy"}, got.Files)
	assert.True(t, got.Parse)
}

func TestAnalyze_RefusedStartsServiceExactlyOnce(t *testing.T) {
	addr := freeAddr(t)
	launcher := &fakeLauncher{}
	launcher.launch = func() (engine.Process, error) {
		srv := serveOn(t, addr, newFakeEngine())
		return &fakeProcess{onKill: srv.Close}, nil
	}
	svc := newService(t, engineConfig(t, "http://"+addr), launcher)
	client := engine.NewClient(svc, nil)

	resp, err := client.Analyze(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseSuccess, resp.Status)
	assert.Equal(t, int32(1), launcher.launches.Load())
	assert.Equal(t, engine.StateRunning, svc.Status())

	_, err = client.Analyze(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, int32(1), launcher.launches.Load(), "a running service is reused")
}

func TestAnalyze_ConcurrentRefusedCallersShareOneStart(t *testing.T) {
	addr := freeAddr(t)
	launcher := &fakeLauncher{}
	launcher.launch = func() (engine.Process, error) {
		serveOn(t, addr, newFakeEngine())
		return &fakeProcess{}, nil
	}
	svc := newService(t, engineConfig(t, "http://"+addr), launcher)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Each client shares the one Service handle.
			_, errs[i] = engine.NewClient(svc, nil).Analyze(context.Background(), request())
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), launcher.launches.Load())
}

func TestAnalyze_ResetIsResentAfterServiceCheck(t *testing.T) {
	fe := newFakeEngine()
	fe.onReq = func(w http.ResponseWriter, _ *http.Request, _ domain.EngineRequest, n int) {
		if n == 1 {
			hangUp(w)
			return
		}
		io.WriteString(w, successBody)
	}
	srv := httptest.NewServer(fe)
	defer srv.Close()

	launcher := &fakeLauncher{}
	resp, err := engine.NewClient(newService(t, engineConfig(t, srv.URL), launcher), nil).Analyze(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseSuccess, resp.Status)
	assert.Equal(t, int32(2), fe.requests.Load())
	assert.Equal(t, int32(0), launcher.launches.Load(), "the service still answered its ping")
}

func TestAnalyze_ResetWithoutRecoveryResolvesAsCancelled(t *testing.T) {
	fe := newFakeEngine()
	fe.onReq = func(w http.ResponseWriter, _ *http.Request, _ domain.EngineRequest, _ int) {
		fe.alive.Store(false)
		hangUp(w)
	}
	srv := httptest.NewServer(fe)
	defer srv.Close()

	launcher := &fakeLauncher{launch: func() (engine.Process, error) { return nil, errors.New("no java") }}
	svc := newService(t, engineConfig(t, srv.URL), launcher)

	resp, err := engine.NewClient(svc, nil).Analyze(context.Background(), request())
	require.NoError(t, err)
	assert.True(t, resp.Cancelled())
	assert.Equal(t, engine.StateError, svc.Status())
}

func TestAnalyze_DuplicateRequestKeyCancelsFirst(t *testing.T) {
	var mu sync.Mutex
	waiting := map[string]chan struct{}{}
	registered := make(chan struct{})

	fe := newFakeEngine()
	fe.onReq = func(w http.ResponseWriter, _ *http.Request, req domain.EngineRequest, _ int) {
		mu.Lock()
		if prev, ok := waiting[req.RequestKey]; ok {
			delete(waiting, req.RequestKey)
			close(prev)
			mu.Unlock()
			io.WriteString(w, successBody)
			return
		}
		mine := make(chan struct{})
		waiting[req.RequestKey] = mine
		mu.Unlock()
		close(registered)

		select {
		case <-mine:
			io.WriteString(w, `{"status":"cancelledByDuplicateRequest"}`)
		case <-time.After(5 * time.Second):
			io.WriteString(w, successBody)
		}
	}
	srv := httptest.NewServer(fe)
	defer srv.Close()

	client := engine.NewClient(newService(t, engineConfig(t, srv.URL), &fakeLauncher{}), nil)

	type result struct {
		resp *domain.EngineResponse
		err  error
	}
	first := make(chan result, 1)
	go func() {
		resp, err := client.Analyze(context.Background(), request())
		first <- result{resp, err}
	}()
	<-registered

	second, err := client.Analyze(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseSuccess, second.Status)

	r := <-first
	require.NoError(t, r.err, "supersession is not an error")
	assert.True(t, r.resp.Cancelled())
}

func TestAnalyze_EngineErrorIsSurfacedVerbatim(t *testing.T) {
	fe := newFakeEngine()
	fe.onReq = func(w http.ResponseWriter, _ *http.Request, _ domain.EngineRequest, _ int) {
		io.WriteString(w, `{"status":"error","errorDetail":{"exceptionType":"CompilationFailedException","message":"bad ruleset","detail":"stack"},"fileList":["/p/a.groovy"]}`)
	}
	srv := httptest.NewServer(fe)
	defer srv.Close()

	resp, err := engine.NewClient(newService(t, engineConfig(t, srv.URL), &fakeLauncher{}), nil).Analyze(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseEngineFailure, resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CompilationFailedException", resp.Error.ExceptionType)
	assert.Equal(t, "bad ruleset", resp.Error.Message)
	assert.Equal(t, int32(1), fe.requests.Load(), "business errors are never retried")
}

func TestAnalyze_MalformedResponse(t *testing.T) {
	for name, body := range map[string]string{
		"not json":       "<html>oops</html>",
		"unknown status": `{"status":"sleeping"}`,
	} {
		t.Run(name, func(t *testing.T) {
			fe := newFakeEngine()
			fe.onReq = func(w http.ResponseWriter, _ *http.Request, _ domain.EngineRequest, _ int) {
				w.WriteHeader(http.StatusBadGateway)
				io.WriteString(w, body)
			}
			srv := httptest.NewServer(fe)
			defer srv.Close()

			_, err := engine.NewClient(newService(t, engineConfig(t, srv.URL), &fakeLauncher{}), nil).Analyze(context.Background(), request())
			var ee *domain.EngineError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, engine.MalformedResponse, ee.ExceptionType)
			assert.Contains(t, ee.Message, "HTTP 502")
		})
	}
}

func TestAnalyze_OtherTransportErrorIsFatal(t *testing.T) {
	launcher := &fakeLauncher{}
	svc := newService(t, engineConfig(t, "ftp://127.0.0.1:1"), launcher)
	_, err := engine.NewClient(svc, nil).Analyze(context.Background(), request())

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.TransportOther, te.Kind)
	assert.Equal(t, domain.StatusFatal, domain.ExitCode(err))
	assert.Equal(t, int32(0), launcher.launches.Load())
}

type fakeRunner struct {
	calls [][]string
	run   func(n int, command []string) ([]byte, []byte, error)
}

func (r *fakeRunner) Run(_ context.Context, command []string) ([]byte, []byte, error) {
	r.calls = append(r.calls, command)
	return r.run(len(r.calls), command)
}

func TestAnalyze_FallsBackToOneShot(t *testing.T) {
	addr := freeAddr(t)
	launcher := &fakeLauncher{launch: func() (engine.Process, error) { return nil, errors.New("cannot start") }}
	cfg := engineConfig(t, "http://"+addr)
	cfg.OneShotCommand = []string{"java", "-jar", "engine.jar"}

	runner := &fakeRunner{run: func(int, []string) ([]byte, []byte, error) { return []byte(successBody), nil, nil }}
	svc := newService(t, cfg, launcher)
	client := engine.NewClient(svc, engine.NewOneShot(cfg, runner, nil))

	resp, err := client.Analyze(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseSuccess, resp.Status)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"java", "-jar", "engine.jar", "-basedir=/p", "-files=/p/a.groovy", "-parse", "-report=json:stdout"}, runner.calls[0])
	assert.Equal(t, engine.StateError, svc.Status())
}

func TestAnalyze_UnreachableWithoutFallbackFails(t *testing.T) {
	addr := freeAddr(t)
	launcher := &fakeLauncher{launch: func() (engine.Process, error) { return nil, errors.New("cannot start") }}
	_, err := engine.NewClient(newService(t, engineConfig(t, "http://"+addr), launcher), nil).Analyze(context.Background(), request())

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.TransportRefused, te.Kind)
	assert.Contains(t, domain.Describe(err), "could not be run")
}

func TestOneShot_SecondaryEntryPoint(t *testing.T) {
	cfg := domain.EngineConfig{
		OneShotCommand:   []string{"java", "-jar", "engine.jar"},
		SecondaryCommand: []string{"java", "-cp", "engine.jar", "org.codenarc.CodeNarc"},
	}
	runner := &fakeRunner{run: func(n int, _ []string) ([]byte, []byte, error) {
		if n == 1 {
			return nil, []byte("Error: Could not find or load main class Main"), errors.New("exit status 1")
		}
		return []byte(successBody), nil, nil
	}}

	resp, err := engine.NewOneShot(cfg, runner, nil).Run(context.Background(), &domain.EngineRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseSuccess, resp.Status)
	require.Len(t, runner.calls, 2)
	assert.Equal(t, "org.codenarc.CodeNarc", runner.calls[1][3])
}

func TestOneShot_OtherFailureIsFatal(t *testing.T) {
	cfg := domain.EngineConfig{
		OneShotCommand:   []string{"java", "-jar", "engine.jar"},
		SecondaryCommand: []string{"java", "-cp", "engine.jar", "Main"},
	}
	runner := &fakeRunner{run: func(int, []string) ([]byte, []byte, error) {
		return nil, []byte("OutOfMemoryError"), errors.New("exit status 3")
	}}

	_, err := engine.NewOneShot(cfg, runner, nil).Run(context.Background(), &domain.EngineRequest{})
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Error(), "OutOfMemoryError")
	assert.Len(t, runner.calls, 1, "no secondary retry without the missing-entry marker")
}

func TestStart_TimeoutKillsProcess(t *testing.T) {
	addr := freeAddr(t)
	proc := &fakeProcess{}
	launcher := &fakeLauncher{launch: func() (engine.Process, error) { return proc, nil }}
	cfg := engineConfig(t, "http://"+addr)
	cfg.StartTimeout = 100 * time.Millisecond
	svc := newService(t, cfg, launcher)

	err := svc.Start(context.Background())
	require.Error(t, err)
	assert.True(t, proc.killed.Load())
	assert.Equal(t, engine.StateError, svc.Status())

	launcher.launch = func() (engine.Process, error) {
		serveOn(t, addr, newFakeEngine())
		return &fakeProcess{}, nil
	}
	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, engine.StateRunning, svc.Status())
}

func TestState_ErrorStaysUntilStartSucceeds(t *testing.T) {
	addr := freeAddr(t)
	launcher := &fakeLauncher{launch: func() (engine.Process, error) { return nil, errors.New("cannot start") }}
	svc := newService(t, engineConfig(t, "http://"+addr), launcher)
	require.Error(t, svc.Start(context.Background()))
	require.Equal(t, engine.StateError, svc.Status())

	serveOn(t, addr, newFakeEngine())
	resp, err := engine.NewClient(svc, nil).Analyze(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseSuccess, resp.Status)
	assert.Equal(t, engine.StateError, svc.Status(), "a plain round trip does not clear the error")

	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, engine.StateRunning, svc.Status())
}

func TestKill_OwnedProcess(t *testing.T) {
	addr := freeAddr(t)
	proc := &fakeProcess{}
	launcher := &fakeLauncher{launch: func() (engine.Process, error) {
		srv := serveOn(t, addr, newFakeEngine())
		proc.onKill = srv.Close
		return proc, nil
	}}
	svc := newService(t, engineConfig(t, "http://"+addr), launcher)
	require.NoError(t, svc.Start(context.Background()))

	require.NoError(t, svc.Kill(context.Background()))
	assert.True(t, proc.killed.Load())
	assert.Equal(t, engine.StateUnknown, svc.Status())
	assert.False(t, svc.Ping(context.Background()))
}

func TestKill_Remote(t *testing.T) {
	fe := newFakeEngine()
	srv := httptest.NewServer(fe)
	defer srv.Close()

	svc := newService(t, engineConfig(t, srv.URL), &fakeLauncher{})
	require.NoError(t, svc.Kill(context.Background()))
	assert.Equal(t, int32(1), fe.kills.Load())
	assert.False(t, svc.Ping(context.Background()))
}

func TestKill_RemoteHangUpCountsAsKilled(t *testing.T) {
	fe := newFakeEngine()
	fe.onKill = func(w http.ResponseWriter, _ *http.Request) {
		fe.alive.Store(false)
		hangUp(w)
	}
	srv := httptest.NewServer(fe)
	defer srv.Close()

	require.NoError(t, newService(t, engineConfig(t, srv.URL), &fakeLauncher{}).Kill(context.Background()))
}

func TestKill_RefusedMeansNotRunning(t *testing.T) {
	svc := newService(t, engineConfig(t, "http://"+freeAddr(t)), &fakeLauncher{})
	err := svc.Kill(context.Background())
	assert.ErrorIs(t, err, engine.ErrNotRunning)
}

func TestKill_StillAnswering(t *testing.T) {
	fe := newFakeEngine()
	fe.onKill = func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"status":"killed"}`)
	}
	srv := httptest.NewServer(fe)
	defer srv.Close()

	cfg := engineConfig(t, srv.URL)
	cfg.KillTimeout = 100 * time.Millisecond
	err := newService(t, cfg, &fakeLauncher{}).Kill(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still answering")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKill_CallerDeadlineIsNotSuccess(t *testing.T) {
	fe := newFakeEngine()
	fe.onKill = func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"status":"killed"}`)
	}
	srv := httptest.NewServer(fe)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	err := newService(t, engineConfig(t, srv.URL), &fakeLauncher{}).Kill(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestState_String(t *testing.T) {
	for s, want := range map[engine.State]string{
		engine.StateUnknown: "unknown",
		engine.StateRunning: "running",
		engine.StateError:   "error",
	} {
		assert.Equal(t, want, s.String(), fmt.Sprint(int(s)))
	}
}
