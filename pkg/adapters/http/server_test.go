package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/aliquot/internal/runtime"
	aliquothttp "github.com/aretw0/aliquot/pkg/adapters/http"
	"github.com/aretw0/aliquot/pkg/adapters/simulator"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/observability"
	"github.com/aretw0/aliquot/pkg/session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T, opts ...aliquothttp.Option) (http.Handler, *[]*simulator.Simulator) {
	t.Helper()
	sims := &[]*simulator.Simulator{}
	factory := func(_ context.Context, hooks domain.LifecycleHooks) (*runtime.Session, error) {
		sim, err := simulator.New(simulator.WithInstrument(domain.MountLeft, "p300_single_v1"))
		if err != nil {
			return nil, err
		}
		*sims = append(*sims, sim)
		return runtime.NewSession(sim, runtime.WithModuleController(sim), runtime.WithLifecycleHooks(hooks))
	}
	return aliquothttp.NewHandler(session.NewManager(), factory, opts...), sims
}

var deck = &domain.Protocol{
	Labware: []domain.LabwareSpec{
		{ID: "tips", LoadName: "opentrons_96_tiprack_300ul", Slot: "1"},
		{ID: "plate", LoadName: "corning_96_wellplate_360ul_flat", Slot: "2"},
	},
	Instruments: []domain.InstrumentSpec{{Mount: "left", TipRacks: []string{"tips"}}},
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, h http.Handler) aliquothttp.SessionView {
	t.Helper()
	w := do(t, h, http.MethodPost, "/sessions", aliquothttp.CreateSessionRequest{Protocol: deck})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var v aliquothttp.SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestServer_SessionLifecycle(t *testing.T) {
	h, _ := newHandler(t)

	v := createSession(t, h)
	_, err := uuid.Parse(v.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tips", "plate", "trash"}, v.Labware)
	require.Len(t, v.Instruments, 1)
	assert.Equal(t, "p300_single_v1", v.Instruments[0].Name)

	w := do(t, h, http.MethodGet, "/sessions", nil)
	assert.JSONEq(t, `{"sessions":["`+v.ID+`"]}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/sessions/"+v.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodDelete, "/sessions/"+v.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/sessions/"+v.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "session not found")
}

func TestServer_EmptySession(t *testing.T) {
	h, _ := newHandler(t)

	w := do(t, h, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var v aliquothttp.SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, []string{"trash"}, v.Labware)
	assert.Empty(t, v.Instruments)
}

func TestServer_RunCommands(t *testing.T) {
	h, sims := newHandler(t)
	v := createSession(t, h)

	body := aliquothttp.CommandsRequest{Commands: []domain.CommandSpec{
		{Command: "pick_up_tip"},
		{Command: "aspirate", Params: map[string]any{"volume": 50, "well": "plate/A1"}},
		{Command: "dispense", Params: map[string]any{"volume": 50, "well": "plate/A2"}},
	}}
	w := do(t, h, http.MethodPost, "/sessions/"+v.ID+"/commands", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp aliquothttp.CommandsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Error)
	assert.Equal(t, 3, resp.Report.Completed)
	assert.Equal(t, 1, (*sims)[0].CallCount("aspirate"))

	w = do(t, h, http.MethodGet, "/sessions/"+v.ID, nil)
	var after aliquothttp.SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	assert.True(t, after.Instruments[0].HasTip)
	assert.Equal(t, "tips/A1", after.Instruments[0].AttachedTip)
}

func TestServer_RunCommandsErrors(t *testing.T) {
	h, sims := newHandler(t)
	v := createSession(t, h)

	tests := []struct {
		name     string
		commands []domain.CommandSpec
		status   int
		message  string
	}{
		{
			name:     "unknown command",
			commands: []domain.CommandSpec{{Command: "teleport"}},
			status:   http.StatusBadRequest,
			message:  "step 1 (teleport)",
		},
		{
			name:     "no tip",
			commands: []domain.CommandSpec{{Command: "aspirate", Params: map[string]any{"volume": 10, "well": "plate/A1"}}},
			status:   http.StatusConflict,
			message:  "no tip attached",
		},
		{
			name:     "missing name",
			commands: []domain.CommandSpec{{Command: " "}},
			status:   http.StatusBadRequest,
			message:  "has no name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/sessions/"+v.ID+"/commands", aliquothttp.CommandsRequest{Commands: tt.commands})
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.message)
		})
	}

	t.Run("hardware fault", func(t *testing.T) {
		(*sims)[0].FailOn("home", errors.New("limit switch"))
		w := do(t, h, http.MethodPost, "/sessions/"+v.ID+"/home", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/sessions/nope/commands", aliquothttp.CommandsRequest{})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/sessions/"+v.ID+"/commands", strings.NewReader("{"))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServer_Home(t *testing.T) {
	h, sims := newHandler(t)
	v := createSession(t, h)

	w := do(t, h, http.MethodPost, "/sessions/"+v.ID+"/home", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, (*sims)[0].CallCount("home"))
}

func TestServer_InfoAndMetrics(t *testing.T) {
	m := observability.NewMetrics()
	h, _ := newHandler(t, aliquothttp.WithMetrics(m.Handler()))

	w := do(t, h, http.MethodGet, "/health", nil)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/info", nil)
	assert.Contains(t, w.Body.String(), `"app":"aliquot-http"`)

	w = do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_NoMetricsRoute(t *testing.T) {
	h, _ := newHandler(t)
	w := do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_SubscribeEvents(t *testing.T) {
	h, _ := newHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	v := createSession(t, h)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/"+v.ID+"/events?phase=after", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)

	home, err := http.Post(srv.URL+"/sessions/"+v.ID+"/home", "application/json", nil)
	require.NoError(t, err)
	home.Body.Close()
	require.Equal(t, http.StatusNoContent, home.StatusCode)

	var event domain.CommandEvent
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: {"); ok {
			require.NoError(t, json.Unmarshal([]byte("{"+data), &event))
			break
		}
	}
	assert.Equal(t, "home", event.Command)
	assert.Equal(t, domain.PhaseAfter, event.Phase)
}

func TestStreamManager_Close(t *testing.T) {
	sm := aliquothttp.NewStreamManager()
	ch, unsubscribe := sm.Subscribe("s1")

	sm.Hooks("s1").OnCommandBefore(context.Background(), &domain.CommandEvent{Command: "home", Phase: domain.PhaseBefore})
	assert.Contains(t, <-ch, `"command":"home"`)

	sm.Close("s1")
	_, open := <-ch
	assert.False(t, open)
	unsubscribe()
}
