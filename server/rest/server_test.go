// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package rest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	a2a "github.com/go-a2a/a2a-server"
	"github.com/go-a2a/a2a-server/internal/a2atest"
	"github.com/go-a2a/a2a-server/internal/metrics"
	"github.com/go-a2a/a2a-server/server"
	"github.com/go-a2a/a2a-server/server/handler"
	"github.com/go-a2a/a2a-server/server/task"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	srv     *Server
	http    *httptest.Server
	handler *handler.DefaultRequestHandler
	exec    *a2atest.Executor
}

func newFixture(t *testing.T, exec *a2atest.Executor, opts ...handler.DefaultRequestHandlerOption) *fixture {
	t.Helper()

	opts = append([]handler.DefaultRequestHandlerOption{
		handler.WithSyncTimeout(5 * time.Second),
		handler.WithPollTimeout(20 * time.Millisecond),
		handler.WithLogger(discard),
	}, opts...)
	h := handler.NewDefaultRequestHandler(exec, task.NewInMemoryTaskStore(), opts...)

	rec := metrics.NewPrometheusRecorder()
	srv, err := NewServer(Config{
		Handler:        h,
		Agent:          a2atest.Agent{},
		Interfaces:     []a2a.AgentInterface{{URL: "http://localhost:7003", Transport: a2a.TransportJSONRPC}},
		Metrics:        rec,
		MetricsHandler: rec.Handler(),
	}, server.WithPort(0), server.WithLogger(discard))
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.Close(ctx)
	})
	return &fixture{srv: srv, http: ts, handler: h, exec: exec}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), method, f.http.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func sendBody(taskID, text string) string {
	msg := a2a.NewUserTextMessage(text)
	msg.TaskID = taskID
	data, err := json.Marshal(a2a.MessageSendParams{Message: msg})
	if err != nil {
		panic(err)
	}
	return string(data)
}

func decodeTask(t *testing.T, data []byte) *a2a.Task {
	t.Helper()

	var got a2a.Task
	require.NoError(t, json.Unmarshal(data, &got), string(data))
	return &got
}

func decodeError(t *testing.T, data []byte) *a2a.JSONRPCError {
	t.Helper()

	var body errorBody
	require.NoError(t, json.Unmarshal(data, &body), string(data))
	require.NotNil(t, body.Error)
	return body.Error
}

func historyTexts(t *a2a.Task) []string {
	texts := make([]string, len(t.History))
	for i := range t.History {
		texts[i] = t.History[i].Text()
	}
	return texts
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	_, err := NewServer(Config{Agent: a2atest.Agent{}})
	require.Error(t, err)

	h := handler.NewDefaultRequestHandler(&a2atest.Executor{}, task.NewInMemoryTaskStore())
	_, err = NewServer(Config{Handler: h})
	require.Error(t, err)

	srv, err := NewServer(Config{Handler: h, Agent: a2atest.Agent{}})
	require.NoError(t, err)
	assert.Equal(t, server.ProtocolREST, srv.Protocol())
	assert.Equal(t, 8080, srv.Port())
}

func TestMessageSend(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &a2atest.Executor{Script: a2atest.MessageArtifactCompleted})

	resp, data := f.do(t, http.MethodPost, a2a.RESTPathMessageSend, sendBody("", "input"))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	got := decodeTask(t, data)
	assert.Equal(t, a2a.KindTask, got.Kind)
	assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)
	if diff := cmp.Diff([]string{"input", "a"}, historyTexts(got)); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, got.Artifacts, 1)
	assert.Equal(t, "x", got.Artifacts[0].ArtifactID)
}

func TestMessageSend_BudgetExpired(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	f := newFixture(t, &a2atest.Executor{Script: a2atest.MessageArtifactCompleted, Block: block},
		handler.WithSyncTimeout(50*time.Millisecond))

	resp, data := f.do(t, http.MethodPost, a2a.RESTPathMessageSend, sendBody("", "input"))
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(data))
	got := decodeTask(t, data)
	assert.False(t, got.Status.State.IsTerminal())

	close(block)
	require.Eventually(t, func() bool {
		tk, err := f.handler.OnGetTask(context.Background(), &a2a.TaskQueryParams{ID: got.ID})
		return err == nil && tk.Status.State == a2a.TaskStateCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestMessageSend_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &a2atest.Executor{Script: a2atest.MessageArtifactCompleted})

	tests := map[string]struct {
		body   string
		status int
		code   int
	}{
		"malformed json": {
			body:   `{"message":`,
			status: http.StatusBadRequest,
			code:   a2a.ErrorCodeJSONParse,
		},
		"missing message": {
			body:   `{}`,
			status: http.StatusBadRequest,
			code:   a2a.ErrorCodeInvalidParams,
		},
		"no parts": {
			body:   `{"message":{"role":"user","parts":[],"messageId":"m1"}}`,
			status: http.StatusBadRequest,
			code:   a2a.ErrorCodeInvalidParams,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			resp, data := f.do(t, http.MethodPost, a2a.RESTPathMessageSend, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decodeError(t, data).Code)
		})
	}
}

func TestMessageStream(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &a2atest.Executor{Script: a2atest.MessageArtifactCompleted})

	resp, data := f.do(t, http.MethodPost, a2a.RESTPathMessageStream, sendBody("", "input"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events, err := a2atest.ReadSSE(strings.NewReader(string(data)))
	require.NoError(t, err)

	var names []string
	for _, ev := range events {
		names = append(names, ev.Name)
	}
	want := []string{a2a.KindMessage, a2a.KindArtifactUpdate, a2a.KindStatusUpdate}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("event names mismatch (-want +got):\n%s", diff)
	}

	last, err := a2a.UnmarshalEvent([]byte(events[2].Data))
	require.NoError(t, err)
	assert.True(t, a2a.IsFinalEvent(last))
}

func TestGetTask(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &a2atest.Executor{Script: a2atest.MessageArtifactCompleted})

	_, data := f.do(t, http.MethodPost, a2a.RESTPathMessageSend, sendBody("", "input"))
	sent := decodeTask(t, data)

	t.Run("Found", func(t *testing.T) {
		t.Parallel()

		resp, data := f.do(t, http.MethodGet, a2a.RESTPathTasks+"/"+sent.ID, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, sent.ID, decodeTask(t, data).ID)
	})

	t.Run("HistoryLength", func(t *testing.T) {
		t.Parallel()

		resp, data := f.do(t, http.MethodGet, a2a.RESTPathTasks+"/"+sent.ID+"?historyLength=1", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		if diff := cmp.Diff([]string{"a"}, historyTexts(decodeTask(t, data))); diff != "" {
			t.Errorf("history mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("BadHistoryLength", func(t *testing.T) {
		t.Parallel()

		resp, data := f.do(t, http.MethodGet, a2a.RESTPathTasks+"/"+sent.ID+"?historyLength=two", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, a2a.ErrorCodeInvalidParams, decodeError(t, data).Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		t.Parallel()

		resp, data := f.do(t, http.MethodGet, a2a.RESTPathTasks+"/missing", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, a2a.ErrorCodeTaskNotFound, decodeError(t, data).Code)
	})
}

func TestCancelTask(t *testing.T) {
	t.Parallel()

	t.Run("Terminal", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, &a2atest.Executor{Script: a2atest.MessageArtifactCompleted})
		_, data := f.do(t, http.MethodPost, a2a.RESTPathMessageSend, sendBody("", "input"))
		sent := decodeTask(t, data)

		resp, data := f.do(t, http.MethodPost, a2a.RESTPathTasks+"/"+sent.ID+":cancel", "")
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, a2a.ErrorCodeTaskNotCancelable, decodeError(t, data).Code)

		_, data = f.do(t, http.MethodGet, a2a.RESTPathTasks+"/"+sent.ID, "")
		assert.Equal(t, a2a.TaskStateCompleted, decodeTask(t, data).Status.State)
	})

	t.Run("Running", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, &a2atest.Executor{Script: a2atest.MessageArtifactCompleted, Block: make(chan struct{})},
			handler.WithSyncTimeout(20*time.Millisecond))
		resp, data := f.do(t, http.MethodPost, a2a.RESTPathMessageSend, sendBody("", "input"))
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		sent := decodeTask(t, data)

		resp, data = f.do(t, http.MethodPost, a2a.RESTPathTasks+"/"+sent.ID+":cancel", "")
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		assert.Equal(t, a2a.TaskStateCanceled, decodeTask(t, data).Status.State)
		assert.Equal(t, 1, f.exec.Cancels())
	})

	t.Run("UnknownAction", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, &a2atest.Executor{})
		resp, data := f.do(t, http.MethodPost, a2a.RESTPathTasks+"/abc:pause", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, a2a.ErrorCodeMethodNotFound, decodeError(t, data).Code)
	})
}

func TestSubscribe(t *testing.T) {
	t.Parallel()

	t.Run("Finalized", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, &a2atest.Executor{Script: a2atest.MessageArtifactCompleted})
		_, data := f.do(t, http.MethodPost, a2a.RESTPathMessageSend, sendBody("", "input"))
		sent := decodeTask(t, data)

		resp, data := f.do(t, http.MethodGet, a2a.RESTPathTasks+"/"+sent.ID+":subscribe", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		events, err := a2atest.ReadSSE(strings.NewReader(string(data)))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, a2a.KindTask, events[0].Name)
		got := decodeTask(t, []byte(events[0].Data))
		assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)
	})

	t.Run("Running", func(t *testing.T) {
		t.Parallel()

		block := make(chan struct{})
		f := newFixture(t, &a2atest.Executor{Script: a2atest.MessageArtifactCompleted, Block: block},
			handler.WithSyncTimeout(20*time.Millisecond))
		_, data := f.do(t, http.MethodPost, a2a.RESTPathMessageSend, sendBody("", "input"))
		sent := decodeTask(t, data)

		type result struct {
			events []a2atest.SSEEvent
			err    error
		}
		done := make(chan result, 1)
		go func() {
			resp, err := f.http.Client().Get(f.http.URL + a2a.RESTPathTasks + "/" + sent.ID + ":subscribe")
			if err != nil {
				done <- result{err: err}
				return
			}
			defer resp.Body.Close()
			events, err := a2atest.ReadSSE(resp.Body)
			done <- result{events: events, err: err}
		}()

		time.Sleep(200 * time.Millisecond)
		close(block)

		select {
		case res := <-done:
			require.NoError(t, res.err)
			require.NotEmpty(t, res.events)
			assert.Equal(t, a2a.KindTask, res.events[0].Name)
			assert.Equal(t, sent.ID, decodeTask(t, []byte(res.events[0].Data)).ID)
			assert.Equal(t, a2a.KindStatusUpdate, res.events[len(res.events)-1].Name)
		case <-time.After(5 * time.Second):
			t.Fatal("subscription did not end")
		}
	})

	t.Run("MidFlight", func(t *testing.T) {
		t.Parallel()

		block := make(chan struct{})
		f := newFixture(t, &a2atest.Executor{Before: a2atest.WorkingMessage, Script: a2atest.ArtifactCompleted, Block: block},
			handler.WithSyncTimeout(20*time.Millisecond))
		_, data := f.do(t, http.MethodPost, a2a.RESTPathMessageSend, sendBody("", "input"))
		sent := decodeTask(t, data)
		for deadline := time.Now().Add(5 * time.Second); ; time.Sleep(10 * time.Millisecond) {
			_, data := f.do(t, http.MethodGet, a2a.RESTPathTasks+"/"+sent.ID, "")
			if len(decodeTask(t, data).History) == 2 {
				break
			}
			require.False(t, time.Now().After(deadline), "message a was not stored")
		}

		resp, err := f.http.Client().Get(f.http.URL + a2a.RESTPathTasks + "/" + sent.ID + ":subscribe")
		require.NoError(t, err)
		defer resp.Body.Close()
		close(block)
		events, err := a2atest.ReadSSE(resp.Body)
		require.NoError(t, err)

		names := make([]string, len(events))
		for i := range events {
			names[i] = events[i].Name
		}
		assert.Equal(t, []string{a2a.KindTask, a2a.KindArtifactUpdate, a2a.KindStatusUpdate}, names)
		snapshot := decodeTask(t, []byte(events[0].Data))
		assert.Equal(t, a2a.TaskStateWorking, snapshot.Status.State)
		assert.Equal(t, []string{"input", "a"}, historyTexts(snapshot))
	})
}

func TestListTasks(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &a2atest.Executor{Script: a2atest.MessageArtifactCompleted})
	_, data := f.do(t, http.MethodPost, a2a.RESTPathMessageSend, sendBody("", "one"))
	first := decodeTask(t, data)
	f.do(t, http.MethodPost, a2a.RESTPathMessageSend, sendBody("", "two"))

	var all struct {
		Tasks []*a2a.Task `json:"tasks"`
	}
	resp, data := f.do(t, http.MethodGet, a2a.RESTPathTasks, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &all))
	assert.Len(t, all.Tasks, 2)

	var byContext struct {
		Tasks []*a2a.Task `json:"tasks"`
	}
	_, data = f.do(t, http.MethodGet, a2a.RESTPathTasks+"?contextId="+first.ContextID, "")
	require.NoError(t, json.Unmarshal(data, &byContext))
	require.Len(t, byContext.Tasks, 1)
	assert.Equal(t, first.ID, byContext.Tasks[0].ID)
}

func TestAgentCard(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &a2atest.Executor{})

	resp, data := f.do(t, http.MethodGet, a2a.AgentCardWellKnownPath, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var card a2a.AgentCard
	require.NoError(t, json.Unmarshal(data, &card))
	assert.Equal(t, "Test Agent (REST)", card.Name)
	assert.Equal(t, a2a.TransportHTTPJSON, card.PreferredTransport)
	require.Len(t, card.AdditionalInterfaces, 1)
	assert.Equal(t, a2a.TransportJSONRPC, card.AdditionalInterfaces[0].Transport)
}

func TestMetricsAndNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &a2atest.Executor{Script: a2atest.MessageArtifactCompleted})
	f.do(t, http.MethodPost, a2a.RESTPathMessageSend, sendBody("", "input"))

	resp, data := f.do(t, http.MethodDelete, "/v1/unknown", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, a2a.ErrorCodeMethodNotFound, decodeError(t, data).Code)

	resp, data = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `a2a_requests_total{code="0",method="message/send",protocol="REST"} 1`)
}

func TestStatusCode(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err  error
		want int
	}{
		"parse":          {err: &a2a.JSONParseError{}, want: http.StatusBadRequest},
		"invalid":        {err: &a2a.InvalidRequestError{}, want: http.StatusBadRequest},
		"params":         {err: &a2a.InvalidParamsError{}, want: http.StatusBadRequest},
		"not found":      {err: &a2a.TaskNotFoundError{TaskID: "t"}, want: http.StatusNotFound},
		"method":         {err: &a2a.MethodNotFoundError{Method: "m"}, want: http.StatusNotFound},
		"not cancelable": {err: &a2a.TaskNotCancelableError{TaskID: "t"}, want: http.StatusConflict},
		"internal":       {err: &a2a.InternalError{}, want: http.StatusInternalServerError},
		"plain":          {err: context.Canceled, want: http.StatusInternalServerError},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if got := StatusCode(tt.err); got != tt.want {
				t.Errorf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
