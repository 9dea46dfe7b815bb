package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"insightbot/internal/domain"
	"insightbot/internal/infra"
	"insightbot/internal/report"
	"insightbot/internal/slack"
	"insightbot/internal/store"
)

var acme = domain.Tenant{ID: "uuid-acme", Name: "acme", Slug: "acme"}

type fakeStore struct {
	activeBinding func(context.Context, string) (*domain.Binding, error)
	binding       func(context.Context, string) (*domain.Binding, error)
	tenants       func(context.Context) ([]domain.Tenant, error)

	saved       []domain.Binding
	saveErr     error
	deactivated []string
	marked      []string
}

func (f *fakeStore) ActiveBindingForChannel(ctx context.Context, channelID string) (*domain.Binding, error) {
	if f.activeBinding != nil {
		return f.activeBinding(ctx, channelID)
	}
	return &domain.Binding{ChannelID: channelID, ClientID: acme.ID, IsActive: true, Tenant: &acme}, nil
}

func (f *fakeStore) BindingForChannel(ctx context.Context, channelID string) (*domain.Binding, error) {
	if f.binding != nil {
		return f.binding(ctx, channelID)
	}
	return nil, nil
}

func (f *fakeStore) ActiveTenants(ctx context.Context) ([]domain.Tenant, error) {
	if f.tenants != nil {
		return f.tenants(ctx)
	}
	return []domain.Tenant{acme, {ID: "uuid-globex", Name: "Globex", Slug: "globex"}}, nil
}

func (f *fakeStore) TenantName(ctx context.Context, tenantID string) (string, error) {
	for _, t := range []domain.Tenant{acme, {ID: "uuid-globex", Name: "Globex"}} {
		if t.ID == tenantID {
			return t.Name, nil
		}
	}
	return "", errors.New("tenant not found")
}

func (f *fakeStore) SaveBinding(ctx context.Context, b domain.Binding) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, b)
	return nil
}

func (f *fakeStore) DeactivateBinding(ctx context.Context, channelID string) error {
	f.deactivated = append(f.deactivated, channelID)
	return nil
}

func (f *fakeStore) MarkReportSent(ctx context.Context, channelID string, sentAt time.Time) error {
	f.marked = append(f.marked, channelID)
	return nil
}

type fakeReporter struct {
	generate func(context.Context, domain.Tenant, string) (*report.Report, error)

	calls       int
	gotTenant   domain.Tenant
	gotQuestion string
}

func (f *fakeReporter) Generate(ctx context.Context, tenant domain.Tenant, question string) (*report.Report, error) {
	f.calls++
	f.gotTenant = tenant
	f.gotQuestion = question
	if f.generate != nil {
		return f.generate(ctx, tenant, question)
	}
	analysis := "*Sessions:* 3,000 - Up 4% 🟢"
	return &report.Report{
		TenantName: tenant.Name,
		Analysis:   analysis,
		Blocks:     slack.BuildReportBlocks(tenant.Name, analysis, ""),
	}, nil
}

type fakeNotifier struct {
	respondErr error
	responses  []slack.Message
	openedView *slack.View
	updated    []slack.View
	viewID     string
}

func (f *fakeNotifier) Respond(ctx context.Context, responseURL string, msg slack.Message) error {
	f.responses = append(f.responses, msg)
	return f.respondErr
}

func (f *fakeNotifier) OpenView(ctx context.Context, triggerID string, view slack.View) (string, error) {
	f.openedView = &view
	if f.viewID == "" {
		return "V1", nil
	}
	return f.viewID, nil
}

func (f *fakeNotifier) UpdateView(ctx context.Context, viewID string, view slack.View) error {
	f.updated = append(f.updated, view)
	return nil
}

type fakeDispatcher struct {
	sent int
	err  error
	got  time.Time
}

func (f *fakeDispatcher) Run(ctx context.Context, now time.Time) (int, error) {
	f.got = now
	return f.sent, f.err
}

func newTestApp(st *fakeStore, rep *fakeReporter, notifier *fakeNotifier, dispatcher *fakeDispatcher) *App {
	app := NewApp(infra.NewLogger("test"), st, rep, notifier, dispatcher)
	app.async = func(fn func()) { fn() }
	return app
}

func postCommand(t *testing.T, app *App, text string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	form.Set("text", text)
	form.Set("channel_id", "C123")
	form.Set("trigger_id", "trigger-1")
	form.Set("user_id", "U42")
	form.Set("response_url", "https://hooks.slack.test/respond")
	req := httptest.NewRequest(http.MethodPost, "/slack/command", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	app.HandleCommand(w, req)
	return w
}

func TestReportCommandDeliversBlocksAndRecordsSend(t *testing.T) {
	st := &fakeStore{}
	rep := &fakeReporter{}
	notifier := &fakeNotifier{}
	app := newTestApp(st, rep, notifier, &fakeDispatcher{})

	w := postCommand(t, app, "report")
	if w.Code != http.StatusOK {
		t.Fatalf("ack status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Generating report") {
		t.Fatalf("ack body = %q", w.Body.String())
	}

	if rep.gotQuestion != report.DefaultQuestion {
		t.Fatalf("question = %q, want default", rep.gotQuestion)
	}
	if len(notifier.responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(notifier.responses))
	}
	msg := notifier.responses[0]
	if msg.ResponseType != "in_channel" || len(msg.Blocks) == 0 {
		t.Fatalf("delivered message = %#v", msg)
	}
	if len(st.marked) != 1 || st.marked[0] != "C123" {
		t.Fatalf("marked = %v", st.marked)
	}
}

func TestFreeTextBecomesTheQuestion(t *testing.T) {
	st := &fakeStore{}
	rep := &fakeReporter{}
	notifier := &fakeNotifier{}
	app := newTestApp(st, rep, notifier, &fakeDispatcher{})

	w := postCommand(t, app, "where is my traffic coming from?")
	if !strings.Contains(w.Body.String(), "Pulling your data") {
		t.Fatalf("ack body = %q", w.Body.String())
	}
	if rep.gotQuestion != "where is my traffic coming from?" {
		t.Fatalf("question = %q", rep.gotQuestion)
	}
	// Ad-hoc questions do not count as report deliveries.
	if len(st.marked) != 0 {
		t.Fatalf("marked = %v, want none", st.marked)
	}
}

func TestWhitespaceTextPassesEmptyQuestionThrough(t *testing.T) {
	rep := &fakeReporter{}
	app := newTestApp(&fakeStore{}, rep, &fakeNotifier{}, &fakeDispatcher{})

	// The pipeline substitutes the default for an empty question.
	postCommand(t, app, "   ")
	if rep.gotQuestion != "" {
		t.Fatalf("question = %q, want empty passthrough", rep.gotQuestion)
	}
}

func TestUnconfiguredChannelGetsExactlyOneNotice(t *testing.T) {
	st := &fakeStore{
		activeBinding: func(context.Context, string) (*domain.Binding, error) {
			return nil, store.ErrNotConfigured
		},
	}
	rep := &fakeReporter{}
	notifier := &fakeNotifier{}
	app := newTestApp(st, rep, notifier, &fakeDispatcher{})

	postCommand(t, app, "report")
	if rep.calls != 0 {
		t.Fatalf("pipeline ran %d times for unbound channel", rep.calls)
	}
	if len(notifier.responses) != 1 {
		t.Fatalf("responses = %d, want exactly 1", len(notifier.responses))
	}
	if !strings.Contains(notifier.responses[0].Text, "not configured") {
		t.Fatalf("notice = %q", notifier.responses[0].Text)
	}
}

func TestPipelineErrorIsReportedAsynchronously(t *testing.T) {
	rep := &fakeReporter{
		generate: func(context.Context, domain.Tenant, string) (*report.Report, error) {
			return nil, errors.New("analyze: model overloaded")
		},
	}
	notifier := &fakeNotifier{}
	app := newTestApp(&fakeStore{}, rep, notifier, &fakeDispatcher{})

	w := postCommand(t, app, "report")
	if w.Code != http.StatusOK {
		t.Fatalf("ack status = %d even on failure, want 200", w.Code)
	}
	if len(notifier.responses) != 1 || !strings.Contains(notifier.responses[0].Text, "model overloaded") {
		t.Fatalf("responses = %#v", notifier.responses)
	}
}

func TestAckIsWrittenBeforePipelineRuns(t *testing.T) {
	release := make(chan struct{})
	st := &fakeStore{
		activeBinding: func(context.Context, string) (*domain.Binding, error) {
			<-release
			return nil, store.ErrNotConfigured
		},
	}
	notifier := &fakeNotifier{}
	app := NewApp(infra.NewLogger("test"), st, &fakeReporter{}, notifier, &fakeDispatcher{})

	done := make(chan struct{})
	app.async = func(fn func()) {
		go func() {
			fn()
			close(done)
		}()
	}

	w := postCommand(t, app, "report")
	// The handler has returned with the ack while the lookup still hangs.
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Generating report") {
		t.Fatalf("ack not written before pipeline finished: %d %q", w.Code, w.Body.String())
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline goroutine never finished")
	}
}

func TestUnsetDeactivatesBinding(t *testing.T) {
	for _, text := range []string{"UNSET", "off"} {
		st := &fakeStore{}
		notifier := &fakeNotifier{}
		app := newTestApp(st, &fakeReporter{}, notifier, &fakeDispatcher{})

		postCommand(t, app, text)
		if len(st.deactivated) != 1 || st.deactivated[0] != "C123" {
			t.Fatalf("text %q: deactivated = %v", text, st.deactivated)
		}
		if len(notifier.responses) != 1 || !strings.Contains(notifier.responses[0].Text, "switched off") {
			t.Fatalf("text %q: responses = %#v", text, notifier.responses)
		}
	}
}

func TestDispatchEndpointReportsCount(t *testing.T) {
	dispatcher := &fakeDispatcher{sent: 3}
	app := newTestApp(&fakeStore{}, &fakeReporter{}, &fakeNotifier{}, dispatcher)

	req := httptest.NewRequest(http.MethodPost, "/dispatch/run", nil)
	w := httptest.NewRecorder()
	app.HandleDispatch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, `"sent":3`) || !strings.Contains(body, `"success":true`) {
		t.Fatalf("body = %q", body)
	}
}

func TestDispatchEndpointSurfacesTopLevelFailure(t *testing.T) {
	dispatcher := &fakeDispatcher{err: errors.New("store down")}
	app := newTestApp(&fakeStore{}, &fakeReporter{}, &fakeNotifier{}, dispatcher)

	req := httptest.NewRequest(http.MethodPost, "/dispatch/run", nil)
	w := httptest.NewRecorder()
	app.HandleDispatch(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "store down") {
		t.Fatalf("body = %q", w.Body.String())
	}
}
