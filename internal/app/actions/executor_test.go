package actions

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ScribePilot/internal/config"
	"ScribePilot/internal/oracle"
	"ScribePilot/internal/surface"
)

// fakeAutomation пишет последовательность вызовов, чтобы проверять порядок шагов.
type fakeAutomation struct {
	ops       []string
	clipboard string
	clipErr   error
	emitErr   error
}

func (a *fakeAutomation) EmitKeystroke(_ context.Context, k oracle.Keystroke) error {
	a.ops = append(a.ops, "key:"+k.String())
	return a.emitErr
}

func (a *fakeAutomation) ActivateReportingApp(context.Context) error {
	a.ops = append(a.ops, "activate")
	return nil
}

func (a *fakeAutomation) ActivateWorklist(context.Context) error {
	a.ops = append(a.ops, "activate-worklist")
	return nil
}

func (a *fakeAutomation) SaveFocus() { a.ops = append(a.ops, "save-focus") }

func (a *fakeAutomation) RestoreFocus(context.Context) error {
	a.ops = append(a.ops, "restore-focus")
	return nil
}

func (a *fakeAutomation) SetClipboardText(_ context.Context, text string) error {
	a.ops = append(a.ops, "setclip:"+text)
	a.clipboard = text
	return nil
}

func (a *fakeAutomation) GetClipboardText(context.Context) (string, error) {
	a.ops = append(a.ops, "getclip")
	return a.clipboard, a.clipErr
}

type fakeDictation struct {
	toggles   []bool // значение suppressKeystroke каждого вызова
	stops     int
	stopErr   error
	toggleErr error
}

func (d *fakeDictation) Toggle(_ context.Context, _ *bool, suppress bool) error {
	d.toggles = append(d.toggles, suppress)
	return d.toggleErr
}

func (d *fakeDictation) EnsureStopped(context.Context) error {
	d.stops++
	return d.stopErr
}

type fakeRecorder struct {
	accession string
	signed    int
	discards  int
	processed int
}

func (r *fakeRecorder) MarkSigned()              { r.signed++ }
func (r *fakeRecorder) MarkDiscardRequested()    { r.discards++ }
func (r *fakeRecorder) MarkProcessPressed()      { r.processed++ }
func (r *fakeRecorder) CurrentAccession() string { return r.accession }

type fakeNoteTracker struct {
	accessions []string
}

func (n *fakeNoteTracker) EnsureNoteForAccession(_ context.Context, accession string) error {
	n.accessions = append(n.accessions, accession)
	return nil
}

type noticePresenter struct {
	notices []string
}

func (p *noticePresenter) ShowToast(string, time.Duration)     {}
func (p *noticePresenter) ShowNotice(msg string)               { p.notices = append(p.notices, msg) }
func (p *noticePresenter) ShowAlert(surface.AlertKind, string) {}
func (p *noticePresenter) HideAlert()                          {}
func (p *noticePresenter) SetIndicators(surface.Flags)         {}
func (p *noticePresenter) UpdateImpression(string)             {}
func (p *noticePresenter) ShowImpression()                     {}
func (p *noticePresenter) HideImpression()                     {}
func (p *noticePresenter) RaiseOverlays()                      {}

type executorFixture struct {
	e         *DefaultExecutor
	auto      *fakeAutomation
	dict      *fakeDictation
	rec       *fakeRecorder
	notes     *fakeNoteTracker
	presenter *noticePresenter
	slept     []time.Duration
}

func newExecutorFixture(cfg *config.Config) *executorFixture {
	if cfg == nil {
		cfg = config.Defaults()
	}
	fx := &executorFixture{
		auto:      &fakeAutomation{},
		dict:      &fakeDictation{},
		rec:       &fakeRecorder{accession: "ACC-1"},
		notes:     &fakeNoteTracker{},
		presenter: &noticePresenter{},
	}
	fx.e = NewExecutor(cfg, fx.auto, fx.dict, fx.rec, fx.notes, fx.presenter, nil, nil, zap.NewNop().Sugar())
	fx.e.sleep = func(d time.Duration) { fx.slept = append(fx.slept, d) }
	return fx
}

func TestExecuteToggleSuppressesKeystrokeForDevice(t *testing.T) {
	fx := newExecutorFixture(nil)

	require.NoError(t, fx.e.Execute(context.Background(), Request{Kind: KindToggleRecord, Source: SourceDevice}))
	require.NoError(t, fx.e.Execute(context.Background(), Request{Kind: KindToggleRecord, Source: SourceHotkey}))

	require.Len(t, fx.dict.toggles, 2)
	assert.True(t, fx.dict.toggles[0], "аппаратная кнопка уже переключила приложение")
	assert.False(t, fx.dict.toggles[1], "хоткей переключает через кейстрок")
}

func TestExecuteSignStopsDictationFirst(t *testing.T) {
	fx := newExecutorFixture(nil)

	require.NoError(t, fx.e.Execute(context.Background(), Request{Kind: KindSign, Source: SourceUI}))

	assert.Equal(t, 1, fx.dict.stops)
	assert.Equal(t, []string{"save-focus", "activate", "key:sign"}, fx.auto.ops)
	assert.Equal(t, 1, fx.rec.signed)
}

func TestExecuteSignAbortsWhenStopFails(t *testing.T) {
	fx := newExecutorFixture(nil)
	fx.dict.stopErr = errors.New("emit failed")

	err := fx.e.Execute(context.Background(), Request{Kind: KindSign, Source: SourceUI})
	require.Error(t, err)
	assert.NotContains(t, fx.auto.ops, "key:sign", "кейстрок подписи не шлётся при незаглушенной записи")
	assert.Zero(t, fx.rec.signed)
}

func TestExecuteDiscardMarksCase(t *testing.T) {
	fx := newExecutorFixture(nil)

	require.NoError(t, fx.e.Execute(context.Background(), Request{Kind: KindDiscard, Source: SourceUI}))
	assert.Equal(t, 1, fx.dict.stops)
	assert.Equal(t, 1, fx.rec.discards)
}

func TestExecuteProcessKicksRecorder(t *testing.T) {
	fx := newExecutorFixture(nil)

	require.NoError(t, fx.e.Execute(context.Background(), Request{Kind: KindProcess, Source: SourceHotkey}))
	assert.Equal(t, []string{"save-focus", "activate", "key:process"}, fx.auto.ops)
	assert.Equal(t, 1, fx.rec.processed)
	assert.Zero(t, fx.dict.stops, "Process не трогает диктовку")
}

func TestExecuteInsertMacroPastesUnderLockAndRestoresClipboard(t *testing.T) {
	cfg := config.Defaults()
	cfg.Macros = []string{"normal chest=Lungs are clear. No acute disease."}
	fx := newExecutorFixture(cfg)
	fx.auto.clipboard = "previous content"

	require.NoError(t, fx.e.Execute(context.Background(), Request{
		Kind:    KindInsertMacro,
		Source:  SourceUI,
		Payload: "Normal Chest",
	}))

	assert.Equal(t, []string{
		"save-focus",
		"getclip",
		"setclip:Lungs are clear. No acute disease.",
		"activate",
		"key:paste",
		"setclip:previous content",
	}, fx.auto.ops)
	assert.Equal(t, []time.Duration{cfg.PasteSettle}, fx.slept)
}

func TestExecuteInsertSkipsRestoreWhenClipboardUnreadable(t *testing.T) {
	cfg := config.Defaults()
	cfg.PickListEntries = []string{"followup=Recommend follow-up CT in 6 months."}
	fx := newExecutorFixture(cfg)
	fx.auto.clipErr = errors.New("clipboard locked")

	require.NoError(t, fx.e.Execute(context.Background(), Request{
		Kind:    KindInsertPickList,
		Source:  SourceUI,
		Payload: "followup",
	}))

	// Прежний буфер прочитать не удалось — восстанавливать нечего
	assert.Equal(t, []string{
		"save-focus",
		"getclip",
		"setclip:Recommend follow-up CT in 6 months.",
		"activate",
		"key:paste",
	}, fx.auto.ops)
}

func TestExecuteInsertUnknownNameShowsNotice(t *testing.T) {
	fx := newExecutorFixture(nil)

	require.NoError(t, fx.e.Execute(context.Background(), Request{
		Kind:    KindInsertMacro,
		Source:  SourceUI,
		Payload: "no-such-macro",
	}))

	require.Len(t, fx.presenter.notices, 1)
	assert.Contains(t, fx.presenter.notices[0], "no-such-macro")
	assert.Equal(t, []string{"save-focus"}, fx.auto.ops, "чистое прерывание: ни буфера, ни кейстроков")
}

func TestExecuteCriticalNoteFallsBackToCurrentAccession(t *testing.T) {
	fx := newExecutorFixture(nil)

	require.NoError(t, fx.e.Execute(context.Background(), Request{Kind: KindCreateCriticalNote, Payload: "ACC-9"}))
	require.NoError(t, fx.e.Execute(context.Background(), Request{Kind: KindCreateCriticalNote}))

	assert.Equal(t, []string{"ACC-9", "ACC-1"}, fx.notes.accessions)
}

type chanCue struct {
	played chan int
}

func (c *chanCue) PlayCue(freqHz int, _ time.Duration, _ float64) error {
	c.played <- freqHz
	return nil
}

func TestExecuteFailurePlaysWarnCue(t *testing.T) {
	cfg := config.Defaults()
	fx := newExecutorFixture(cfg)
	cue := &chanCue{played: make(chan int, 1)}
	fx.e.cue = cue
	fx.auto.emitErr = errors.New("keystroke injection failed")

	require.Error(t, fx.e.Execute(context.Background(), Request{Kind: KindProcess}))
	select {
	case freq := <-cue.played:
		assert.Equal(t, cfg.CueWarnFreq, freq)
	case <-time.After(time.Second):
		t.Fatal("warn cue was not played")
	}
}

func TestCleanupRestoresFocus(t *testing.T) {
	fx := newExecutorFixture(nil)
	fx.e.Cleanup(context.Background())
	assert.Equal(t, []string{"restore-focus"}, fx.auto.ops)
}

func TestExecuteNoFocusJugglingWhenDisabled(t *testing.T) {
	cfg := config.Defaults()
	cfg.RestoreFocus = false
	fx := newExecutorFixture(cfg)

	require.NoError(t, fx.e.Execute(context.Background(), Request{Kind: KindProcess}))
	fx.e.Cleanup(context.Background())
	for _, op := range fx.auto.ops {
		require.NotContains(t, []string{"save-focus", "restore-focus"}, op, fmt.Sprintf("op %q", op))
	}
}
