//go:build windows

package winauto

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"
	"go.uber.org/zap"

	"ScribePilot/internal/config"
	"ScribePilot/internal/oracle"
)

// Обёртки для функций, которых может не быть в lxn/win
var (
	user32               = syscall.NewLazyDLL("user32.dll")
	procEnumWindows      = user32.NewProc("EnumWindows")
	procEnumChildWindows = user32.NewProc("EnumChildWindows")
	procGetClassName     = user32.NewProc("GetClassNameW")
	procGetWindowText    = user32.NewProc("GetWindowTextW")
	procKeybdEvent       = user32.NewProc("keybd_event")
)

const keyeventfKeyUp = 0x0002

// Рантайм Go компилирует каждый syscall-коллбек навсегда и ограничивает их
// число на процесс, поэтому коллбеки перечисления регистрируются ровно один
// раз на уровне пакета; параметры и результат ходят через слоты под enumMu.
var (
	enumMu    sync.Mutex
	enumMatch func(title string) bool
	enumHwnd  win.HWND
	enumTitle string

	enumWindowsCB = syscall.NewCallback(func(hwnd win.HWND, _ uintptr) uintptr {
		title := windowTitle(hwnd)
		if title != "" && enumMatch(title) {
			enumHwnd = hwnd
			enumTitle = title
			return 0 // стоп
		}
		return 1 // продолжать
	})

	childClass string
	childHwnd  win.HWND

	enumChildCB = syscall.NewCallback(func(hwnd win.HWND, _ uintptr) uintptr {
		var buf [256]uint16
		n, _, _ := procGetClassName.Call(
			uintptr(hwnd),
			uintptr(unsafe.Pointer(&buf[0])),
			uintptr(len(buf)),
		)
		if n > 0 && syscall.UTF16ToString(buf[:n]) == childClass {
			childHwnd = hwnd
			return 0
		}
		return 1
	})
)

// chord — аккорд клавиш: модификаторы зажимаются на время нажатия основной.
type chord struct {
	modifiers []byte
	key       byte
}

// Горячие клавиши внешнего отчётного приложения. Таблица, а не switch: набор
// придёт из конфигурации, когда появится второе приложение с другой раскладкой.
var chords = map[oracle.Keystroke]chord{
	oracle.KeyToggleRecord: {key: win.VK_F4},
	oracle.KeySign:         {key: win.VK_F12},
	oracle.KeyDiscard:      {modifiers: []byte{win.VK_MENU}, key: 'D'},
	oracle.KeyProcess:      {key: win.VK_F9},
	oracle.KeyPaste:        {modifiers: []byte{win.VK_CONTROL}, key: 'V'},
	oracle.KeyCreateNote:   {modifiers: []byte{win.VK_CONTROL}, key: 'N'},
}

type winDriver struct {
	cfg    *config.Config
	logger *zap.SugaredLogger

	savedFocus win.HWND
}

func newDriver(cfg *config.Config, logger *zap.SugaredLogger) (Driver, error) {
	return &winDriver{cfg: cfg, logger: logger}, nil
}

// --- Зонды ---

func (d *winDriver) RecordingActive(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	hwnd, title := findWindowByTitle(d.cfg.DictationWindowTitle)
	if hwnd == 0 {
		return false, fmt.Errorf("dictation window %q not found", d.cfg.DictationWindowTitle)
	}
	return titleContainsFold(title, d.cfg.RecordingMarker), nil
}

func (d *winDriver) CaseSnapshot(ctx context.Context) (oracle.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return oracle.Snapshot{}, err
	}
	hwnd, title := findWindowByTitle(d.cfg.ReportingWindowTitle)
	if hwnd == 0 {
		return oracle.Snapshot{}, fmt.Errorf("reporting window %q not found", d.cfg.ReportingWindowTitle)
	}

	rt := parseReportingTitle(title)
	snap := oracle.Snapshot{
		Accession:    rt.Accession,
		TemplateName: rt.TemplateName,
		Drafted:      rt.Drafted,
	}
	snap.ReportText = readChildText(hwnd, d.cfg.ReportEditClass)

	// Ворклист — отдельное приложение и может быть закрыт; это не ошибка
	// зонда, просто описание и пол останутся неизвестными.
	if wlHwnd, wlTitle := findWindowByTitle(d.cfg.WorklistWindowTitle); wlHwnd != 0 {
		wt := parseWorklistTitle(wlTitle)
		if snap.Accession == "" {
			snap.Accession = wt.Accession
		}
		snap.Description = wt.Description
		snap.PatientGender = wt.Gender
	}
	return snap, nil
}

func (d *winDriver) DiscardDialogVisible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	hwnd, _ := findWindowByExactTitle(d.cfg.DiscardDialogTitle)
	return hwnd != 0, nil
}

// --- Автоматизация ---

func (d *winDriver) EmitKeystroke(ctx context.Context, k oracle.Keystroke) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, ok := chords[k]
	if !ok {
		return fmt.Errorf("no key chord for %s", k)
	}
	if procKeybdEvent.Find() != nil {
		return errors.New("keybd_event unavailable")
	}
	for _, m := range c.modifiers {
		keybdEvent(m, 0)
	}
	keybdEvent(c.key, 0)
	keybdEvent(c.key, keyeventfKeyUp)
	for i := len(c.modifiers) - 1; i >= 0; i-- {
		keybdEvent(c.modifiers[i], keyeventfKeyUp)
	}
	return nil
}

func (d *winDriver) ActivateReportingApp(ctx context.Context) error {
	return d.activate(ctx, d.cfg.ReportingWindowTitle)
}

func (d *winDriver) ActivateWorklist(ctx context.Context) error {
	return d.activate(ctx, d.cfg.WorklistWindowTitle)
}

func (d *winDriver) activate(ctx context.Context, titleSubstr string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hwnd, _ := findWindowByTitle(titleSubstr)
	if hwnd == 0 {
		return fmt.Errorf("window %q not found", titleSubstr)
	}
	if win.IsIconic(hwnd) {
		win.ShowWindow(hwnd, win.SW_RESTORE)
	}
	if !win.SetForegroundWindow(hwnd) {
		return fmt.Errorf("failed to bring window %q to foreground", titleSubstr)
	}
	// Фокусу нужно мгновение, прежде чем окно начнёт принимать ввод
	time.Sleep(50 * time.Millisecond)
	return nil
}

func (d *winDriver) SaveFocus() {
	d.savedFocus = win.GetForegroundWindow()
}

func (d *winDriver) RestoreFocus(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.savedFocus == 0 {
		return nil
	}
	if !win.SetForegroundWindow(d.savedFocus) {
		return errors.New("failed to restore focus to saved window")
	}
	return nil
}

func (d *winDriver) SetClipboardText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u16, err := syscall.UTF16FromString(text)
	if err != nil {
		return err
	}
	if !win.OpenClipboard(0) {
		return errors.New("failed to open clipboard")
	}
	defer win.CloseClipboard()
	if !win.EmptyClipboard() {
		return errors.New("failed to empty clipboard")
	}

	size := uintptr(len(u16)) * unsafe.Sizeof(u16[0])
	h := win.GlobalAlloc(win.GMEM_MOVEABLE, size)
	if h == 0 {
		return errors.New("GlobalAlloc failed")
	}
	p := win.GlobalLock(h)
	if p == nil {
		win.GlobalFree(h)
		return errors.New("GlobalLock failed")
	}
	win.MoveMemory(p, unsafe.Pointer(&u16[0]), size)
	win.GlobalUnlock(h)

	if win.SetClipboardData(win.CF_UNICODETEXT, win.HANDLE(h)) == 0 {
		win.GlobalFree(h)
		return errors.New("SetClipboardData failed")
	}
	// Владение памятью перешло системе — освобождать нельзя
	return nil
}

func (d *winDriver) GetClipboardText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !win.IsClipboardFormatAvailable(win.CF_UNICODETEXT) {
		return "", errors.New("clipboard has no text")
	}
	if !win.OpenClipboard(0) {
		return "", errors.New("failed to open clipboard")
	}
	defer win.CloseClipboard()
	h := win.HGLOBAL(win.GetClipboardData(win.CF_UNICODETEXT))
	if h == 0 {
		return "", errors.New("GetClipboardData failed")
	}
	p := win.GlobalLock(h)
	if p == nil {
		return "", errors.New("GlobalLock failed")
	}
	defer win.GlobalUnlock(h)
	// Считать нуль-терминированную UTF-16 строку
	u16 := (*[1 << 20]uint16)(p) // ограничение 1М элементов
	var n int
	for n = 0; n < len(u16) && u16[n] != 0; n++ {
	}
	return syscall.UTF16ToString(u16[:n]), nil
}

// --- Низкоуровневые помощники ---

func keybdEvent(vk byte, flags uint32) {
	_, _, _ = procKeybdEvent.Call(uintptr(vk), 0, uintptr(flags), 0)
}

// findWindowByTitle ищет первое top-level окно, заголовок которого содержит
// substr (без учёта регистра). Возвращает хэндл и полный заголовок.
func findWindowByTitle(substr string) (win.HWND, string) {
	if substr == "" {
		return 0, ""
	}
	return enumFind(func(title string) bool { return titleContainsFold(title, substr) })
}

func findWindowByExactTitle(title string) (win.HWND, string) {
	if title == "" {
		return 0, ""
	}
	return enumFind(func(t string) bool { return t == title })
}

func enumFind(match func(title string) bool) (win.HWND, string) {
	if procEnumWindows.Find() != nil {
		return 0, ""
	}
	enumMu.Lock()
	defer enumMu.Unlock()
	enumMatch, enumHwnd, enumTitle = match, 0, ""
	_, _, _ = procEnumWindows.Call(enumWindowsCB, 0)
	enumMatch = nil
	return enumHwnd, enumTitle
}

func windowTitle(hwnd win.HWND) string {
	var buf [512]uint16
	n, _, _ := procGetWindowText.Call(
		uintptr(hwnd),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
	)
	if n <= 0 {
		return ""
	}
	return syscall.UTF16ToString(buf[:n])
}

// readChildText находит дочернее окно заданного класса и забирает его текст
// через WM_GETTEXT. Пустая строка — «не видно»; вызывающий трактует это сам.
func readChildText(parent win.HWND, className string) string {
	if className == "" || procEnumChildWindows.Find() != nil {
		return ""
	}
	enumMu.Lock()
	childClass, childHwnd = className, 0
	_, _, _ = procEnumChildWindows.Call(uintptr(parent), enumChildCB, 0)
	target := childHwnd
	enumMu.Unlock()
	if target == 0 {
		return ""
	}

	length := win.SendMessage(target, win.WM_GETTEXTLENGTH, 0, 0)
	if length <= 0 {
		return ""
	}
	buf := make([]uint16, length+1)
	got := win.SendMessage(target, win.WM_GETTEXT, uintptr(len(buf)), uintptr(unsafe.Pointer(&buf[0])))
	if got <= 0 {
		return ""
	}
	return syscall.UTF16ToString(buf[:got])
}
