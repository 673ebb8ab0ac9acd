package config

import (
	"flag"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	DebugMode bool `env:"DEBUG_MODE"` //Режим дебага

	// Поллер жизненного цикла исследования (Study Lifecycle Poller)
	PollIntervalSeconds     int           `env:"POLL_INTERVAL_SECONDS"`      // Базовый интервал опроса внешних приложений
	PollFastInterval        time.Duration `env:"POLL_FAST_INTERVAL"`         // Ускоренный интервал во время поиска заключения
	PollSlowIntervalSeconds int           `env:"POLL_SLOW_INTERVAL_SECONDS"` // Замедленный интервал после того, как заключение найдено
	ImpressionSettle        time.Duration `env:"IMPRESSION_SETTLE"`          // Минимальное время «устаканивания» текста заключения
	ReportCompleteMarker    string        `env:"REPORT_COMPLETE_MARKER"`     // Маркер, по которому отчёт считается полностью сгенерированным
	TrackReportChanges      bool          `env:"TRACK_REPORT_CHANGES"`       // Снимать базовый снапшот отчёта для последующего diff'а
	TrackImpression         bool          `env:"TRACK_IMPRESSION"`           // Включить отслеживание секции заключения после Process

	// Сверка состояния диктовки (Dictation Reconciler)
	DictationSyncInterval time.Duration `env:"DICTATION_SYNC_INTERVAL"` // Интервал фоновой сверки признака записи
	DictationOffThreshold int           `env:"DICTATION_OFF_THRESHOLD"` // Сколько подряд «false» нужно, чтобы поверить в остановку записи
	ToggleLockout         time.Duration `env:"TOGGLE_LOCKOUT"`          // Окно после ручного переключения, когда фоновая сверка молчит

	// Очередь действий
	WorkerIdleWake    time.Duration `env:"WORKER_IDLE_WAKE"`    // Периодическое пробуждение воркера для сервисных задач
	ActionJoinTimeout time.Duration `env:"ACTION_JOIN_TIMEOUT"` // Сколько ждать завершения текущего действия при остановке
	PasteSettle       time.Duration `env:"PASTE_SETTLE"`        // Пауза после Ctrl+V, пока внешнее приложение заберёт буфер
	RestoreFocus      bool          `env:"RESTORE_FOCUS"`       // Возвращать фокус окну, активному до действия

	// Алерты
	AlertMode        string   `env:"ALERT_MODE"`                         // alerts-only|always
	MaleTerms        []string `env:"MALE_TERMS" envSeparator:";"`        // Термины, ожидаемые только у пациентов мужского пола
	FemaleTerms      []string `env:"FEMALE_TERMS" envSeparator:";"`      // Термины, ожидаемые только у пациентов женского пола
	ProtocolKeywords []string `env:"PROTOCOL_KEYWORDS" envSeparator:";"` // Ключевые слова описания, помечающие исследование как протокольное
	Macros           []string `env:"MACROS" envSeparator:";"`            // Макросы вида имя=текст для вставки в отчёт
	PickListEntries  []string `env:"PICK_LIST_ENTRIES" envSeparator:";"` // Пункты пик-листа вида имя=текст

	// Звуковые сигналы
	CueStartFreq  int           `env:"CUE_START_FREQ"`  // Частота сигнала начала записи, Гц
	CueStopFreq   int           `env:"CUE_STOP_FREQ"`   // Частота сигнала остановки записи, Гц
	CueWarnFreq   int           `env:"CUE_WARN_FREQ"`   // Частота предупреждающего сигнала, Гц
	CueDuration   time.Duration `env:"CUE_DURATION"`    // Длительность сигнала
	CueVolumeDB   float64       `env:"CUE_VOLUME_DB"`   // Громкость в дБ (отрицательные — тише)
	CueStartDelay time.Duration `env:"CUE_START_DELAY"` // Задержка сигнала старта, маскирует латентность внешнего приложения

	// Автоматизация внешних окон (winauto)
	ReportingWindowTitle string `env:"REPORTING_WINDOW_TITLE"` // Подстрока заголовка окна отчётного приложения
	ReportEditClass      string `env:"REPORT_EDIT_CLASS"`      // Класс дочернего окна с текстом отчёта
	DictationWindowTitle string `env:"DICTATION_WINDOW_TITLE"` // Подстрока заголовка окна диктовки
	RecordingMarker      string `env:"RECORDING_MARKER"`       // Подстрока заголовка, означающая активную запись
	DiscardDialogTitle   string `env:"DISCARD_DIALOG_TITLE"`   // Заголовок диалога отмены отчёта
	WorklistWindowTitle  string `env:"WORKLIST_WINDOW_TITLE"`  // Подстрока заголовка окна ворклиста

	// DeviceBridge — приёмник кнопочных событий микрофона по WebSocket
	DeviceBridge DeviceBridgeConfig

	// Диагностические скриншоты
	DiagShotEnabled    bool   `env:"DIAGSHOT_ENABLED"`     // Снимать скриншот при ошибке действия
	DiagShotDir        string `env:"DIAGSHOT_DIR"`         // Папка для диагностических скриншотов
	DiagShotTTLSeconds int    `env:"DIAGSHOT_TTL_SECONDS"` // Время, через которое старые скриншоты удаляются, в секундах

	// Тосты
	ToastDurationMS int `env:"TOAST_DURATION_MS"` // Длительность показа тоста, мс
}

// DeviceBridgeConfig конфигурация локального моста для аппаратных кнопок микрофона.
type DeviceBridgeConfig struct {
	Enabled   bool   `env:"DEVICE_BRIDGE_ENABLED"`    // Главный флаг включения/выключения
	BindAddr  string `env:"DEVICE_BRIDGE_BIND_ADDR"`  // Адрес слушателя, напр. 127.0.0.1:3999
	Path      string `env:"DEVICE_BRIDGE_PATH"`       // HTTP‑путь апгрейда WebSocket
	AuthToken string `env:"DEVICE_BRIDGE_AUTH_TOKEN"` // Токен авторизации (опционально)
}

// Defaults возвращает конфигурацию с предустановленными значениями по умолчанию.
// Эти значения перекрываются .env, переменными окружения и флагами CLI.
func Defaults() *Config {
	return &Config{
		DebugMode: false,
		// Поллер
		PollIntervalSeconds:     4,
		PollFastInterval:        time.Second,
		PollSlowIntervalSeconds: 10,
		ImpressionSettle:        2 * time.Second,
		ReportCompleteMarker:    "IMPRESSION:",
		TrackReportChanges:      true,
		TrackImpression:         true,
		// Диктовка
		DictationSyncInterval: 300 * time.Millisecond,
		DictationOffThreshold: 3,
		ToggleLockout:         1500 * time.Millisecond,
		// Очередь
		WorkerIdleWake:    2 * time.Second,
		ActionJoinTimeout: 5 * time.Second,
		PasteSettle:       150 * time.Millisecond,
		RestoreFocus:      true,
		// Алерты
		AlertMode:        "alerts-only",
		MaleTerms:        []string{"prostate", "scrotum", "testis", "testicular"},
		FemaleTerms:      []string{"uterus", "ovary", "ovarian", "cervix", "endometrium"},
		ProtocolKeywords: []string{"critical", "stat", "stroke protocol"},
		// Сигналы
		CueStartFreq:  880,
		CueStopFreq:   440,
		CueWarnFreq:   220,
		CueDuration:   120 * time.Millisecond,
		CueVolumeDB:   0,
		CueStartDelay: 250 * time.Millisecond,
		// Окна
		ReportingWindowTitle: "PowerScribe",
		ReportEditClass:      "RICHEDIT50W",
		DictationWindowTitle: "PowerScribe",
		RecordingMarker:      "Recording",
		DiscardDialogTitle:   "Discard Report",
		WorklistWindowTitle:  "Worklist",
		// Мост устройства
		DeviceBridge: DeviceBridgeConfig{
			Enabled:  false,
			BindAddr: "127.0.0.1:3999",
			Path:     "/buttons",
		},
		// Диагностика
		DiagShotEnabled:    true,
		DiagShotDir:        "diag",
		DiagShotTTLSeconds: 3600,
		// Тосты
		ToastDurationMS: 4000,
	}
}

// NewConfig загружает конфигурацию приложения.
func NewConfig() *Config {
	_ = godotenv.Load()

	// Стартуем с дефолтов, затем перекрываем .env/окружением и флагами
	cfg := Defaults()
	_ = env.Parse(cfg)

	flag.BoolVar(&cfg.DebugMode, "debug-mode", cfg.DebugMode, "включить режим дебага для отображения доп. инфы")
	// Поллер
	flag.IntVar(&cfg.PollIntervalSeconds, "poll-interval-seconds", cfg.PollIntervalSeconds, "базовый интервал опроса внешних приложений в секундах")
	flag.DurationVar(&cfg.PollFastInterval, "poll-fast-interval", cfg.PollFastInterval, "ускоренный интервал опроса во время поиска заключения, напр. 1s")
	flag.IntVar(&cfg.PollSlowIntervalSeconds, "poll-slow-interval-seconds", cfg.PollSlowIntervalSeconds, "замедленный интервал опроса после нахождения заключения, в секундах")
	flag.DurationVar(&cfg.ImpressionSettle, "impression-settle", cfg.ImpressionSettle, "минимальное время устаканивания текста заключения, напр. 2s")
	flag.StringVar(&cfg.ReportCompleteMarker, "report-complete-marker", cfg.ReportCompleteMarker, "маркер полностью сгенерированного отчёта")
	flag.BoolVar(&cfg.TrackReportChanges, "track-report-changes", cfg.TrackReportChanges, "снимать базовый снапшот отчёта")
	flag.BoolVar(&cfg.TrackImpression, "track-impression", cfg.TrackImpression, "отслеживать секцию заключения после Process")
	// Диктовка
	flag.DurationVar(&cfg.DictationSyncInterval, "dictation-sync-interval", cfg.DictationSyncInterval, "интервал фоновой сверки признака записи, напр. 300ms")
	flag.IntVar(&cfg.DictationOffThreshold, "dictation-off-threshold", cfg.DictationOffThreshold, "сколько подряд false до признания остановки записи")
	flag.DurationVar(&cfg.ToggleLockout, "toggle-lockout", cfg.ToggleLockout, "окно молчания фоновой сверки после ручного переключения, напр. 1500ms")
	// Очередь
	flag.DurationVar(&cfg.WorkerIdleWake, "worker-idle-wake", cfg.WorkerIdleWake, "периодическое пробуждение воркера очереди, напр. 2s")
	flag.DurationVar(&cfg.ActionJoinTimeout, "action-join-timeout", cfg.ActionJoinTimeout, "ожидание завершения текущего действия при остановке")
	flag.DurationVar(&cfg.PasteSettle, "paste-settle", cfg.PasteSettle, "пауза после вставки из буфера, напр. 150ms")
	flag.BoolVar(&cfg.RestoreFocus, "restore-focus", cfg.RestoreFocus, "возвращать фокус окну, активному до действия")
	// Алерты
	flag.StringVar(&cfg.AlertMode, "alert-mode", cfg.AlertMode, "режим показа алертов: alerts-only|always")
	var maleTermsFlag, femaleTermsFlag, protocolKeywordsFlag, macrosFlag, pickListFlag string
	maleTermsFlag = strings.Join(cfg.MaleTerms, ";")
	femaleTermsFlag = strings.Join(cfg.FemaleTerms, ";")
	protocolKeywordsFlag = strings.Join(cfg.ProtocolKeywords, ";")
	macrosFlag = strings.Join(cfg.Macros, ";")
	pickListFlag = strings.Join(cfg.PickListEntries, ";")
	flag.StringVar(&maleTermsFlag, "male-terms", maleTermsFlag, "термины мужской анатомии, разделённые ';'")
	flag.StringVar(&femaleTermsFlag, "female-terms", femaleTermsFlag, "термины женской анатомии, разделённые ';'")
	flag.StringVar(&protocolKeywordsFlag, "protocol-keywords", protocolKeywordsFlag, "ключевые слова протокольных исследований, разделённые ';'")
	flag.StringVar(&macrosFlag, "macros", macrosFlag, "макросы вида имя=текст, разделённые ';'")
	flag.StringVar(&pickListFlag, "pick-list-entries", pickListFlag, "пункты пик-листа вида имя=текст, разделённые ';'")
	// Сигналы
	flag.IntVar(&cfg.CueStartFreq, "cue-start-freq", cfg.CueStartFreq, "частота сигнала начала записи, Гц")
	flag.IntVar(&cfg.CueStopFreq, "cue-stop-freq", cfg.CueStopFreq, "частота сигнала остановки записи, Гц")
	flag.IntVar(&cfg.CueWarnFreq, "cue-warn-freq", cfg.CueWarnFreq, "частота предупреждающего сигнала, Гц")
	flag.DurationVar(&cfg.CueDuration, "cue-duration", cfg.CueDuration, "длительность звукового сигнала, напр. 120ms")
	flag.Float64Var(&cfg.CueVolumeDB, "cue-volume-db", cfg.CueVolumeDB, "громкость сигналов в дБ (отрицательные — тише)")
	flag.DurationVar(&cfg.CueStartDelay, "cue-start-delay", cfg.CueStartDelay, "задержка сигнала старта записи, напр. 250ms")
	// Окна
	flag.StringVar(&cfg.ReportingWindowTitle, "reporting-window-title", cfg.ReportingWindowTitle, "подстрока заголовка окна отчётного приложения")
	flag.StringVar(&cfg.ReportEditClass, "report-edit-class", cfg.ReportEditClass, "класс дочернего окна с текстом отчёта")
	flag.StringVar(&cfg.DictationWindowTitle, "dictation-window-title", cfg.DictationWindowTitle, "подстрока заголовка окна диктовки")
	flag.StringVar(&cfg.RecordingMarker, "recording-marker", cfg.RecordingMarker, "подстрока заголовка при активной записи")
	flag.StringVar(&cfg.DiscardDialogTitle, "discard-dialog-title", cfg.DiscardDialogTitle, "заголовок диалога отмены отчёта")
	flag.StringVar(&cfg.WorklistWindowTitle, "worklist-window-title", cfg.WorklistWindowTitle, "подстрока заголовка окна ворклиста")
	// DeviceBridge
	flag.BoolVar(&cfg.DeviceBridge.Enabled, "device-bridge-enabled", cfg.DeviceBridge.Enabled, "включить приёмник кнопочных событий микрофона (DeviceBridge)")
	flag.StringVar(&cfg.DeviceBridge.BindAddr, "device-bridge-bind-addr", cfg.DeviceBridge.BindAddr, "адрес для прослушивания DeviceBridge (напр. 127.0.0.1:3999)")
	flag.StringVar(&cfg.DeviceBridge.Path, "device-bridge-path", cfg.DeviceBridge.Path, "HTTP путь DeviceBridge (напр. /buttons)")
	flag.StringVar(&cfg.DeviceBridge.AuthToken, "device-bridge-auth-token", cfg.DeviceBridge.AuthToken, "токен авторизации DeviceBridge (опционально)")
	// Диагностика
	flag.BoolVar(&cfg.DiagShotEnabled, "diagshot-enabled", cfg.DiagShotEnabled, "снимать скриншот при ошибке действия")
	flag.StringVar(&cfg.DiagShotDir, "diagshot-dir", cfg.DiagShotDir, "папка для диагностических скриншотов")
	flag.IntVar(&cfg.DiagShotTTLSeconds, "diagshot-ttl-seconds", cfg.DiagShotTTLSeconds, "время жизни диагностических скриншотов в секундах")
	// Тосты
	flag.IntVar(&cfg.ToastDurationMS, "toast-duration-ms", cfg.ToastDurationMS, "длительность показа тоста, мс")
	flag.Parse()

	// Разбор списков по общему правилу (trim + убрать пустые), дефолты различаются
	cfg.MaleTerms = parseListFlag(maleTermsFlag, Defaults().MaleTerms)
	cfg.FemaleTerms = parseListFlag(femaleTermsFlag, Defaults().FemaleTerms)
	cfg.ProtocolKeywords = parseListFlag(protocolKeywordsFlag, Defaults().ProtocolKeywords)
	cfg.Macros = parseListFlag(macrosFlag, nil)
	cfg.PickListEntries = parseListFlag(pickListFlag, nil)

	return cfg
}

// ParsePairs разбирает список строк вида имя=текст в map. Строки без '='
// пропускаются; имя нормализуется к нижнему регистру.
func ParsePairs(entries []string) map[string]string {
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		name, text, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		m[name] = strings.TrimSpace(text)
	}
	return m
}

// parseListFlag разбирает значение флага со списком, разделённым ';'
func parseListFlag(v string, def []string) []string {
	// Пустая строка → дефолт
	if v == "" {
		return def
	}
	parts := strings.Split(v, ";")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return def
	}
	return cleaned
}
