package notify

import (
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/generators"
	"github.com/faiface/beep/speaker"
	"go.uber.org/zap"
)

// TonePlayer проигрывает короткие синусоидальные сигналы-подтверждения.
// Инициализация динамиков выполняется лениво и один раз.
type TonePlayer struct {
	logger *zap.SugaredLogger

	sr      beep.SampleRate
	once    sync.Once
	initErr error
}

func NewTonePlayer(logger *zap.SugaredLogger) *TonePlayer {
	return &TonePlayer{logger: logger, sr: beep.SampleRate(44100)}
}

// PlayCue синтезирует тон заданной частоты и длительности и блокирует до конца
// проигрывания. Ошибки логируются и возвращаются, чтобы вызывающий мог принять
// решение (например, проигнорировать).
func (p *TonePlayer) PlayCue(freqHz int, d time.Duration, volumeDB float64) error {
	p.once.Do(func() {
		p.initErr = speaker.Init(p.sr, p.sr.N(time.Second/10))
	})
	if p.initErr != nil {
		if p.logger != nil {
			p.logger.Warnw("Не удалось инициализировать аудиовыход", "error", p.initErr)
		}
		return p.initErr
	}

	tone, err := generators.SinTone(p.sr, freqHz)
	if err != nil {
		if p.logger != nil {
			p.logger.Warnw("Не удалось синтезировать сигнал", "freq", freqHz, "error", err)
		}
		return err
	}

	vol := &effects.Volume{
		Streamer: beep.Take(p.sr.N(d), tone),
		Base:     2,
		Volume:   volumeDB,
		Silent:   false,
	}
	done := make(chan struct{})
	speaker.Play(beep.Seq(vol, beep.Callback(func() { close(done) })))
	<-done
	return nil
}
