package diagshot

import (
	"errors"
	"image"
	"image/draw"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kbinani/screenshot"
	"go.uber.org/zap"

	"ScribePilot/internal/config"
)

// Shooter снимает диагностический скриншот всех мониторов при ошибке действия.
// Кадр показывает, в каком состоянии были внешние окна в момент сбоя — без него
// разбор «почему кейстрок ушёл не туда» по одним логам почти невозможен.
type Shooter struct {
	cfg    *config.Config
	logger *zap.SugaredLogger

	now func() time.Time
}

func New(cfg *config.Config, logger *zap.SugaredLogger) *Shooter {
	return &Shooter{cfg: cfg, logger: logger, now: time.Now}
}

// CaptureFailure снимает кадр и попутно удаляет кадры старше TTL. Ошибки
// только логируются: диагностика не должна ронять само действие.
func (s *Shooter) CaptureFailure(reason string) {
	if !s.cfg.DiagShotEnabled {
		return
	}
	if err := os.MkdirAll(s.cfg.DiagShotDir, 0o755); err != nil {
		s.logger.Errorw("Failed to create diagshot dir", "dir", s.cfg.DiagShotDir, "error", err)
		return
	}

	s.pruneOld()
	s.captureOnce(reason)
}

func (s *Shooter) captureOnce(reason string) {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		s.logger.Warnw("No active displays detected for diagshot")
		return
	}

	// Объединённые границы всех мониторов
	union := image.Rect(0, 0, 0, 0)
	for i := 0; i < n; i++ {
		b := screenshot.GetDisplayBounds(i)
		if i == 0 {
			union = b
			continue
		}
		union = union.Union(b)
	}

	canvas := image.NewRGBA(union)
	for i := 0; i < n; i++ {
		b := screenshot.GetDisplayBounds(i)
		img, err := screenshot.CaptureRect(b)
		if err != nil {
			s.logger.Errorw("Failed to capture display", "index", i, "error", err)
			continue
		}
		dstPoint := image.Pt(b.Min.X-union.Min.X, b.Min.Y-union.Min.Y)
		dstRect := image.Rectangle{Min: dstPoint, Max: dstPoint.Add(b.Size())}
		draw.Draw(canvas, dstRect, img, image.Point{}, draw.Src)
	}

	// Масштабируем до maxWidth=1280 при необходимости, сохраняя пропорции
	const maxWidth = 1280
	outImg := image.Image(canvas)
	if w := canvas.Bounds().Dx(); w > maxWidth {
		h := canvas.Bounds().Dy()
		scale := float64(maxWidth) / float64(w)
		newW := int(math.Round(float64(w) * scale))
		newH := int(math.Round(float64(h) * scale))
		if newW <= 0 {
			newW = 1
		}
		if newH <= 0 {
			newH = 1
		}
		outImg = resizeNearest(canvas, newW, newH)
	}

	filename := s.now().Format("2006-01-02_15-04-05-000") + "_" + sanitizeReason(reason) + ".jpg"
	fullPath := filepath.Join(s.cfg.DiagShotDir, filename)
	file, err := os.Create(fullPath)
	if err != nil {
		s.logger.Errorw("Failed to create diagshot file", "path", fullPath, "error", err)
		return
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			s.logger.Errorw("Failed to close diagshot file", "path", fullPath, "error", cerr)
		}
	}()

	if err := jpeg.Encode(file, outImg, &jpeg.Options{Quality: 90}); err != nil {
		s.logger.Errorw("Failed to encode diagshot to JPEG", "path", fullPath, "error", err)
		_ = file.Close()
		_ = os.Remove(fullPath)
		return
	}
	s.logger.Infow("Diagnostic screenshot saved", "path", fullPath, "reason", reason)
}

// pruneOld удаляет кадры старше TTL из директории диагностики.
func (s *Shooter) pruneOld() {
	ttl := time.Duration(s.cfg.DiagShotTTLSeconds) * time.Second
	if ttl <= 0 || s.cfg.DiagShotDir == "" {
		return
	}
	deadline := s.now().Add(-ttl)

	entries, err := os.ReadDir(s.cfg.DiagShotDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		s.logger.Warnw("Failed to read diagshot dir for pruning", "dir", s.cfg.DiagShotDir, "error", err)
		return
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".jpg") {
			continue
		}
		fi, statErr := e.Info()
		if statErr != nil {
			continue
		}
		if fi.ModTime().Before(deadline) {
			full := filepath.Join(s.cfg.DiagShotDir, e.Name())
			if err := os.Remove(full); err != nil {
				s.logger.Warnw("Failed to remove stale diagshot", "path", full, "error", err)
			}
		}
	}
}

// sanitizeReason приводит причину к безопасному фрагменту имени файла.
func sanitizeReason(reason string) string {
	reason = strings.TrimSpace(strings.ToLower(reason))
	if reason == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range reason {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := b.String()
	if len(out) > 40 {
		out = out[:40]
	}
	return out
}

// resizeNearest выполняет масштабирование изображения методом ближайшего соседа
func resizeNearest(src image.Image, width int, height int) *image.RGBA {
	if width <= 0 || height <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	srcBounds := src.Bounds()
	srcW := srcBounds.Dx()
	srcH := srcBounds.Dy()
	if srcW == 0 || srcH == 0 {
		return image.NewRGBA(image.Rect(0, 0, width, height))
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		srcY := srcBounds.Min.Y + y*srcH/height
		for x := 0; x < width; x++ {
			srcX := srcBounds.Min.X + x*srcW/width
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}
	return dst
}
