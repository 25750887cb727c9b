// Package modelstest provides in-memory stage implementations for tests.
package modelstest

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/adverant/nexus/manga-translator/internal/detector"
	"github.com/adverant/nexus/manga-translator/internal/inpainter"
	"github.com/adverant/nexus/manga-translator/internal/language"
	"github.com/adverant/nexus/manga-translator/internal/models"
	"github.com/adverant/nexus/manga-translator/internal/ocr"
	"github.com/adverant/nexus/manga-translator/internal/region"
	"github.com/adverant/nexus/manga-translator/internal/translator"
)

// Detector returns a fixed region list.
type Detector struct {
	Regions []region.Region
	Err     error
	Calls   int
	Closed  bool
}

func (d *Detector) Detect(ctx context.Context, img image.Image) ([]region.Region, error) {
	d.Calls++
	if d.Err != nil {
		return nil, d.Err
	}
	out := make([]region.Region, len(d.Regions))
	copy(out, d.Regions)
	return out, nil
}

func (d *Detector) Close() error { d.Closed = true; return nil }

// Recognizer returns Texts in call order and records the regions it saw.
// With Tag set every text is prefixed with "<Lang>:".
type Recognizer struct {
	Lang   string
	Texts  []string
	Tag    bool
	Err    error
	Seen   []region.Region
	Closed bool
}

func (r *Recognizer) Recognize(ctx context.Context, img image.Image, reg region.Region) (string, error) {
	i := len(r.Seen)
	r.Seen = append(r.Seen, reg)
	if r.Err != nil {
		return "", r.Err
	}
	text := ""
	if i < len(r.Texts) {
		text = r.Texts[i]
	}
	if r.Tag {
		text = r.Lang + ":" + text
	}
	return text, nil
}

func (r *Recognizer) Language() string { return r.Lang }
func (r *Recognizer) Close() error     { r.Closed = true; return nil }

// Translator returns Reply (or "T:<line>" per input when Reply is nil),
// aligned the same way the production translator is.
type Translator struct {
	Reply  []string
	Err    error
	Calls  int
	Inputs [][]string
	Closed bool
}

func (t *Translator) Translate(ctx context.Context, lines []string, source language.Language) (*translator.Translation, error) {
	t.Calls++
	t.Inputs = append(t.Inputs, append([]string(nil), lines...))
	if t.Err != nil {
		return nil, t.Err
	}
	reply := t.Reply
	if reply == nil {
		reply = make([]string, len(lines))
		for i, l := range lines {
			reply[i] = "T:" + l
		}
	}
	out, alignment := translator.Align(reply, len(lines))
	alignment.Protocol = translator.ProtocolJSON
	return &translator.Translation{Lines: out, Alignment: alignment}, nil
}

func (t *Translator) Close() error { t.Closed = true; return nil }

// Inpainter paints every region black on a copy and records the regions.
type Inpainter struct {
	Err    error
	Calls  int
	Seen   []region.Region
	Closed bool
}

func (p *Inpainter) Inpaint(ctx context.Context, img image.Image, regions []region.Region) (image.Image, error) {
	p.Calls++
	p.Seen = append([]region.Region(nil), regions...)
	if p.Err != nil {
		return nil, p.Err
	}
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	for _, r := range regions {
		c := r.Clamp(b)
		for y := c.YMin; y < c.YMax; y++ {
			for x := c.XMin; x < c.XMax; x++ {
				out.Set(x, y, color.Black)
			}
		}
	}
	return out, nil
}

func (p *Inpainter) Close() error { p.Closed = true; return nil }

// Stages bundles one fake per stage and counts factory builds.
type Stages struct {
	mu sync.Mutex

	Detector   *Detector
	Translator *Translator
	Inpainter  *Inpainter
	// RecognizerTexts seeds every recognizer built
	RecognizerTexts []string
	RecognizerErr   error
	TagRecognized   bool
	Recognizers     []*Recognizer
	Builds          map[string]int
	// FailStage makes the named factory fail with FailErr
	FailStage string
	FailErr   error
}

// NewStages returns fakes with sensible defaults.
func NewStages(regions []region.Region, texts []string) *Stages {
	return &Stages{
		Detector:        &Detector{Regions: regions},
		Translator:      &Translator{},
		Inpainter:       &Inpainter{},
		RecognizerTexts: texts,
		Builds:          map[string]int{},
	}
}

// LastRecognizer is the most recently built recognizer.
func (s *Stages) LastRecognizer() *Recognizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Recognizers) == 0 {
		return nil
	}
	return s.Recognizers[len(s.Recognizers)-1]
}

func (s *Stages) build(stage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailStage == stage {
		return s.FailErr
	}
	s.Builds[stage]++
	return nil
}

// Factories wires the fakes into registry factories.
func (s *Stages) Factories() models.Factories {
	return models.Factories{
		Detector: func(ctx context.Context) (detector.Detector, error) {
			if err := s.build(models.StageDetector); err != nil {
				return nil, err
			}
			return s.Detector, nil
		},
		Recognizer: func(ctx context.Context, lang language.Language) (ocr.Recognizer, error) {
			if err := s.build(models.StageRecognizer); err != nil {
				return nil, err
			}
			r := &Recognizer{Lang: lang.Code, Texts: s.RecognizerTexts, Tag: s.TagRecognized, Err: s.RecognizerErr}
			s.mu.Lock()
			s.Recognizers = append(s.Recognizers, r)
			s.mu.Unlock()
			return r, nil
		},
		Translator: func(ctx context.Context) (translator.Translator, error) {
			if err := s.build(models.StageTranslator); err != nil {
				return nil, err
			}
			return s.Translator, nil
		},
		Inpainter: func(ctx context.Context) (inpainter.Inpainter, error) {
			if err := s.build(models.StageInpainter); err != nil {
				return nil, err
			}
			return s.Inpainter, nil
		},
	}
}
