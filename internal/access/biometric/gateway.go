// Package biometric adapts external face and voice verifiers to the
// authentication flows.  It owns template opening and score normalisation;
// it never decides acceptance.
package biometric

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrUnavailable wraps any failure to obtain a verification result.
	// It is distinct from a negative result.
	ErrUnavailable = errors.New("biometric verifier unavailable")

	ErrNoTemplate = errors.New("no enrolled template")

	ErrTemplateUnreadable = errors.New("enrolled template cannot be opened")
)

type FaceMatcher interface {
	MatchFace(ctx context.Context, sample, template []byte) (bool, error)
}

type VoiceVerifier interface {
	VerifyVoice(ctx context.Context, sample, template []byte, challenge string) (VoiceResult, error)
}

// TemplateOpener turns a sealed template into the plaintext a verifier
// consumes.
type TemplateOpener interface {
	Open(sealed []byte) ([]byte, error)
}

// VoiceResult carries the three independent voice checks.  When Scored is
// false the verifier only returned Transcription and the gateway derives
// TranscriptionSimilarity itself.
type VoiceResult struct {
	SpeakerSimilarity       float64
	TranscriptionSimilarity float64
	AudioGenuine            bool
	Transcription           string
	Scored                  bool
}

type Gateway struct {
	face    FaceMatcher
	voice   VoiceVerifier
	opener  TemplateOpener
	timeout time.Duration
}

// NewGateway wires the verifiers.  timeout bounds every verifier call; 0
// leaves the caller's deadline in charge.
func NewGateway(face FaceMatcher, voice VoiceVerifier, opener TemplateOpener, timeout time.Duration) *Gateway {
	return &Gateway{face: face, voice: voice, opener: opener, timeout: timeout}
}

func (g *Gateway) VerifyFace(ctx context.Context, sample, sealedTemplate []byte) (bool, error) {
	tpl, err := g.open(sealedTemplate)
	if err != nil {
		return false, err
	}

	ctx, cancel := g.bound(ctx)
	defer cancel()

	ok, err := g.face.MatchFace(ctx, sample, tpl)
	if err != nil {
		return false, fmt.Errorf("%w: face: %v", ErrUnavailable, err)
	}
	return ok, nil
}

func (g *Gateway) VerifyVoice(ctx context.Context, sample, sealedTemplate []byte, challenge string) (VoiceResult, error) {
	tpl, err := g.open(sealedTemplate)
	if err != nil {
		return VoiceResult{}, err
	}

	ctx, cancel := g.bound(ctx)
	defer cancel()

	res, err := g.voice.VerifyVoice(ctx, sample, tpl, challenge)
	if err != nil {
		return VoiceResult{}, fmt.Errorf("%w: voice: %v", ErrUnavailable, err)
	}

	if !res.Scored {
		res.TranscriptionSimilarity = Similarity(res.Transcription, challenge)
		res.Scored = true
	}
	res.TranscriptionSimilarity = clamp01(res.TranscriptionSimilarity)
	if math.IsNaN(res.SpeakerSimilarity) {
		res.SpeakerSimilarity = 0
	}
	return res, nil
}

func (g *Gateway) open(sealed []byte) ([]byte, error) {
	if len(sealed) == 0 {
		return nil, ErrNoTemplate
	}
	if g.opener == nil {
		return sealed, nil
	}
	tpl, err := g.opener.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateUnreadable, err)
	}
	return tpl, nil
}

func (g *Gateway) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
