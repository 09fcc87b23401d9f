// Package azure provides a TTS provider backed by the Azure Cognitive
// Services Speech REST API. It implements the tts.Provider interface.
//
// Synthesis is performed via a single POST of an SSML document to the
// regional endpoint; the response body is a complete RIFF WAV file
// (16 kHz, 16-bit, mono PCM by default).
//
// Typical usage:
//
//	p, err := azure.New("subscription-key", "eastus",
//	    azure.WithTimeout(15*time.Second),
//	)
//	wav, err := p.Synthesize(ctx, tts.SynthesisRequest{
//	    Text:  "Érase una vez un lobo.",
//	    Voice: "es-MX-JorgeNeural",
//	})
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tesoro-app/tesoro/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	synthesisEndpointFmt = "https://%s.tts.speech.microsoft.com/cognitiveservices/v1"
	voicesEndpointFmt    = "https://%s.tts.speech.microsoft.com/cognitiveservices/voices/list"

	// defaultOutputFormat yields a RIFF WAV container that needs no
	// post-processing before being served to clients.
	defaultOutputFormat = "riff-16khz-16bit-mono-pcm"

	defaultTimeout = 30 * time.Second
	userAgent      = "tesoro-tts"
)

// Option is a functional option for configuring the Azure Provider.
type Option func(*Provider)

// WithOutputFormat overrides the X-Microsoft-OutputFormat header. Only RIFF
// formats keep the Provider contract of returning complete WAV files.
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithTimeout sets the per-request HTTP timeout. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client entirely. Mainly for
// tests that point the provider at an httptest server transport.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements tts.Provider backed by the Azure Speech REST API.
type Provider struct {
	subscriptionKey string
	region          string
	outputFormat    string
	httpClient      *http.Client
}

// New creates a new Azure Provider. subscriptionKey and region must be
// non-empty; region is the Azure location slug (e.g. "eastus").
func New(subscriptionKey, region string, opts ...Option) (*Provider, error) {
	if subscriptionKey == "" {
		return nil, errors.New("azure: subscriptionKey must not be empty")
	}
	if region == "" {
		return nil, errors.New("azure: region must not be empty")
	}
	p := &Provider{
		subscriptionKey: subscriptionKey,
		region:          region,
		outputFormat:    defaultOutputFormat,
		httpClient:      &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Synthesize renders req.Text with the given Azure neural voice and returns
// the WAV bytes from the response body.
func (p *Provider) Synthesize(ctx context.Context, req tts.SynthesisRequest) ([]byte, error) {
	if req.Voice == "" {
		return nil, fmt.Errorf("azure: %w: voice must not be empty", tts.ErrSynthesisFailed)
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("azure: %w: text must not be empty", tts.ErrSynthesisFailed)
	}

	ssml, err := buildSSML(req.Text, req.Voice)
	if err != nil {
		return nil, fmt.Errorf("azure: build ssml: %w", err)
	}

	endpoint := fmt.Sprintf(synthesisEndpointFmt, p.region)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("azure: build request: %w", err)
	}
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", p.subscriptionKey)
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("X-Microsoft-OutputFormat", p.outputFormat)
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("azure: %w: %v", tts.ErrSynthesisFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("azure: %w: status %d: %s", tts.ErrSynthesisFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("azure: %w: read body: %v", tts.ErrSynthesisFailed, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("azure: %w: empty audio response", tts.ErrSynthesisFailed)
	}
	return audio, nil
}

// ---- ListVoices ----

// azureVoice is a single entry from GET /cognitiveservices/voices/list.
type azureVoice struct {
	ShortName string `json:"ShortName"`
	LocalName string `json:"LocalName"`
	Locale    string `json:"Locale"`
	Gender    string `json:"Gender"`
	VoiceType string `json:"VoiceType"`
}

// ListVoices returns the neural voice catalogue for the configured region.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	endpoint := fmt.Sprintf(voicesEndpointFmt, p.region)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("azure: list voices: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.subscriptionKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("azure: list voices: unexpected status %d", resp.StatusCode)
	}

	var entries []azureVoice
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("azure: list voices decode: %w", err)
	}

	voices := make([]tts.Voice, 0, len(entries))
	for _, v := range entries {
		voices = append(voices, tts.Voice{
			ID:       v.ShortName,
			Name:     v.LocalName,
			Provider: "azure",
			Language: v.Locale,
			Metadata: map[string]string{
				"gender":     v.Gender,
				"voice_type": v.VoiceType,
			},
		})
	}
	return voices, nil
}

// ---- helpers ----

// buildSSML renders the minimal SSML document Azure expects: a speak element
// carrying the voice's locale, one voice element, and the escaped text.
func buildSSML(text, voice string) ([]byte, error) {
	lang := voiceLanguage(voice)

	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return nil, err
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "<speak version='1.0' xml:lang='%s'>", lang)
	fmt.Fprintf(&b, "<voice xml:lang='%s' name='%s'>", lang, voice)
	b.WriteString("<prosody rate='0%' pitch='0%'>")
	b.Write(escaped.Bytes())
	b.WriteString("</prosody></voice></speak>")
	return b.Bytes(), nil
}

// voiceLanguage derives the BCP-47 locale from an Azure neural voice name:
// "es-MX-JorgeNeural" yields "es-MX". Names without a locale prefix fall
// back to en-US.
func voiceLanguage(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) >= 2 && len(parts[0]) == 2 {
		return parts[0] + "-" + parts[1]
	}
	return "en-US"
}
