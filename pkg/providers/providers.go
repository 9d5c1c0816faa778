// Package providers declares the adapter boundary between this pipeline
// and external LLM/OCR services (Design Notes §9, "source-language
// coroutines"): a small synchronous interface whose concurrent-vs-serial
// semantics is the host application's choice, not this module's. Real
// provider integrations are out of scope (§1); this package ships only
// deterministic stubs suitable for tests and local development.
package providers

import "context"

// ExtractionRequest carries everything a field-extraction provider needs
// to answer one intake turn.
type ExtractionRequest struct {
	PromptTemplateID      string
	PromptTemplateVersion string
	Variables             map[string]string
	RenderedPrompt        string
}

// ExtractionResponse is a provider's answer to an ExtractionRequest.
type ExtractionResponse struct {
	ServedModel string
	RequestID   string
	RawText     string
	Fields      map[string]string
}

// FieldExtractor calls out to an LLM-style provider to extract structured
// fields from free-form input. No stage may hold the job-directory lock
// while this is in flight.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractionRequest) (ExtractionResponse, error)
}

// OCRResult is what an OCR probe reports about one image.
type OCRResult struct {
	Text string
}

// OCREngine runs optical character recognition against a single image
// file, used by the Photo Slot Engine's OCR-boost confidence promotion.
type OCREngine interface {
	RunOcr(ctx context.Context, imagePath string) (OCRResult, error)
}

// StubFieldExtractor is a deterministic FieldExtractor: it echoes back a
// fixed field set with no network activity, standing in for a real
// provider integration that is out of scope for this module.
type StubFieldExtractor struct {
	Fields map[string]string
}

func (s StubFieldExtractor) ExtractFields(_ context.Context, req ExtractionRequest) (ExtractionResponse, error) {
	return ExtractionResponse{
		ServedModel: "stub-extractor-v1",
		RawText:     req.RenderedPrompt,
		Fields:      s.Fields,
	}, nil
}

// StubOCREngine is a deterministic OCREngine: it returns a fixed text
// blob for every image, standing in for a real OCR integration that is
// out of scope for this module.
type StubOCREngine struct {
	Text string
}

func (s StubOCREngine) RunOcr(_ context.Context, _ string) (OCRResult, error) {
	return OCRResult{Text: s.Text}, nil
}
