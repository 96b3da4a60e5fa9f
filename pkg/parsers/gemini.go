package parsers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"

	"github.com/erzulfequar/OCR-Backend/pkg/models"
)

// DefaultGeminiModel is used when no model name is configured
const DefaultGeminiModel = "gemini-2.0-flash"

// TextGenerator is the generative-AI collaborator: prompt parts in, text out.
type TextGenerator interface {
	GenerateText(ctx context.Context, parts ...genai.Part) (string, error)
}

// GeminiModel implements TextGenerator on top of the Gemini API
type GeminiModel struct {
	model *genai.GenerativeModel
}

// NewGeminiModel returns a deterministic (temperature 0) Gemini model
func NewGeminiModel(client *genai.Client, name string) *GeminiModel {
	if name == "" {
		name = DefaultGeminiModel
	}
	model := client.GenerativeModel(name)
	model.SetTemperature(0.0) // Set to 0 for more deterministic responses
	return &GeminiModel{model: model}
}

// GenerateText calls the Gemini AI API and returns the first text part of the first candidate
func (g *GeminiModel) GenerateText(ctx context.Context, parts ...genai.Part) (string, error) {
	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("error calling Gemini AI API: %w", err)
	}

	// Extract the content from the response
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response from Gemini AI API")
	}

	content, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", errors.New("unexpected response format from Gemini AI API")
	}
	return string(content), nil
}

// invoicePrompt returns the prompt for extracting invoice fields from text
func invoicePrompt(text string) string {
	return `You are a professional invoice parsing AI.
Extract all fields from this invoice text dynamically.
Include line item taxes, HSN/SAC, and totals.
Put line items in an "items" array; for each item use the keys "description", "hsn_sac", "quantity", "rate", "taxable_amount" and "tax_rate" where available.
Keep the labels printed on the invoice (for example "Invoice No.", "Date", "GSTIN", "CGST", "SGST", "Grand Total") as keys for the other fields.

Return ONLY a valid JSON object. Do not include any explanations, markdown formatting, or additional text outside the JSON object.
Text to process:
` + text
}

// filePrompt returns the prompt used when the invoice is sent as a file
func filePrompt() string {
	return invoicePrompt("(the attached document)")
}

// cleanJSONResponse removes markdown code block markers from a JSON string
// This handles cases where the Gemini API returns JSON wrapped in ```json ... ``` markers
func cleanJSONResponse(jsonStr string) string {
	// Remove leading ```json or ``` if present
	jsonStr = strings.TrimPrefix(strings.TrimSpace(jsonStr), "```json")
	jsonStr = strings.TrimPrefix(strings.TrimSpace(jsonStr), "```")

	// Remove trailing ``` if present
	jsonStr = strings.TrimSuffix(strings.TrimSpace(jsonStr), "```")

	// Trim any remaining whitespace
	return strings.TrimSpace(jsonStr)
}

// ExtractInvoiceWithGemini asks the model to extract invoice fields from text.
// Failures are reported as {"error": <message>} rather than returned.
func ExtractInvoiceWithGemini(ctx context.Context, gen TextGenerator, text string) models.RawExtraction {
	return extractWithGemini(ctx, gen, genai.Text(invoicePrompt(text)))
}

// ExtractInvoiceFromFile sends the document itself to the model as binary data
func ExtractInvoiceFromFile(ctx context.Context, gen TextGenerator, fileContent []byte, mimeType string) models.RawExtraction {
	return extractWithGemini(ctx, gen,
		genai.Text(filePrompt()),
		genai.Blob{
			MIMEType: mimeType,
			Data:     fileContent,
		},
	)
}

func extractWithGemini(ctx context.Context, gen TextGenerator, parts ...genai.Part) models.RawExtraction {
	content, err := gen.GenerateText(ctx, parts...)
	if err != nil {
		return errorRecord(err)
	}

	jsonStr := cleanJSONResponse(content)
	log.WithField("bytes", len(jsonStr)).Debug("cleaned Gemini response")

	raw, err := models.DecodeRawExtraction([]byte(jsonStr))
	if err != nil {
		log.WithError(err).Warn("Gemini response is not a JSON object")
		return errorRecord(fmt.Errorf("error parsing Gemini AI response: %w", err))
	}
	return raw
}

func errorRecord(err error) models.RawExtraction {
	return models.RawExtraction{"error": err.Error()}
}

// DetectMimeType determines the MIME type based on the file extension.
// Only formats an invoice can arrive in are accepted.
func DetectMimeType(filename string) (string, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf", true
	case ".png":
		return "image/png", true
	case ".jpg", ".jpeg":
		return "image/jpeg", true
	case ".txt":
		return "text/plain", true
	default:
		return "", false
	}
}
