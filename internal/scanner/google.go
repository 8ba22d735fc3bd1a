package scanner

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"

	"github.com/franckalain/nutriscan/internal/logger"
	"github.com/franckalain/nutriscan/internal/models"
)

// GoogleConfig holds configuration for the Vertex AI scanner
type GoogleConfig struct {
	BaseConfig
	ProjectID       string `json:"project_id"`
	Location        string `json:"location"`
	CredentialsFile string `json:"credentials_file"`
	Model           string `json:"model"`
}

// Load loads the Google configuration
func (c *GoogleConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "google", c); err != nil {
		return err
	}

	if c.ProjectID == "" {
		c.ProjectID = os.Getenv("GOOGLE_PROJECT_ID")
	}
	if c.Location == "" {
		c.Location = os.Getenv("GOOGLE_LOCATION")
	}
	if c.CredentialsFile == "" {
		c.CredentialsFile = os.Getenv("GOOGLE_CREDENTIALS_FILE")
	}
	if c.Model == "" {
		c.Model = os.Getenv("GOOGLE_MODEL")
	}
	if c.Model == "" {
		c.Model = "gemini-1.5-flash"
	}

	if c.ProjectID == "" || c.Location == "" {
		return fmt.Errorf("google project id and location are required")
	}
	return nil
}

// visionModel is the part of genai.GenerativeModel the scanner needs.
type visionModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GoogleScannerFactory shares one Vertex AI client across device connections
type GoogleScannerFactory struct {
	config GoogleConfig
	log    logger.ILogger
	client *genai.Client
	model  visionModel
}

func NewGoogleScannerFactory(config GoogleConfig, log logger.ILogger) *GoogleScannerFactory {
	return &GoogleScannerFactory{config: config, log: log}
}

// Load initializes the Vertex AI client
func (f *GoogleScannerFactory) Load(ctx context.Context) error {
	opts := []option.ClientOption{}
	if f.config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(f.config.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, f.config.ProjectID, f.config.Location, opts...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	model := client.GenerativeModel(f.config.Model)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"

	f.client = client
	f.model = model
	return nil
}

// Close releases the Vertex AI client.
func (f *GoogleScannerFactory) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Close()
}

func (f *GoogleScannerFactory) CreateScanner(relay Relay) Scanner {
	return &GoogleScanner{relay: relay, model: f.model, log: f.log}
}

// GoogleScanner asks the device for a camera frame and lets Gemini read the
// barcode in it.
type GoogleScanner struct {
	relay Relay
	model visionModel
	log   logger.ILogger
}

type captureReply struct {
	Image     string `json:"image"`
	MIMEType  string `json:"mime_type"`
	Cancelled bool   `json:"cancelled"`
}

func (s *GoogleScanner) Scan(ctx context.Context, formats []models.Format) (models.ScanOutcome, error) {
	if s.model == nil {
		return models.ScanOutcome{}, fmt.Errorf("model not loaded")
	}

	raw, err := s.relay.Request(ctx, KindCaptureRequest, scanRequest{Formats: formats})
	if err != nil {
		return models.ScanOutcome{}, err
	}

	var reply captureReply
	trimmed := strings.TrimSpace(string(raw))
	if trimmed != "" && trimmed != "null" {
		if err := json.Unmarshal(raw, &reply); err != nil {
			return models.ScanOutcome{}, fmt.Errorf("invalid capture reply: %w", err)
		}
	}
	if reply.Cancelled || reply.Image == "" {
		return models.Cancelled(), nil
	}

	imageData, err := base64.StdEncoding.DecodeString(reply.Image)
	if err != nil {
		return models.ScanOutcome{}, fmt.Errorf("invalid image format: %w", err)
	}
	mimeType := strings.TrimPrefix(reply.MIMEType, "image/")
	if mimeType == "" {
		mimeType = "jpeg"
	}

	s.log.Debug("scanner", "calling vision model", map[string]interface{}{"bytes": len(imageData)})
	resp, err := s.model.GenerateContent(ctx, genai.Text(visionPrompt(formats)), genai.ImageData(mimeType, imageData))
	if err != nil {
		return models.ScanOutcome{}, fmt.Errorf("failed to call ai: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return models.ScanOutcome{}, fmt.Errorf("no response generated")
	}
	text := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	return ParseVisionReply(text, formats)
}

func visionPrompt(formats []models.Format) string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return fmt.Sprintf(`Find the barcode in this image and read it.
Accepted symbologies: %s.
Reply with a JSON object and nothing else:
{"barcode": "digits or text encoded in the symbol, or null if no readable barcode is visible", "format": "one of the accepted symbologies"}`,
		strings.Join(names, ", "))
}

// ParseVisionReply reads the model's JSON answer. A missing barcode, or one
// in a symbology that was not requested, is NoResult.
func ParseVisionReply(text string, formats []models.Format) (models.ScanOutcome, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var out struct {
		Barcode *string `json:"barcode"`
		Format  string  `json:"format"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return models.ScanOutcome{}, fmt.Errorf("failed to parse model response: %w while parsing %s", err, text)
	}

	if out.Barcode == nil || strings.TrimSpace(*out.Barcode) == "" {
		return models.NoResult(), nil
	}
	if out.Format != "" && !accepts(formats, out.Format) {
		return models.NoResult(), nil
	}
	return models.Decoded(strings.TrimSpace(*out.Barcode)), nil
}

func accepts(formats []models.Format, format string) bool {
	if len(formats) == 0 {
		return true
	}
	got := formatKey(format)
	for _, want := range formats {
		if formatKey(string(want)) == got {
			return true
		}
	}
	return false
}

// formatKey folds spelling variants such as "EAN-13", "ean13" and "EAN_13".
func formatKey(format string) string {
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToUpper(strings.TrimSpace(format)))
}
