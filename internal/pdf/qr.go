package pdf

import (
	"encoding/json"
	"fmt"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

// QRPayload is the verification payload embedded in document QR codes.
// The URL points to the public verification page keyed by document id.
type QRPayload struct {
	URL       string `json:"url"`
	ID        string `json:"id"`
	Doctor    string `json:"doctor"`
	Timestamp string `json:"timestamp"`
}

// BuildQRData serializes the verification payload for a document
func BuildQRData(baseURL, documentID, doctorID string, now time.Time) string {
	payload := QRPayload{
		URL:       fmt.Sprintf("%s/validar/%s", baseURL, documentID),
		ID:        documentID,
		Doctor:    doctorID,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

// encodeQR renders the payload as a PNG image
func encodeQR(data string) ([]byte, error) {
	png, err := qrcode.Encode(data, qrcode.Medium, 300)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
