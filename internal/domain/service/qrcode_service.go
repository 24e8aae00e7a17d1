package service

// QRCodeService renders QR code images for login payloads.
type QRCodeService interface {
	// EncodePNG renders the given payload (an authorize URL) as a PNG image.
	EncodePNG(payload string) ([]byte, error)
}
