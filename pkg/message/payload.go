package message

// Bytes is a raw byte payload
type Bytes struct {
	Data        []byte
	ContentType string
	// Encoding names a content coding already applied to Data, e.g. "gzip"
	Encoding string
}

// NewBytes creates a byte payload
func NewBytes(data []byte, contentType string) *Bytes {
	return &Bytes{
		Data:        data,
		ContentType: contentType,
	}
}

// AsBytes returns the payload of m as *Bytes if it is one
func AsBytes(m *Message) (*Bytes, bool) {
	if m == nil {
		return nil, false
	}
	b, ok := m.Payload.(*Bytes)
	return b, ok
}
