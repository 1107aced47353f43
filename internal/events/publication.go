package events

// Publication is an encoded outgoing record ready for a publisher.
type Publication struct {
	Topic      string
	Data       []byte
	Attributes map[string]string
	// Key orders messages for one object where the transport supports it.
	Key string
}
