package events

// Detection is one photometric measurement, keyed by the survey's native field names.
type Detection map[string]any

// AlertRecord is a decoded alert: one astronomical object and its detections.
// Previous detections come first and the triggering detection last.
type AlertRecord struct {
	Survey     string
	AlertID    int64
	ObjectID   string
	SourceID   int64
	Detections []Detection

	// Raw is the full decoded alert, for copying fields into outgoing messages.
	Raw map[string]any
}

// Len returns the number of detections.
func (r *AlertRecord) Len() int {
	return len(r.Detections)
}
