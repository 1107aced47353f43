// Package features converts decoded alerts into the five-column light-curve
// table the classifiers consume.
package features

import (
	"fmt"
	"math"

	"github.com/mwvgroup/pittgoogle-user/internal/decoder"
	"github.com/mwvgroup/pittgoogle-user/internal/events"
	"github.com/mwvgroup/pittgoogle-user/internal/schemamap"
)

// Column names, in table order.
const (
	ColSNID       = "SNID"
	ColFLT        = "FLT"
	ColFLUXCAL    = "FLUXCAL"
	ColFLUXCALERR = "FLUXCALERR"
	ColMJD        = "MJD"
)

// jdOffset is JD − MJD.
const jdOffset = 2400000.5

// Row is one detection in canonical units.
type Row struct {
	SNID       string  `json:"SNID" msgpack:"SNID"`
	FLT        string  `json:"FLT" msgpack:"FLT"`
	FLUXCAL    float64 `json:"FLUXCAL" msgpack:"FLUXCAL"`
	FLUXCALERR float64 `json:"FLUXCALERR" msgpack:"FLUXCALERR"`
	MJD        float64 `json:"MJD" msgpack:"MJD"`
}

// Table is the classifier input for one object. ObjectID and SourceID
// identify the alert it was built from.
type Table struct {
	ObjectID string `json:"-"`
	SourceID int64  `json:"-"`
	Rows     []Row  `json:"rows"`
}

// Columns returns the table's column names.
func (t *Table) Columns() []string {
	return []string{ColSNID, ColFLT, ColFLUXCAL, ColFLUXCALERR, ColMJD}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Policy describes how one survey's detections map onto table columns.
type Policy struct {
	Survey string

	Filter string
	Time   string
	// TimeIsJD means Time holds a Julian Date that must be shifted to MJD.
	TimeIsJD bool

	Flux    string
	FluxErr string

	// FromMagnitude means photometry is read from Mag, MagErr and MagZP and
	// converted to flux.
	FromMagnitude bool
	Mag           string
	MagErr        string
	MagZP         string

	schemaMap *schemamap.Map
}

// PolicyFor derives the formatting policy from a survey's schema map.
func PolicyFor(m *schemamap.Map) (Policy, error) {
	p := Policy{
		Survey:    m.Survey,
		Filter:    m.Key(schemamap.KeyFilter),
		schemaMap: m,
	}

	switch {
	case m.Has(schemamap.KeyMJD):
		p.Time = m.Key(schemamap.KeyMJD)
	case m.Has(schemamap.KeyJD):
		p.Time = m.Key(schemamap.KeyJD)
		p.TimeIsJD = true
	default:
		return Policy{}, fmt.Errorf("survey %s declares neither mjd nor jd", m.Survey)
	}

	switch {
	case m.Has(schemamap.KeyFlux) && m.Has(schemamap.KeyFluxErr):
		p.Flux = m.Key(schemamap.KeyFlux)
		p.FluxErr = m.Key(schemamap.KeyFluxErr)
	case m.Has(schemamap.KeyMag) && m.Has(schemamap.KeyMagErr) && m.Has(schemamap.KeyMagZP):
		p.FromMagnitude = true
		p.Mag = m.Key(schemamap.KeyMag)
		p.MagErr = m.Key(schemamap.KeyMagErr)
		p.MagZP = m.Key(schemamap.KeyMagZP)
	default:
		return Policy{}, fmt.Errorf("survey %s declares neither flux nor magnitude photometry", m.Survey)
	}
	return p, nil
}

// Format builds the classifier table for rec: one row per detection, in order.
func Format(rec *events.AlertRecord, p Policy) (*Table, error) {
	t := &Table{
		ObjectID: rec.ObjectID,
		SourceID: rec.SourceID,
		Rows:     make([]Row, 0, rec.Len()),
	}
	for i, det := range rec.Detections {
		row, err := p.row(det)
		if err != nil {
			return nil, fmt.Errorf("%w: detection %d of object %s: %v", events.ErrSchemaMismatch, i, rec.ObjectID, err)
		}
		row.SNID = rec.ObjectID
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func (p Policy) row(det events.Detection) (Row, error) {
	var r Row

	code, ok := decoder.AsString(det[p.Filter])
	if !ok {
		return r, fmt.Errorf("missing column %s", p.Filter)
	}
	band := code
	if p.schemaMap != nil {
		if band, ok = p.schemaMap.Filter(code); !ok {
			return r, fmt.Errorf("unmapped filter code %q", code)
		}
	}
	r.FLT = band

	t, err := number(det, p.Time)
	if err != nil {
		return r, err
	}
	if p.TimeIsJD {
		t = JDToMJD(t)
	}
	r.MJD = t

	if !p.FromMagnitude {
		if r.FLUXCAL, err = number(det, p.Flux); err != nil {
			return r, err
		}
		if r.FLUXCALERR, err = number(det, p.FluxErr); err != nil {
			return r, err
		}
		return r, nil
	}

	mag, err := number(det, p.Mag)
	if err != nil {
		return r, err
	}
	magErr, err := number(det, p.MagErr)
	if err != nil {
		return r, err
	}
	zp, err := number(det, p.MagZP)
	if err != nil {
		return r, err
	}
	r.FLUXCAL, r.FLUXCALERR = MagToFlux(mag, magErr, zp)
	return r, nil
}

func number(det events.Detection, col string) (float64, error) {
	v, ok := det[col]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing column %s", col)
	}
	f, ok := decoder.AsFloat(v)
	if !ok {
		return 0, fmt.Errorf("column %s has non-numeric value %v", col, v)
	}
	return f, nil
}

// JDToMJD converts a Julian Date to a Modified Julian Date.
func JDToMJD(jd float64) float64 {
	return jd - jdOffset
}

// MagToFlux converts a magnitude and its error to flux in the units set by zp.
func MagToFlux(mag, magErr, zp float64) (flux, fluxErr float64) {
	flux = math.Pow(10, -0.4*(mag-zp))
	fluxErr = flux * math.Ln10 * 0.4 * magErr
	return flux, fluxErr
}

// FluxToMag inverts MagToFlux.
func FluxToMag(flux, fluxErr, zp float64) (mag, magErr float64) {
	mag = zp - 2.5*math.Log10(flux)
	magErr = fluxErr / (flux * math.Ln10 * 0.4)
	return mag, magErr
}
