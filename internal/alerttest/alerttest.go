// Package alerttest builds encoded survey alerts for tests and sample data.
package alerttest

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/hamba/avro/v2"
	"github.com/hamba/avro/v2/ocf"
)

// DiaSource is an ELAsTiCC detection.
type DiaSource struct {
	DiaSourceID       int64    `avro:"diaSourceId"`
	CcdVisitID        int64    `avro:"ccdVisitId"`
	DiaObjectID       *int64   `avro:"diaObjectId"`
	ParentDiaSourceID *int64   `avro:"parentDiaSourceId"`
	MidPointTai       float64  `avro:"midPointTai"`
	FilterName        string   `avro:"filterName"`
	Ra                float64  `avro:"ra"`
	Decl              float64  `avro:"decl"`
	PsFlux            float32  `avro:"psFlux"`
	PsFluxErr         float32  `avro:"psFluxErr"`
	Snr               float32  `avro:"snr"`
	Nobs              *float32 `avro:"nobs"`
}

// DiaForcedSource is an ELAsTiCC forced-photometry measurement.
type DiaForcedSource struct {
	DiaForcedSourceID int64   `avro:"diaForcedSourceId"`
	CcdVisitID        int64   `avro:"ccdVisitId"`
	DiaObjectID       int64   `avro:"diaObjectId"`
	MidPointTai       float64 `avro:"midPointTai"`
	FilterName        string  `avro:"filterName"`
	PsFlux            float32 `avro:"psFlux"`
	PsFluxErr         float32 `avro:"psFluxErr"`
	TotFlux           float32 `avro:"totFlux"`
	TotFluxErr        float32 `avro:"totFluxErr"`
}

// DiaObject is the ELAsTiCC object summary.
type DiaObject struct {
	DiaObjectID        int64    `avro:"diaObjectId"`
	SimVersion         *string  `avro:"simVersion"`
	Ra                 float64  `avro:"ra"`
	Decl               float64  `avro:"decl"`
	Mwebv              *float32 `avro:"mwebv"`
	MwebvErr           *float32 `avro:"mwebv_err"`
	ZFinal             *float32 `avro:"z_final"`
	ZFinalErr          *float32 `avro:"z_final_err"`
	HostgalEllipticity *float32 `avro:"hostgal_ellipticity"`
	HostgalSqradius    *float32 `avro:"hostgal_sqradius"`
	HostgalZspec       *float32 `avro:"hostgal_zspec"`
	HostgalZspecErr    *float32 `avro:"hostgal_zspec_err"`
	HostgalZphot       *float32 `avro:"hostgal_zphot"`
	HostgalZphotErr    *float32 `avro:"hostgal_zphot_err"`
}

// ElasticcAlert is an ELAsTiCC alert packet.
type ElasticcAlert struct {
	AlertID             int64              `avro:"alertId"`
	DiaSource           DiaSource          `avro:"diaSource"`
	PrvDiaSources       *[]DiaSource       `avro:"prvDiaSources"`
	PrvDiaForcedSources *[]DiaForcedSource `avro:"prvDiaForcedSources"`
	DiaObject           *DiaObject         `avro:"diaObject"`
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// NewElasticc returns an alert for object objectID whose detections are
// (mjd, band, flux, fluxerr) tuples. The last tuple is the triggering source.
// Source ids are alertID*100 plus the detection index.
func NewElasticc(alertID, objectID int64, dets ...ElasticcPoint) ElasticcAlert {
	sources := make([]DiaSource, len(dets))
	for i, p := range dets {
		sources[i] = DiaSource{
			DiaSourceID: alertID*100 + int64(i),
			CcdVisitID:  int64(i),
			DiaObjectID: Int64(objectID),
			MidPointTai: p.MJD,
			FilterName:  p.Band,
			PsFlux:      p.Flux,
			PsFluxErr:   p.FluxErr,
			Snr:         p.Flux / p.FluxErr,
		}
	}
	a := ElasticcAlert{
		AlertID:   alertID,
		DiaObject: &DiaObject{DiaObjectID: objectID},
	}
	if n := len(sources); n > 0 {
		a.DiaSource = sources[n-1]
		prv := sources[:n-1]
		a.PrvDiaSources = &prv
	}
	return a
}

// ElasticcPoint is one ELAsTiCC measurement.
type ElasticcPoint struct {
	MJD     float64
	Band    string
	Flux    float32
	FluxErr float32
}

// MarshalElasticc serializes a as schemaless binary with the embedded alert schema.
func MarshalElasticc(a ElasticcAlert) ([]byte, error) {
	schema, err := avro.Parse(ElasticcSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to parse elasticc schema: %w", err)
	}
	data, err := avro.Marshal(schema, a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode elasticc alert: %w", err)
	}
	return data, nil
}

// EncodeElasticc is MarshalElasticc for tests.
func EncodeElasticc(t testing.TB, a ElasticcAlert) []byte {
	t.Helper()
	data, err := MarshalElasticc(a)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// ZTFCandidate is a ZTF detection.
type ZTFCandidate struct {
	JD       float64  `avro:"jd"`
	Fid      int32    `avro:"fid"`
	Candid   int64    `avro:"candid"`
	Magpsf   float32  `avro:"magpsf"`
	Sigmapsf float32  `avro:"sigmapsf"`
	Magzpsci *float32 `avro:"magzpsci"`
}

// ZTFPrvCandidate is a previous ZTF detection or upper limit.
// Upper limits have a nil Candid.
type ZTFPrvCandidate struct {
	JD       float64  `avro:"jd"`
	Fid      int32    `avro:"fid"`
	Candid   *int64   `avro:"candid"`
	Magpsf   *float32 `avro:"magpsf"`
	Sigmapsf *float32 `avro:"sigmapsf"`
	Magzpsci *float32 `avro:"magzpsci"`
}

// ZTFAlert is a ZTF alert packet.
type ZTFAlert struct {
	SchemaVsn     string             `avro:"schemavsn"`
	Publisher     string             `avro:"publisher"`
	ObjectID      string             `avro:"objectId"`
	Candid        int64              `avro:"candid"`
	Candidate     ZTFCandidate       `avro:"candidate"`
	PrvCandidates *[]ZTFPrvCandidate `avro:"prv_candidates"`
}

// ZTFPoint is one ZTF measurement.
type ZTFPoint struct {
	JD     float64
	Fid    int32
	Mag    float32
	MagErr float32
	ZP     float32
}

// NewZTF returns an alert whose last point is the triggering candidate.
// Candidate ids are base plus the point index.
func NewZTF(objectID string, base int64, pts ...ZTFPoint) ZTFAlert {
	a := ZTFAlert{SchemaVsn: "3.3", Publisher: "ZTF (www.ztf.caltech.edu)", ObjectID: objectID}
	prv := make([]ZTFPrvCandidate, 0, len(pts))
	for i, p := range pts {
		p := p
		id := base + int64(i)
		if i == len(pts)-1 {
			a.Candid = id
			a.Candidate = ZTFCandidate{JD: p.JD, Fid: p.Fid, Candid: id, Magpsf: p.Mag, Sigmapsf: p.MagErr, Magzpsci: &p.ZP}
			break
		}
		prv = append(prv, ZTFPrvCandidate{JD: p.JD, Fid: p.Fid, Candid: &id, Magpsf: &p.Mag, Sigmapsf: &p.MagErr, Magzpsci: &p.ZP})
	}
	a.PrvCandidates = &prv
	return a
}

// AddUpperLimit appends a non-detection to a's previous candidates.
func (a *ZTFAlert) AddUpperLimit(jd float64, fid int32) {
	prv := append(*a.PrvCandidates, ZTFPrvCandidate{JD: jd, Fid: fid})
	a.PrvCandidates = &prv
}

// MarshalZTF serializes a as a single-record Avro container file.
func MarshalZTF(a ZTFAlert) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := ocf.NewEncoder(ZTFSchema, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create container encoder: %w", err)
	}
	if err := enc.Encode(a); err != nil {
		return nil, fmt.Errorf("failed to encode ztf alert: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to close container encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeZTF is MarshalZTF for tests.
func EncodeZTF(t testing.TB, a ZTFAlert) []byte {
	t.Helper()
	data, err := MarshalZTF(a)
	if err != nil {
		t.Fatal(err)
	}
	return data
}
