// Command generate-test-data writes synthetic survey alerts for local runs of
// the classifier and alertctl.
//
//	go run ./scripts/test-data -survey ztf -n 20 -out testdata/alerts
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/mwvgroup/pittgoogle-user/internal/alerttest"
)

const (
	ztfZeroPoint = 26.3
	jdOffset     = 2400000.5
)

var (
	elasticcBands = []string{"u", "g", "r", "i", "z", "Y"}
	ztfFilters    = []int32{1, 2, 3}
)

func main() {
	survey := flag.String("survey", "elasticc", "survey format to generate (elasticc or ztf)")
	n := flag.Int("n", 10, "number of alerts")
	maxPoints := flag.Int("points", 20, "maximum detections per alert")
	out := flag.String("out", "testdata/alerts", "output directory")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	if *n <= 0 || *maxPoints <= 0 {
		log.Fatalf("-n and -points must be positive")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))

	log.Printf("Generating %d %s alerts in %s...", *n, *survey, *out)
	written := 0
	for i := 1; i <= *n; i++ {
		points := rng.Intn(*maxPoints) + 1
		var (
			data []byte
			err  error
		)
		switch *survey {
		case "elasticc":
			data, err = alerttest.MarshalElasticc(elasticcAlert(rng, int64(i), points))
		case "ztf":
			data, err = alerttest.MarshalZTF(ztfAlert(rng, i, points))
		default:
			log.Fatalf("Unknown survey %q", *survey)
		}
		if err != nil {
			log.Printf("Warning: Failed to encode alert %d: %v", i, err)
			continue
		}

		path := filepath.Join(*out, fmt.Sprintf("%s-%04d.avro", *survey, i))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
		written++
	}

	log.Printf("\n=== Generation Complete ===")
	log.Printf("Alerts written: %d", written)
}

// lightCurve returns a rising then fading transient sampled at points epochs.
func lightCurve(rng *rand.Rand, points int) (mjd []float64, flux []float64) {
	peak := 60000 + rng.Float64()*300
	amp := 200 + rng.Float64()*2000
	rise := 3 + rng.Float64()*10
	fall := 10 + rng.Float64()*40
	t := peak - rise*3

	for i := 0; i < points; i++ {
		t += 0.5 + rng.Float64()*3
		var f float64
		if t < peak {
			f = amp * math.Exp((t-peak)/rise)
		} else {
			f = amp * math.Exp(-(t-peak)/fall)
		}
		mjd = append(mjd, t)
		flux = append(flux, f+rng.NormFloat64()*math.Sqrt(f+25))
	}
	return mjd, flux
}

func elasticcAlert(rng *rand.Rand, id int64, points int) alerttest.ElasticcAlert {
	mjd, flux := lightCurve(rng, points)
	pts := make([]alerttest.ElasticcPoint, points)
	for i := range pts {
		fluxErr := math.Sqrt(math.Abs(flux[i]) + 25)
		pts[i] = alerttest.ElasticcPoint{
			MJD:     mjd[i],
			Band:    elasticcBands[rng.Intn(len(elasticcBands))],
			Flux:    float32(flux[i]),
			FluxErr: float32(fluxErr),
		}
	}
	return alerttest.NewElasticc(1000+id, 5000+id, pts...)
}

func ztfAlert(rng *rand.Rand, i, points int) alerttest.ZTFAlert {
	mjd, flux := lightCurve(rng, points)
	pts := make([]alerttest.ZTFPoint, 0, points)
	for j := range mjd {
		// ZTF only reports detections with positive flux
		f := math.Max(flux[j], 1)
		mag := ztfZeroPoint - 2.5*math.Log10(f)
		pts = append(pts, alerttest.ZTFPoint{
			JD:     mjd[j] + jdOffset,
			Fid:    ztfFilters[rng.Intn(len(ztfFilters))],
			Mag:    float32(mag),
			MagErr: float32(1.0857 * math.Sqrt(f+25) / f),
			ZP:     ztfZeroPoint,
		})
	}
	objectID := fmt.Sprintf("ZTF24%07d", i)
	return alerttest.NewZTF(objectID, int64(2000000000+i*100), pts...)
}
