package config

import (
	"fmt"
	"sort"
)

// Profile is one classifier deployment: what it runs and where its output goes.
type Profile struct {
	// Module names the deployment and the outgoing attribute holding the predicted class.
	Module         string
	TopicBase      string
	TableName      string
	ClassifierName string
	// ModelPath is relative to the model directory.
	ModelPath string
	Classes   int
	Taxonomy  string
}

var profiles = map[string]Profile{
	"supernnova": {
		Module:         "supernnova",
		TopicBase:      "SuperNNova",
		TableName:      "SuperNNova",
		ClassifierName: "SuperNNova_v1.3",
		ModelPath:      "ZTF_DMAM_V19_NoC_SNIa_vs_CC_forFink/vanilla_S_0_CLF_2_R_none_photometry_DF_1.0_N_global_lstm_32x2_0.05_128_True_mean.pt",
		Classes:        2,
		Taxonomy:       "supernnova/v1",
	},
	"microlia": {
		Module:         "microlia",
		TopicBase:      "MicroLIA",
		TableName:      "MicroLIA",
		ClassifierName: "MicroLIA_v2.6",
		ModelPath:      "trained_model/MicroLIA_ensemble_model",
		Classes:        4,
		Taxonomy:       "microlia/v1",
	},
}

// LookupProfile returns the named profile.
func LookupProfile(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("classifier must be one of %v, got %q", Profiles(), name)
	}
	return p, nil
}

// Profiles lists the profile names.
func Profiles() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
